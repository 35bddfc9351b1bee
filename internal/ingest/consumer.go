package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Aman-CERP/docidx/internal/config"
	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// Fetcher is the part of *kafka.Reader the consumer uses.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Index is the part of docindex.Manager the consumer drives.
type Index interface {
	AddDocumentsBatch(ctx context.Context, docs []docindex.Document) error
	DeleteDocumentsBatch(ctx context.Context, ids []string) error
}

// NewReader creates a consumer-group reader for cfg.
func NewReader(cfg config.IngestConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

// Options configures a Consumer.
type Options struct {
	// BatchSize flushes once this many records are pending.
	BatchSize int
	// FlushInterval flushes pending records at least this often.
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Stats counts consumer activity.
type Stats struct {
	Received uint64
	Skipped  uint64
	Applied  uint64
	Flushes  uint64
}

// Consumer accumulates records and applies them to the index in batches.
// Offsets are committed only after the batch they belong to was applied.
type Consumer struct {
	fetcher Fetcher
	index   Index
	opts    Options
	logger  *slog.Logger

	pending  []kafka.Message
	messages []Message

	received atomic.Uint64
	skipped  atomic.Uint64
	applied  atomic.Uint64
	flushes  atomic.Uint64
}

// NewConsumer creates a consumer reading from f into idx.
func NewConsumer(f Fetcher, idx Index, opts Options) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		fetcher: f,
		index:   idx,
		opts:    opts,
		logger:  logger.With("component", "ingest"),
	}
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Skipped:  c.skipped.Load(),
		Applied:  c.applied.Load(),
		Flushes:  c.flushes.Load(),
	}
}

// Run consumes until ctx is canceled, then flushes what is pending and
// closes the fetcher. A flush failure that is not retryable stops Run with
// the error; uncommitted records are redelivered on the next start.
func (c *Consumer) Run(ctx context.Context) (err error) {
	c.logger.Info("ingest_started",
		slog.Int("batch_size", c.opts.BatchSize),
		slog.Duration("flush_interval", c.opts.FlushInterval))
	defer func() {
		if cerr := c.fetcher.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	deadline := time.Now().Add(c.opts.FlushInterval)
	for {
		if ctx.Err() != nil {
			return c.drain()
		}

		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, ferr := c.fetcher.FetchMessage(fetchCtx)
		cancel()

		switch {
		case ferr == nil:
			c.accept(msg)
			if len(c.pending) < c.opts.BatchSize {
				continue
			}
		case ctx.Err() != nil:
			return c.drain()
		case errors.Is(ferr, context.DeadlineExceeded):
		default:
			c.logger.Error("ingest_fetch_failed", slog.String("error", ferr.Error()))
			continue
		}

		if err := c.flush(ctx); err != nil {
			if !dxerrors.IsRetryable(err) {
				return err
			}
			c.logger.Warn("ingest_flush_retry", dxerrors.LogAttrs(err)...)
		}
		deadline = time.Now().Add(c.opts.FlushInterval)
	}
}

func (c *Consumer) accept(msg kafka.Message) {
	c.received.Add(1)
	c.pending = append(c.pending, msg)

	m, err := Decode(msg.Value)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Warn("ingest_message_skipped",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()))
		return
	}
	c.messages = append(c.messages, m)
}

// flush applies pending records and then commits their offsets. Records
// that failed to decode are committed with the batch.
func (c *Consumer) flush(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}

	upserts, deletes, err := Apply(ctx, c.index, c.messages)
	if err != nil {
		return err
	}

	if err := c.fetcher.CommitMessages(ctx, c.pending...); err != nil {
		return dxerrors.WriteError("failed to commit kafka offsets", err)
	}

	c.applied.Add(uint64(upserts + deletes))
	c.flushes.Add(1)
	c.logger.Info("ingest_flushed",
		slog.Int("records", len(c.pending)),
		slog.Int("upserts", upserts),
		slog.Int("deletes", deletes))

	c.pending = c.pending[:0]
	c.messages = c.messages[:0]
	return nil
}

// Apply resolves msgs to the last operation per id and applies the
// upserts and the deletes as one batch each. It returns how many documents
// were upserted and deleted.
func Apply(ctx context.Context, idx Index, msgs []Message) (upserted, deleted int, err error) {
	upserts, deletes := resolve(msgs)
	if len(upserts) > 0 {
		docs := make([]docindex.Document, len(upserts))
		for i, m := range upserts {
			docs[i] = docindex.Document{ID: m.ID, Text: m.Text}
		}
		if err := idx.AddDocumentsBatch(ctx, docs); err != nil {
			return 0, 0, err
		}
	}
	if len(deletes) > 0 {
		if err := idx.DeleteDocumentsBatch(ctx, deletes); err != nil {
			return len(upserts), 0, err
		}
	}
	return len(upserts), len(deletes), nil
}

// drain flushes on shutdown with a fresh context.
func (c *Consumer) drain() error {
	c.logger.Info("ingest_stopping", slog.Int("pending", len(c.pending)))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.flush(ctx)
}
