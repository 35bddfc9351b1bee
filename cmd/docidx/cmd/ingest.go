package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/ingest"
	"github.com/Aman-CERP/docidx/internal/output"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	brokers       []string
	topic         string
	groupID       string
	batchSize     int
	flushInterval time.Duration
}

func newIngestCmd(g *globalOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume documents from a Kafka topic",
		Long: `Consume document operations from a Kafka topic until interrupted.

Each record value is JSON:

  {"op": "upsert", "id": "doc1", "text": "..."}
  {"op": "delete", "id": "doc1"}

Records are applied in batches, the last operation per id winning, and
offsets are committed only after the batch is in the index. Records that
do not decode are logged and skipped.`,
		Example: `  docidx ingest --brokers localhost:9092 --topic docidx-documents
  DOCIDX_KAFKA_BROKERS=k1:9092,k2:9092 docidx ingest --batch-size 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.brokers, "brokers", nil, "Kafka brokers (default from config)")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "Topic to consume (default from config)")
	cmd.Flags().StringVar(&opts.groupID, "group", "", "Consumer group id (default from config)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Records per flush (default from config)")
	cmd.Flags().DurationVar(&opts.flushInterval, "flush-interval", 0, "Maximum time between flushes (default from config)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts ingestOptions) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, cfg, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	ic := cfg.Ingest
	if len(opts.brokers) > 0 {
		ic.Brokers = opts.brokers
	}
	if opts.topic != "" {
		ic.Topic = opts.topic
	}
	if opts.groupID != "" {
		ic.GroupID = opts.groupID
	}
	if opts.batchSize > 0 {
		ic.BatchSize = opts.batchSize
	}
	flushInterval := opts.flushInterval
	if flushInterval <= 0 {
		if flushInterval, err = cfg.IngestFlushInterval(); err != nil {
			return err
		}
	}
	if len(ic.Brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured: use --brokers or ingest.brokers")
	}
	if ic.Topic == "" {
		return fmt.Errorf("no Kafka topic configured: use --topic or ingest.topic")
	}

	consumer := ingest.NewConsumer(ingest.NewReader(ic), m, ingest.Options{
		BatchSize:     ic.BatchSize,
		FlushInterval: flushInterval,
		Logger:        slog.Default(),
	})

	out.Status("📥", fmt.Sprintf("Consuming %s from %v", ic.Topic, ic.Brokers))
	err = consumer.Run(ctx)

	st := consumer.Stats()
	out.Successf("Received %d records, applied %d, skipped %d (%d flushes)",
		st.Received, st.Applied, st.Skipped, st.Flushes)
	return err
}
