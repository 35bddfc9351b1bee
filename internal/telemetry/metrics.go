// Package telemetry records docidx operation metrics for Prometheus and
// keeps a small in-memory history of recent queries. Nothing is reported
// externally unless the metrics endpoint is served.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

const namespace = "docidx"

// DefaultRecentQueries is how many queries RecentQueries retains.
const DefaultRecentQueries = 50

// Metrics holds all Prometheus collectors for an index.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SearchResults     prometheus.Histogram
	ZeroResultQueries prometheus.Counter

	registry prometheus.Registerer
	recent   *CircularBuffer[QueryEvent]
}

// New creates the collectors and registers them with reg. Passing nil
// registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Index operations by operation and status (ok or error code).",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Index operation latency in seconds, including commit and reload.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		ZeroResultQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zero_result_queries_total",
				Help:      "Searches that returned no results.",
			},
		),
		registry: reg,
		recent:   NewCircularBuffer[QueryEvent](DefaultRecentQueries),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.SearchResults,
		m.ZeroResultQueries,
	)

	return m
}

// ObserveOperation records one completed operation.
func (m *Metrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = dxerrors.GetCode(err)
		if status == "" {
			status = "error"
		}
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveSearch records the outcome of a successful search.
func (m *Metrics) ObserveSearch(raw string, results int, elapsed time.Duration) {
	m.SearchResults.Observe(float64(results))
	if results == 0 {
		m.ZeroResultQueries.Inc()
	}
	m.recent.Add(QueryEvent{
		Query:       raw,
		ResultCount: results,
		Latency:     elapsed,
		Timestamp:   time.Now(),
	})
}

// RecentQueries returns the retained queries, oldest first.
func (m *Metrics) RecentQueries() []QueryEvent {
	return m.recent.Items()
}

// IndexState is sampled on every scrape.
type IndexState struct {
	Documents  uint64
	Staged     int
	Generation uint64
}

// WatchIndex registers gauges that call fn on every scrape. fn returning
// false skips the sample (e.g. when the index is not open).
func (m *Metrics) WatchIndex(fn func() (IndexState, bool)) {
	sample := func(pick func(IndexState) float64) func() float64 {
		return func() float64 {
			st, ok := fn()
			if !ok {
				return 0
			}
			return pick(st)
		}
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Committed documents in the current reader.",
		}, sample(func(s IndexState) float64 { return float64(s.Documents) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "staged_operations",
			Help:      "Operations staged on the writer and not yet committed.",
		}, sample(func(s IndexState) float64 { return float64(s.Staged) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commit_generation",
			Help:      "Commit id of the current reader.",
		}, sample(func(s IndexState) float64 { return float64(s.Generation) })),
	)
}

// Handler returns the scrape handler for the given gatherer, or the
// default registry when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics_server_started", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
