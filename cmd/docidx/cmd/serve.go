package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docidx/internal/logging"
	"github.com/Aman-CERP/docidx/internal/mcp"
	"github.com/Aman-CERP/docidx/internal/telemetry"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	transport   string
	metricsAddr string
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over the Model Context Protocol",
		Long: `Start an MCP server exposing the index as tools (add_document,
search_documents, commit, ...) and resources (index status, recent
queries).

stdout carries JSON-RPC exclusively; logs go to ~/.docidx/logs/docidx.log.
With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Example: `  docidx serve
  docidx serve --dir ~/notes-index --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport (default from config: stdio)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runServe(ctx context.Context, g *globalOptions, opts serveOptions) (err error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if !g.debug {
		if err := g.setupLogging(logging.ServeConfig(cfg.Server.LogLevel)); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(reg)

	m, err := openIndexWith(ctx, cfg, docindex.WithRecorder(metrics))
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	metrics.WatchIndex(indexStateFunc(m))

	srv, err := mcp.NewServer(m, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	srv.SetQueryHistory(metrics)

	slog.Info("serve_started",
		slog.String("index", cfg.Index.Dir),
		slog.String("backend", cfg.Index.Backend),
		slog.String("transport", cfg.Server.Transport),
		slog.String("metrics_addr", cfg.Server.MetricsAddr))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// Stop the metrics server once the client disconnects.
		defer cancel()
		return srv.Serve(egCtx, cfg.Server.Transport)
	})
	if cfg.Server.MetricsAddr != "" {
		eg.Go(func() error {
			return telemetry.Serve(egCtx, cfg.Server.MetricsAddr, reg)
		})
	}

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("serve_stopped")
	return err
}

// indexStateFunc samples m for the index gauges.
func indexStateFunc(m *docindex.Manager) func() (telemetry.IndexState, bool) {
	return func() (telemetry.IndexState, bool) {
		st, err := m.Stats(context.Background())
		if err != nil {
			return telemetry.IndexState{}, false
		}
		return telemetry.IndexState{
			Documents:  st.Documents,
			Staged:     st.Staged,
			Generation: st.Generation,
		}, true
	}
}
