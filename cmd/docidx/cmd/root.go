// Package cmd provides the CLI commands for docidx.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/config"
	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/logging"
	"github.com/Aman-CERP/docidx/internal/profiling"
	"github.com/Aman-CERP/docidx/pkg/docindex"
	"github.com/Aman-CERP/docidx/pkg/version"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	dir     string
	backend string
	debug   bool
	profile profiling.Options

	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the docidx CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docidx",
		Short: "Full-text document index manager",
		Long: `docidx keeps a persistent full-text index of (id, text) documents.

Documents are added, updated and deleted through a single writer and become
searchable once committed. Queries support AND, OR, NOT, phrases and
grouping. The index is stored with Bleve (default) or SQLite FTS5.

The same index can be served to AI assistants over MCP ('docidx serve'),
kept in sync with a directory ('docidx watch') or fed from Kafka
('docidx ingest').`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docidx version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&g.dir, "dir", "", "Index directory (default from config: .docidx/index)")
	cmd.PersistentFlags().StringVar(&g.backend, "backend", "", "Storage backend: bleve or sqlite (default from config)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to stderr and ~/.docidx/logs/")
	cmd.PersistentFlags().String("error-format", "text", "Error output format: text or json")

	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = g.start
	cmd.PersistentPostRunE = g.stop

	cmd.AddCommand(newInitCmd(g))
	cmd.AddCommand(newAddCmd(g))
	cmd.AddCommand(newUpdateCmd(g))
	cmd.AddCommand(newDeleteCmd(g))
	cmd.AddCommand(newGetCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newImportCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newIngestCmd(g))
	cmd.AddCommand(newTUICmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		format, _ := cmd.PersistentFlags().GetString("error-format")
		writeError(cmd.ErrOrStderr(), format, err)
	}
	return err
}

// writeError reports a failed command in the requested format.
func writeError(w io.Writer, format string, err error) {
	if format == "json" {
		if data, jerr := dxerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, dxerrors.FormatForCLI(err))
}

// start sets up logging and starts any requested profiles.
func (g *globalOptions) start(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if g.debug {
		logCfg = logging.DebugConfig()
	}
	if err := g.setupLogging(logCfg); err != nil {
		return err
	}

	if g.profile.Enabled() {
		p, err := profiling.Start(g.profile)
		if err != nil {
			return err
		}
		g.profiler = p
	}
	return nil
}

// stop writes profiles and closes the log file.
func (g *globalOptions) stop(_ *cobra.Command, _ []string) error {
	var err error
	if g.profiler != nil {
		err = g.profiler.Stop()
		g.profiler = nil
	}
	g.stopLogging()
	return err
}

// setupLogging installs a logger built from cfg as the slog default,
// closing any logger installed earlier.
func (g *globalOptions) setupLogging(cfg logging.Config) error {
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.stopLogging()
	g.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_configured",
		slog.String("level", cfg.Level),
		slog.String("log_file", cfg.FilePath))
	return nil
}

func (g *globalOptions) stopLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// loadConfig loads configuration for the working directory and applies
// the persistent flags on top.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if g.dir != "" {
		cfg.Index.Dir = g.dir
	}
	if g.backend != "" {
		cfg.Index.Backend = g.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, dxerrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// openIndex loads configuration and opens the configured index. The
// caller closes the returned manager.
func (g *globalOptions) openIndex(ctx context.Context, opts ...docindex.Option) (*docindex.Manager, *config.Config, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := openIndexWith(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// openIndexWith opens the index cfg points at, logging to the current
// slog default.
func openIndexWith(ctx context.Context, cfg *config.Config, opts ...docindex.Option) (*docindex.Manager, error) {
	backend, err := docindex.ParseBackend(cfg.Index.Backend)
	if err != nil {
		return nil, err
	}

	opts = append([]docindex.Option{
		docindex.WithBackend(backend),
		docindex.WithLookupCacheSize(cfg.Index.LookupCacheSize),
		docindex.WithLogger(slog.Default()),
	}, opts...)

	m := docindex.New(opts...)
	if err := m.Initialize(ctx, cfg.Index.Dir); err != nil {
		return nil, err
	}
	return m, nil
}

// closeIndex closes m, keeping the first error in errp.
func closeIndex(m *docindex.Manager, errp *error) {
	if cerr := m.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}
