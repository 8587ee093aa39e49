// ttop is a terminal system monitor.
//
// It samples CPU, memory, disks, network, processes, sensors and battery
// at a fixed refresh interval and draws them as a tiled dashboard at
// 20 frames per second.
//
// Usage:
//
//	ttop [flags]
//	ttop keys [--format table|json]
//	ttop snapshot [--json] [--png path] [--width n] [--height n]
//	ttop man
//	ttop version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
	"gitlab.com/tinyland/lab/ttop/config"
	"gitlab.com/tinyland/lab/ttop/display/color"
	"gitlab.com/tinyland/lab/ttop/display/render"
	"gitlab.com/tinyland/lab/ttop/display/tui"
	"gitlab.com/tinyland/lab/ttop/export"
	"gitlab.com/tinyland/lab/ttop/internal/tracing"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

// flags are the root command's persistent flags.
type flags struct {
	refreshMs     int
	deterministic bool
	configPath    string
	showFPS       bool
	trace         bool
	traceOutput   string
	metricsAddr   string
	logFile       string
	verbose       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ttop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "ttop",
		Short: "Terminal system monitor",
		Long: `ttop shows CPU, memory, disk, network, process, GPU, sensor,
connection and container panels in one terminal dashboard.

Press ? inside the dashboard for key bindings.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.IntVar(&f.refreshMs, "refresh", 0, "collect interval in milliseconds (default 1000, at least 100)")
	pf.BoolVar(&f.deterministic, "deterministic", false, "never read the OS; render zero or injected samples")
	pf.StringVar(&f.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	pf.StringVar(&f.logFile, "log-file", "", "write logs to this file (default: discard)")
	pf.BoolVar(&f.verbose, "verbose", false, "log at debug level")
	cmd.Flags().BoolVar(&f.showFPS, "show-fps", false, "show frame time in the header")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "record OpenTelemetry spans")
	cmd.Flags().StringVar(&f.traceOutput, "trace-output", tracing.DefaultOutput, "file that receives spans with --trace")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")

	cmd.AddCommand(newKeysCmd(), newSnapshotCmd(f), newManCmd(), newVersionCmd())
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	changed := false
	if cmd.Flags().Changed("refresh") {
		cfg.RefreshMs = f.refreshMs
		changed = true
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
		changed = true
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger opens path for slog output. An empty path discards logs.
func newLogger(path string, verbose bool) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})), file, nil
}

// appOptions maps the config onto app.Options.
func appOptions(cfg *config.Config, deterministic bool, logger *slog.Logger) (app.Options, error) {
	panels := app.DefaultPanels()
	for name, on := range cfg.Panels.Visible() {
		p, err := app.ParsePanel(name)
		if err != nil {
			return app.Options{}, err
		}
		panels.Set(p, on)
	}
	sortCol, err := process.ParseSortColumn(cfg.Process.Sort)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Deterministic:   deterministic,
		HistoryLen:      cfg.HistoryLen(),
		Panels:          &panels,
		Sort:            sortCol,
		Reverse:         cfg.Process.Reverse,
		IncludeLoopback: cfg.Network.IncludeLoopback,
		StorageRoots:    cfg.Storage.Roots,
		StorageDepth:    cfg.Storage.Depth,
		Logger:          logger,
	}, nil
}

func themeFor(cfg *config.Config) (tui.ThemePreset, error) {
	return tui.GetThemePreset(cfg.Theme.Name).WithColors(cfg.Theme.Colors)
}

// publisher hands every new snapshot to the exporter. Frames between
// collects carry the same snapshot and are skipped.
type publisher struct {
	app  *app.App
	exp  *export.Exporter
	last *metrics.Metrics
}

func (p *publisher) Present(render.Frame) error {
	if snap := p.app.Snapshot(); snap != nil && snap != p.last {
		p.exp.Publish(snap)
		p.last = snap
	}
	return nil
}

func runDashboard(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg.LogFile, f.verbose)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	color.Apply()
	theme, err := themeFor(cfg)
	if err != nil {
		return err
	}

	tp := tracing.Noop()
	if f.trace {
		if tp, err = tracing.Open(f.traceOutput); err != nil {
			return err
		}
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("flush spans", "error", err)
		}
	}()

	opts, err := appOptions(cfg, f.deterministic, logger)
	if err != nil {
		return err
	}
	opts.Tracer = tp.Tracer()
	a := app.New(opts)
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tuiOpts := tui.Options{
		Refresh: cfg.Refresh(),
		Theme:   theme,
		ShowFPS: f.showFPS,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		exp := export.New()
		tuiOpts.Sink = &publisher{app: a, exp: exp}
		g.Go(func() error {
			return export.Serve(gctx, cfg.MetricsAddr, exp.Handler(tp.TracerProvider()), logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, a, tuiOpts)
	})

	logger.Info("ttop started", "refresh", cfg.Refresh(), "deterministic", f.deterministic, "metrics_addr", cfg.MetricsAddr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
