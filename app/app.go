// Package app owns the monitor's state: collectors, analyzers, histories,
// panel layout and the key-press state machine. It is driven by the frame
// loop in display/tui and never touches the terminal itself.
package app

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gitlab.com/tinyland/lab/ttop/analyzers"
	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/collectors/battery"
	"gitlab.com/tinyland/lab/ttop/collectors/cpu"
	"gitlab.com/tinyland/lab/ttop/collectors/disk"
	"gitlab.com/tinyland/lab/ttop/collectors/memory"
	"gitlab.com/tinyland/lab/ttop/collectors/network"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
	"gitlab.com/tinyland/lab/ttop/collectors/retry"
	"gitlab.com/tinyland/lab/ttop/collectors/sensors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	// DefaultHistoryLen is five minutes of samples at 1 Hz.
	DefaultHistoryLen = 300
	// FrameHistoryLen is how many recent frame times are kept.
	FrameHistoryLen = 120

	procHistoryLen  = 60
	defaultPageSize = 10

	// storageRescan is the pause between storage scans.
	storageRescan = 5 * time.Minute
)

// Options configures an App.
type Options struct {
	// Deterministic disables every OS read. Collectors emit fed or zero
	// samples and OS-only analyzers are skipped.
	Deterministic bool
	// HistoryLen is the capacity of every time-series ring. Zero means
	// DefaultHistoryLen.
	HistoryLen int
	// Panels sets initial visibility. Nil shows every panel.
	Panels *Panels
	Sort   process.SortColumn
	// Reverse flips the process sort direction.
	Reverse bool

	ProcRoot        string
	SysRoot         string
	IncludeLoopback bool

	// StorageRoots enables the background storage scanner.
	StorageRoots []string
	StorageDepth int

	Logger *slog.Logger
	Tracer trace.Tracer
	// Now overrides the clock used for scan scheduling, for tests.
	Now func() time.Time
}

// Analysis holds the cached output of every analyzer from the last collect.
type Analysis struct {
	Swap        analyzers.SwapReport
	DiskLatency []analyzers.DiskLatency
	// PSI is nil when pressure information is unavailable.
	PSI         *analyzers.PSI
	Connections []analyzers.Connection
	GPU         []analyzers.GpuProcess
	Containers  []analyzers.Container
	Sensors     analyzers.SensorReport
	// Storage is the last finished storage scan, or nil.
	Storage *analyzers.ScanResult
}

// App is the monitor state. It is not safe for concurrent use; the frame
// loop owns it.
type App struct {
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
	deterministic bool
	keys          KeyMap

	registry *collectors.Registry
	order    []string
	cpu      *cpu.Collector
	mem      *memory.Collector
	disk     *disk.Collector
	net      *network.Collector
	proc     *process.Collector
	sens     *sensors.Collector
	batt     *battery.Collector

	swap       *analyzers.SwapAnalyzer
	psi        *analyzers.PsiAnalyzer
	conns      *analyzers.ConnectionAnalyzer
	gpu        *analyzers.GpuProcessAnalyzer
	containers *analyzers.ContainerAnalyzer
	scanner    *analyzers.StorageScanner
	roots      []string
	lastScan   time.Time
	analysis   Analysis

	hist   *histories
	frames *frameStats

	panels   Panels
	selected Panel
	sortCol  process.SortColumn
	reverse  bool
	showHelp bool
	showTree bool
	scroll   [panelCount]int
	pageSize int

	snapshot *metrics.Metrics
	latest   map[string]*metrics.Metrics
	lastErr  map[string]error
	disabled map[string]bool
	warned   map[string]bool
	collects int
}

// New builds an App and its collectors. In live mode each collector is
// wrapped in a circuit breaker and collectors that report unavailable are
// disabled up front.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("ttop")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	histLen := opts.HistoryLen
	if histLen <= 0 {
		histLen = DefaultHistoryLen
	}

	a := &App{
		logger:        logger,
		tracer:        tracer,
		now:           now,
		deterministic: opts.Deterministic,
		keys:          DefaultKeyMap(),
		registry:      collectors.NewRegistry(),
		hist:          newHistories(histLen),
		frames:        newFrameStats(FrameHistoryLen),
		panels:        DefaultPanels(),
		sortCol:       opts.Sort,
		reverse:       opts.Reverse,
		pageSize:      defaultPageSize,
		latest:        make(map[string]*metrics.Metrics),
		lastErr:       make(map[string]error),
		disabled:      make(map[string]bool),
		warned:        make(map[string]bool),
		roots:         opts.StorageRoots,
	}
	if opts.Panels != nil {
		a.panels = *opts.Panels
	}
	a.selected = firstVisible(a.panels)

	det := opts.Deterministic
	a.cpu = cpu.New(cpu.Options{Deterministic: det, ProcRoot: opts.ProcRoot, Logger: logger})
	a.mem = memory.New(memory.Options{Deterministic: det, ProcRoot: opts.ProcRoot, Logger: logger})
	a.disk = disk.New(disk.Options{Deterministic: det, ProcRoot: opts.ProcRoot, Logger: logger})
	a.net = network.New(network.Options{Deterministic: det, ProcRoot: opts.ProcRoot, IncludeLoopback: opts.IncludeLoopback, Logger: logger})
	a.proc = process.New(process.Options{Deterministic: det, ProcRoot: opts.ProcRoot, Logger: logger})
	a.sens = sensors.New(sensors.Options{Deterministic: det, SysRoot: opts.SysRoot, Logger: logger})
	a.batt = battery.New(battery.Options{Deterministic: det, SysRoot: opts.SysRoot, Logger: logger})

	for _, c := range []collectors.Collector{a.cpu, a.mem, a.disk, a.net, a.proc, a.sens, a.batt} {
		a.order = append(a.order, c.ID())
		if det {
			a.registry.Register(c)
			continue
		}
		if !c.IsAvailable() {
			a.disable(c.ID(), collectors.NewError(collectors.KindUnavailable, c.ID(), "", nil))
		}
		cfg := retry.DefaultConfig()
		cfg.Logger = logger
		a.registry.Register(retry.NewCircuitBreaker(c, cfg))
	}

	sysRoot := opts.SysRoot
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	if det {
		a.swap = analyzers.NewSwapAnalyzer("")
	} else {
		a.swap = analyzers.NewSwapAnalyzer(sysRoot)
		a.psi = analyzers.NewPsiAnalyzer(opts.ProcRoot)
		a.conns = analyzers.NewConnectionAnalyzer(opts.ProcRoot)
		a.gpu = analyzers.NewGpuProcessAnalyzer(opts.ProcRoot, analyzers.NvidiaSmi())
		a.containers = analyzers.NewContainerAnalyzer(filepath.Join(sysRoot, "fs", "cgroup"))
		if !a.containers.Available() {
			a.disable("containers", fs.ErrNotExist)
		}
		if len(opts.StorageRoots) > 0 {
			a.scanner = analyzers.NewStorageScanner(analyzers.WalkOptions{Depth: opts.StorageDepth, MaxFiles: 200000}, logger)
		}
	}
	return a
}

func firstVisible(ps Panels) Panel {
	if shown := ps.Shown(); len(shown) > 0 {
		return shown[0]
	}
	return PanelCPU
}

// CollectMetrics polls every enabled collector once, updates histories and
// analyzers, and returns the merged snapshot. A failing collector never
// stops the others.
func (a *App) CollectMetrics(ctx context.Context) *metrics.Metrics {
	ctx, span := a.tracer.Start(ctx, "collect")
	defer span.End()

	merged := metrics.New(a.now())
	var newest time.Time
	for _, id := range a.order {
		if a.disabled[id] {
			continue
		}
		c, ok := a.registry.Get(id)
		if !ok {
			continue
		}
		m, err := a.collectOne(ctx, c)
		if err != nil {
			a.handleError(id, err)
			continue
		}
		delete(a.lastErr, id)
		a.latest[id] = m
		merged.Merge(m)
		if m.Timestamp.After(newest) {
			newest = m.Timestamp
		}
	}
	if a.deterministic {
		merged.Timestamp = newest
	}
	a.collects++
	a.snapshot = merged

	a.updateHistories()
	a.runAnalyzers(ctx)
	span.SetAttributes(attribute.Int("ttop.metrics", merged.Len()), attribute.Int("ttop.failed", len(a.lastErr)))
	return merged
}

func (a *App) collectOne(ctx context.Context, c collectors.Collector) (*metrics.Metrics, error) {
	ctx, span := a.tracer.Start(ctx, "collect."+c.ID())
	defer span.End()
	m, err := c.Collect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, collectors.KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Int("ttop.metrics", m.Len()))
	return m, nil
}

// handleError applies the per-kind policy: unavailable collectors are
// disabled, permission problems are surfaced once, parse errors carry the
// source location and transient errors are retried on the next tick.
func (a *App) handleError(id string, err error) {
	if collectors.IsTerminal(err) {
		a.disable(id, err)
		return
	}
	a.lastErr[id] = err
	switch collectors.KindOf(err) {
	case collectors.KindPermission:
		if !a.warned[id] {
			a.warned[id] = true
			a.logger.Warn("permission denied; data will be partial (run as root or grant CAP_SYS_PTRACE for full detail)",
				"collector", id, "error", err)
		}
	case collectors.KindParse:
		var ce *collectors.CollectionError
		if errors.As(err, &ce) {
			a.logger.Warn("skipping malformed sample", "collector", id, "source", ce.Source, "line", ce.Line, "error", ce.Err)
		} else {
			a.logger.Warn("skipping malformed sample", "collector", id, "error", err)
		}
	default:
		a.logger.Debug("collect failed; retrying next tick", "collector", id, "error", err)
	}
}

// disable stops polling id for good. Disabled ids are not failures: they
// stay out of lastErr and the footer.
func (a *App) disable(id string, err error) {
	delete(a.lastErr, id)
	if a.disabled[id] {
		return
	}
	a.disabled[id] = true
	a.logger.Info("unavailable on this host; disabling", "source", id, "error", err)
}

func (a *App) runAnalyzers(ctx context.Context) {
	_, span := a.tracer.Start(ctx, "analyze")
	defer span.End()

	if m := a.latest["memory"]; m != nil && a.lastErr["memory"] == nil {
		a.swap.ObserveMetrics(m)
	}
	rep, err := a.swap.Report()
	if err != nil {
		a.logger.Debug("zram stats", "error", err)
	}
	a.analysis.Swap = rep
	a.analysis.DiskLatency = analyzers.AnalyzeDisks(a.disk.Devices())
	a.analysis.Sensors = analyzers.AnalyzeSensors(a.sens.Readings())

	if a.deterministic {
		return
	}
	if a.psi.Available() {
		if p, err := a.psi.Read(); err == nil {
			a.analysis.PSI = &p
		} else {
			a.logger.Debug("psi", "error", err)
		}
	}
	if a.panels.Visible(PanelConnections) {
		a.runAnalyzer("connections", func() error {
			conns, err := a.conns.Connections(ctx)
			a.analysis.Connections = conns
			return err
		})
	}
	if a.panels.Visible(PanelGPU) {
		a.runAnalyzer("gpu", func() error {
			procs, err := a.gpu.Processes(ctx)
			a.analysis.GPU = procs
			return err
		})
	}
	if a.panels.Visible(PanelContainers) {
		a.runAnalyzer("containers", func() error {
			cs, err := a.containers.Containers()
			a.analysis.Containers = cs
			return err
		})
	}
	a.pollStorage(ctx)
}

func (a *App) runAnalyzer(id string, fn func() error) {
	if a.disabled[id] {
		return
	}
	if err := fn(); err != nil {
		if err = collectors.Classify(id, "", err); collectors.IsTerminal(err) {
			a.disable(id, err)
			return
		}
		a.lastErr[id] = err
		a.logger.Debug("analyzer failed", "analyzer", id, "error", err)
		return
	}
	delete(a.lastErr, id)
}

func (a *App) pollStorage(ctx context.Context) {
	if a.scanner == nil {
		return
	}
	if res, ok := a.scanner.Poll(); ok {
		a.analysis.Storage = &res
	}
	if now := a.now(); !a.scanner.Running() && (a.lastScan.IsZero() || now.Sub(a.lastScan) >= storageRescan) {
		if a.scanner.Start(context.WithoutCancel(ctx), a.roots) {
			a.lastScan = now
		}
	}
}

// Close stops background work.
func (a *App) Close() {
	if a.scanner != nil {
		a.scanner.Stop()
	}
}
