// Package export serves the latest metric snapshot over HTTP: Prometheus
// exposition on /metrics and the raw snapshot as JSON on /snapshot.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/tinyland/lab/ttop/internal/format"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const namespace = "ttop"

// Exporter is a prometheus.Collector over the last published snapshot.
// Publish is called from the frame loop; scrapes read a private copy under
// the lock.
type Exporter struct {
	mu   sync.RWMutex
	snap *metrics.Metrics
}

var _ prometheus.Collector = (*Exporter)(nil)

// New creates an Exporter with an empty snapshot.
func New() *Exporter {
	return &Exporter{}
}

// Publish replaces the exported snapshot with a copy of m.
func (e *Exporter) Publish(m *metrics.Metrics) {
	if m == nil {
		return
	}
	cp := m.Clone()
	e.mu.Lock()
	e.snap = cp
	e.mu.Unlock()
}

// Snapshot returns the last published snapshot, or nil.
func (e *Exporter) Snapshot() *metrics.Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Describe sends nothing: the metric set follows the snapshot, so the
// exporter is an unchecked collector.
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect converts every snapshot entry into a constant metric named
// ttop_<key>. Keys that fold to an already emitted name are skipped.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.Snapshot()
	if snap == nil {
		return
	}
	seen := make(map[string]bool, snap.Len())
	for key, v := range snap.All() {
		name := prometheus.BuildFQName(namespace, "", format.Key(key))
		if seen[name] {
			continue
		}
		seen[name] = true
		desc := prometheus.NewDesc(name, key, nil, nil)

		var (
			m   prometheus.Metric
			err error
		)
		switch v.Kind() {
		case metrics.KindCounter:
			m, err = prometheus.NewConstMetric(desc, prometheus.CounterValue, v.Float())
		case metrics.KindHistogram:
			h, _ := snap.Histogram(key)
			buckets := make(map[float64]uint64, len(h.Buckets))
			for _, b := range h.Buckets {
				buckets[b.UpperBound] = b.Count
			}
			m, err = prometheus.NewConstHistogram(desc, h.Count, h.Sum, buckets)
		default:
			m, err = prometheus.NewConstMetric(desc, prometheus.GaugeValue, v.Float())
		}
		if err != nil {
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

// Handler returns the HTTP routes. A nil tp disables span creation.
func (e *Exporter) Handler(tp trace.TracerProvider) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)

	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}

	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.Handle("/metrics", otelhttp.NewHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), "metrics", opts...))
	mux.Handle("/snapshot", otelhttp.NewHandler(http.HandlerFunc(e.serveSnapshot), "snapshot", opts...))
	return mux
}

func (e *Exporter) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := e.Snapshot()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("export: listen %s: %w", addr, err)
	}
	return serve(ctx, ln, h, logger)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return fmt.Errorf("export: serve: %w", err)
}
