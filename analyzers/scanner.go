package analyzers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ScanResult is the output of one storage scan.
type ScanResult struct {
	Roots     []string
	Files     int
	Bytes     int64
	Anomalies []Anomaly
	Totals    []CategoryTotal
	Largest   []FileSize
	Duration  time.Duration
	Err       error
}

// StorageScanner runs storage walks on a single background goroutine and
// hands results back through a queue of one. The frame loop polls it with
// Poll, which never blocks.
type StorageScanner struct {
	logger  *slog.Logger
	opts    WalkOptions
	walk    func(ctx context.Context, roots []string, opts WalkOptions) ([]FileSize, error)
	results chan ScanResult

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewStorageScanner creates an idle scanner.
func NewStorageScanner(opts WalkOptions, logger *slog.Logger) *StorageScanner {
	return &StorageScanner{
		logger:  discardLogger(logger),
		opts:    opts,
		walk:    WalkSizes,
		results: make(chan ScanResult, 1),
	}
}

// Start begins a scan of roots unless one is already running. It reports
// whether a scan was started.
func (s *StorageScanner) Start(ctx context.Context, roots []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || len(roots) == 0 {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, roots)
	return true
}

func (s *StorageScanner) run(ctx context.Context, roots []string) {
	defer s.wg.Done()
	start := time.Now()
	files, err := s.walk(ctx, roots, s.opts)
	res := Summarize(files)
	res.Roots = roots
	res.Err = err
	res.Duration = time.Since(start)
	s.logger.Debug("storage scan finished", "roots", roots, "files", res.Files, "duration", res.Duration, "error", err)

	// Drop a stale unread result so the newest one wins.
	select {
	case <-s.results:
	default:
	}
	s.results <- res

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()
}

// Poll returns a finished result if one is waiting.
func (s *StorageScanner) Poll() (ScanResult, bool) {
	select {
	case r := <-s.results:
		return r, true
	default:
		return ScanResult{}, false
	}
}

// Running reports whether a scan is in progress.
func (s *StorageScanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop cancels a running scan and waits for the worker to exit.
func (s *StorageScanner) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Summarize computes totals, anomalies and the ten largest files.
func Summarize(files []FileSize) ScanResult {
	fa := NewFileAnalyzer()
	res := ScanResult{Files: len(files)}
	for _, f := range files {
		fa.Add(f)
		res.Bytes += f.Size
	}
	res.Totals = fa.Totals()
	res.Anomalies = DetectAnomalies(files)
	res.Largest = largest(files, 10)
	return res
}

func largest(files []FileSize, n int) []FileSize {
	out := make([]FileSize, 0, n)
	for _, f := range files {
		i := len(out)
		for i > 0 && out[i-1].Size < f.Size {
			i--
		}
		if i >= n {
			continue
		}
		if len(out) < n {
			out = append(out, FileSize{})
		}
		copy(out[i+1:], out[i:len(out)-1])
		out[i] = f
	}
	return out
}
