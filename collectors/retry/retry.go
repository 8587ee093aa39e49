// Package retry wraps live collectors in a circuit breaker. After
// MaxFailures consecutive per-call errors the breaker opens and the
// collector's OS reads are skipped, for a timeout that grows on every
// failed probe up to MaxResetTimeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

// ErrOpen is wrapped by the transient error returned while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

// Compile-time check: CircuitBreaker satisfies the Collector interface.
var _ collectors.Collector = (*CircuitBreaker)(nil)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is normal operation; requests pass through to the collector.
	StateClosed State = iota
	// StateOpen means failures exceeded the threshold; requests are blocked.
	StateOpen
	// StateHalfOpen is a probe state testing whether the collector has recovered.
	StateHalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures the circuit breaker behavior.
type Config struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// ResetTimeout is the initial wait duration before transitioning from Open to HalfOpen.
	ResetTimeout time.Duration
	// MaxResetTimeout caps the exponential backoff.
	MaxResetTimeout time.Duration
	// BackoffMultiplier is the factor by which ResetTimeout increases on each re-open.
	BackoffMultiplier float64
	// Logger for circuit breaker events. Nil is safe (a discard logger is used).
	Logger *slog.Logger
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		MaxFailures:       5,
		ResetTimeout:      5 * time.Second,
		MaxResetTimeout:   2 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Stats holds circuit breaker statistics for external inspection.
type Stats struct {
	State            State
	ConsecutiveFails int
	TotalFailures    int
	TotalSuccesses   int
	LastFailure      time.Time
	LastSuccess      time.Time
	CurrentTimeout   time.Duration
	ConsecutiveSkips int
}

// CircuitBreaker wraps a collectors.Collector with failure tracking and
// automatic circuit opening/closing.
type CircuitBreaker struct {
	collector collectors.Collector
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	lastSuccess      time.Time
	currentTimeout   time.Duration
	totalFailures    int
	totalSuccesses   int
	consecutiveSkips int
}

// NewCircuitBreaker wraps a collector with circuit breaker logic.
// If cfg.Logger is nil, a discard logger is used.
func NewCircuitBreaker(c collectors.Collector, cfg Config) *CircuitBreaker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		collector:      c,
		config:         cfg,
		logger:         logger,
		now:            now,
		state:          StateClosed,
		currentTimeout: cfg.ResetTimeout,
	}
}

// ID delegates to the wrapped collector.
func (cb *CircuitBreaker) ID() string {
	return cb.collector.ID()
}

// Unwrap returns the wrapped collector.
func (cb *CircuitBreaker) Unwrap() collectors.Collector {
	return cb.collector
}

// Description delegates to the wrapped collector, appending the circuit state.
func (cb *CircuitBreaker) Description() string {
	cb.mu.Lock()
	state := cb.state
	cb.mu.Unlock()
	return fmt.Sprintf("%s [circuit: %s]", cb.collector.Description(), state)
}

// IsAvailable delegates to the wrapped collector.
func (cb *CircuitBreaker) IsAvailable() bool {
	return cb.collector.IsAvailable()
}

// Collect runs the wrapped collector unless the circuit is open. While open
// it returns a transient error wrapping ErrOpen without touching the OS;
// once the timeout has passed the next call is a half-open probe.
func (cb *CircuitBreaker) Collect(ctx context.Context) (*metrics.Metrics, error) {
	cb.mu.Lock()
	probe, skip := cb.admit()
	cb.mu.Unlock()
	if skip != nil {
		return nil, skip
	}

	m, err := cb.collector.Collect(ctx)

	cb.mu.Lock()
	cb.after(err, probe)
	cb.mu.Unlock()
	return m, err
}

// admit decides whether a call may reach the collector. probe is true for
// the single call made in the half-open state. Called with mu held.
func (cb *CircuitBreaker) admit() (probe bool, skip error) {
	if cb.state == StateClosed {
		return false, nil
	}
	if cb.state == StateOpen {
		remaining := cb.currentTimeout - cb.now().Sub(cb.lastFailure)
		if remaining > 0 {
			cb.consecutiveSkips++
			cb.logger.Debug("circuit open, skipping collect",
				"collector", cb.collector.ID(),
				"failures", cb.failures,
				"retry_in", remaining,
				"skips", cb.consecutiveSkips,
			)
			return false, collectors.NewError(collectors.KindTransient, cb.collector.ID(), "",
				fmt.Errorf("%w (failures: %d, retry in %s)", ErrOpen, cb.failures, remaining.Truncate(time.Second)))
		}
		cb.state = StateHalfOpen
		cb.logger.Info("circuit half-open, probing", "collector", cb.collector.ID())
	}
	return true, nil
}

// after records the outcome of a call. A missing subsystem never recovers,
// so outside a probe it is left for the caller to disable rather than
// counted. Called with mu held.
func (cb *CircuitBreaker) after(err error, probe bool) {
	now := cb.now()
	if err == nil {
		cb.failures = 0
		cb.consecutiveSkips = 0
		cb.totalSuccesses++
		cb.lastSuccess = now
		if probe {
			cb.state = StateClosed
			cb.currentTimeout = cb.config.ResetTimeout
			cb.logger.Info("circuit closed after probe", "collector", cb.collector.ID())
		}
		return
	}
	if !probe && collectors.IsTerminal(err) {
		return
	}

	cb.failures++
	cb.totalFailures++
	cb.lastFailure = now
	switch {
	case probe:
		cb.currentTimeout = min(time.Duration(float64(cb.currentTimeout)*cb.config.BackoffMultiplier), cb.config.MaxResetTimeout)
		cb.state = StateOpen
		cb.logger.Warn("circuit re-opened after failed probe",
			"collector", cb.collector.ID(),
			"failures", cb.failures,
			"next_timeout", cb.currentTimeout,
		)
	case cb.failures >= cb.config.MaxFailures:
		cb.state = StateOpen
		cb.currentTimeout = cb.config.ResetTimeout
		cb.logger.Warn("circuit opened",
			"collector", cb.collector.ID(),
			"failures", cb.failures,
			"error", err,
			"timeout", cb.currentTimeout,
		)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the circuit breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:            cb.state,
		ConsecutiveFails: cb.failures,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		LastFailure:      cb.lastFailure,
		LastSuccess:      cb.lastSuccess,
		CurrentTimeout:   cb.currentTimeout,
		ConsecutiveSkips: cb.consecutiveSkips,
	}
}

// Reset forces the circuit breaker back to the closed state, clearing all
// failure counters and restoring the initial timeout.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.consecutiveSkips = 0
	cb.currentTimeout = cb.config.ResetTimeout
	cb.logger.Info("circuit breaker manually reset",
		"collector", cb.collector.ID(),
	)
}
