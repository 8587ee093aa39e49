package collectors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// ErrorKind classifies a collection failure.
type ErrorKind int

const (
	// KindTransient is a per-call failure that is retried on the next tick.
	KindTransient ErrorKind = iota
	// KindUnavailable means the subsystem is absent on this host. It is
	// terminal for the collector.
	KindUnavailable
	// KindPermission means the source exists but cannot be read.
	KindPermission
	// KindParse means the source was read but its contents were malformed.
	KindParse
	// KindTimeout means the read exceeded its deadline.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnavailable:
		return "unavailable"
	case KindPermission:
		return "permission"
	case KindParse:
		return "parse"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CollectionError is returned by Collector.Collect.
type CollectionError struct {
	Kind      ErrorKind
	Collector string
	// Source is the file or command that failed, when known.
	Source string
	// Line is the 1-based line of Source that failed to parse, or 0.
	Line int
	Err  error
}

func (e *CollectionError) Error() string {
	msg := e.Collector + ": " + e.Kind.String()
	if e.Source != "" {
		msg += " " + e.Source
		if e.Line > 0 {
			msg += fmt.Sprintf(":%d", e.Line)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CollectionError) Unwrap() error { return e.Err }

// NewError builds a CollectionError of the given kind.
func NewError(kind ErrorKind, collector, source string, err error) *CollectionError {
	return &CollectionError{Kind: kind, Collector: collector, Source: source, Err: err}
}

// ParseError builds a KindParse error pointing at source:line.
func ParseError(collector, source string, line int, err error) *CollectionError {
	return &CollectionError{Kind: KindParse, Collector: collector, Source: source, Line: line, Err: err}
}

// Classify wraps err as a CollectionError, inferring the kind from the
// underlying cause. Errors that already are CollectionErrors pass through.
func Classify(collector, source string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollectionError
	if errors.As(err, &ce) {
		return err
	}
	var pe *procfs.ParseError
	if errors.As(err, &pe) {
		return &CollectionError{Kind: KindParse, Collector: collector, Source: pe.Path, Line: pe.Line, Err: pe.Err}
	}
	kind := KindTransient
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindUnavailable
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermission
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	}
	return &CollectionError{Kind: kind, Collector: collector, Source: source, Err: err}
}

// KindOf returns the kind of err. Errors that are not CollectionErrors are
// treated as transient.
func KindOf(err error) ErrorKind {
	var ce *CollectionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}

// IsTerminal reports whether the collector that produced err should stop
// being polled.
func IsTerminal(err error) bool {
	return err != nil && KindOf(err) == KindUnavailable
}
