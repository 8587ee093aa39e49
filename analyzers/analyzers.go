// Package analyzers derives higher-level findings from collector output and
// from OS sources the collectors do not cover: thrashing severity, disk
// latency, storage anomalies, pressure stall levels, sockets, GPU and
// container usage, sensor health and treemap layouts.
//
// Analyzers own only their own caches. They read metrics.Metrics or typed
// collector snapshots passed in by the caller and never reach into a
// collector's private state.
package analyzers

import (
	"io"
	"log/slog"
)

func discardLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
