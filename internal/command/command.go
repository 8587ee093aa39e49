// Package command runs short external probes (pmset, nvidia-smi) with a hard
// deadline so a hung tool cannot stall the frame loop.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrNotFound is returned when the program is not on PATH.
var ErrNotFound = errors.New("command: not found")

// Runner runs a program and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Run executes name with args, killing it after timeout. A deadline hit is
// reported as context.DeadlineExceeded.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ctx.Err()
	}
	return string(out), err
}

// Bounded returns a Runner that applies timeout to every call.
func Bounded(timeout time.Duration) Runner {
	return func(ctx context.Context, name string, args ...string) (string, error) {
		return Run(ctx, timeout, name, args...)
	}
}
