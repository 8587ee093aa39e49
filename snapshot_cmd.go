package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/display/color"
	"gitlab.com/tinyland/lab/ttop/display/render"
	"gitlab.com/tinyland/lab/ttop/display/tui"
)

// Fallback size when stdout is not a terminal.
const (
	defaultWidth  = 120
	defaultHeight = 40
)

type snapshotFlags struct {
	json          bool
	png           string
	width, height int
	interval      time.Duration
}

func newSnapshotCmd(root *flags) *cobra.Command {
	sf := &snapshotFlags{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Collect once and print the dashboard or the raw metrics",
		Long: `Collect twice, one interval apart so rates are defined, then print a
single dashboard frame or the metric snapshot as JSON.

Examples:
  ttop snapshot
  ttop snapshot --json
  ttop snapshot --png history.png --width 160 --height 48`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd, root, sf)
		},
	}
	cmd.Flags().BoolVar(&sf.json, "json", false, "print the metric snapshot as JSON")
	cmd.Flags().StringVar(&sf.png, "png", "", "also write the history graphs to this PNG file")
	cmd.Flags().IntVar(&sf.width, "width", 0, "frame width in cells (default: terminal width)")
	cmd.Flags().IntVar(&sf.height, "height", 0, "frame height in cells (default: terminal height)")
	cmd.Flags().DurationVar(&sf.interval, "interval", 500*time.Millisecond, "pause between the two collects")
	return cmd
}

// frameSize resolves the output size from the flags, then the terminal,
// then the defaults.
func frameSize(width, height int) (int, int) {
	if width > 0 && height > 0 {
		return width, height
	}
	w, h, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}
	if width > 0 {
		w = width
	}
	if height > 0 {
		h = height
	}
	return w, h
}

func runSnapshot(cmd *cobra.Command, root *flags, sf *snapshotFlags) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg.LogFile, root.verbose)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	if root.deterministic {
		color.ForceDisable()
	} else {
		color.Apply()
	}
	theme, err := themeFor(cfg)
	if err != nil {
		return err
	}
	opts, err := appOptions(cfg, root.deterministic, logger)
	if err != nil {
		return err
	}
	opts.StorageRoots = nil
	a := app.New(opts)
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.CollectMetrics(ctx)
	if !root.deterministic && sf.interval > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sf.interval):
		}
	}
	snap := a.CollectMetrics(ctx)

	out := cmd.OutOrStdout()
	w, h := frameSize(sf.width, sf.height)
	if sf.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	} else {
		text := tui.Render(a, w, h, tui.RenderOptions{Theme: theme})
		if err := (render.Writer{W: out}).Present(render.Frame{Seq: 1, Width: w, Height: h, Text: text}); err != nil {
			return err
		}
	}

	if sf.png != "" {
		f := render.Frame{Seq: 1, Width: w, Height: h, Series: tui.FrameSeries(a)}
		if err := (render.PNG{Path: sf.png, Scale: 2}).Present(f); err != nil {
			return err
		}
	}
	return nil
}
