// Package config loads and validates the ttop configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/ttop/collectors/process"
)

// ErrInvalid is wrapped by every parse and validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the ttop configuration file.
type Config struct {
	// RefreshMs is the collect interval in milliseconds.
	RefreshMs int `yaml:"refresh_ms"`
	// Panels holds the initial visibility of each panel.
	Panels PanelsConfig `yaml:"panels"`
	// Theme selects a preset and optional color overrides.
	Theme ThemeConfig `yaml:"theme"`
	// HistorySecs is how much history the graphs keep.
	HistorySecs int `yaml:"history_secs"`
	// Process holds the process table defaults.
	Process ProcessConfig `yaml:"process"`
	// Network holds interface filtering settings.
	Network NetworkConfig `yaml:"network"`
	// Storage holds the background storage scan settings.
	Storage StorageConfig `yaml:"storage"`
	// LogFile is where logs go; empty discards them.
	LogFile string `yaml:"log_file"`
	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9090".
	MetricsAddr string `yaml:"metrics_addr"`

	lines map[string]int
}

// PanelsConfig toggles panels on start.
type PanelsConfig struct {
	CPU         bool `yaml:"cpu"`
	Memory      bool `yaml:"memory"`
	Disk        bool `yaml:"disk"`
	Network     bool `yaml:"network"`
	Process     bool `yaml:"process"`
	GPU         bool `yaml:"gpu"`
	Sensors     bool `yaml:"sensors"`
	Connections bool `yaml:"connections"`
	Containers  bool `yaml:"containers"`
}

// Visible maps panel names to their flag.
func (p PanelsConfig) Visible() map[string]bool {
	return map[string]bool{
		"cpu":         p.CPU,
		"memory":      p.Memory,
		"disk":        p.Disk,
		"network":     p.Network,
		"process":     p.Process,
		"gpu":         p.GPU,
		"sensors":     p.Sensors,
		"connections": p.Connections,
		"containers":  p.Containers,
	}
}

// ThemeConfig selects the display theme.
type ThemeConfig struct {
	// Name is "monitoring", "minimal" or "full".
	Name string `yaml:"name"`
	// Colors overrides preset colors by name (primary, secondary, success,
	// warning, danger, muted, background).
	Colors map[string]string `yaml:"colors"`
}

// ProcessConfig holds the process table defaults.
type ProcessConfig struct {
	// Sort is one of pid, name, cpu, mem, state, user, threads.
	Sort    string `yaml:"sort"`
	Reverse bool   `yaml:"reverse"`
}

// NetworkConfig holds interface filtering settings.
type NetworkConfig struct {
	IncludeLoopback bool `yaml:"include_loopback"`
}

// StorageConfig holds the storage scan settings. No roots disables the
// scan.
type StorageConfig struct {
	Roots []string `yaml:"roots"`
	Depth int      `yaml:"depth"`
}

// Limits on configuration values.
const (
	MinRefreshMs    = 100
	MinHistorySecs  = 10
	MaxHistorySecs  = 3600
	MaxStorageDepth = 32
)

var (
	validThemes = map[string]bool{"minimal": true, "full": true, "monitoring": true}
	hexColor    = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshMs: 1000,
		Panels: PanelsConfig{
			CPU:         true,
			Memory:      true,
			Disk:        true,
			Network:     true,
			Process:     true,
			GPU:         true,
			Sensors:     true,
			Connections: true,
			Containers:  true,
		},
		Theme:       ThemeConfig{Name: "monitoring"},
		HistorySecs: 300,
		Process:     ProcessConfig{Sort: "cpu", Reverse: false},
		Storage:     StorageConfig{Depth: 4},
	}
}

// DefaultPath returns ~/.config/trueno-monitor/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "trueno-monitor", "config.yaml")
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := config.decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := config.decode(data); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.TrimPrefix(err.Error(), "yaml: "))
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		c.lines = make(map[string]int)
		recordLines(&root, "", c.lines)
	}
	return nil
}

// recordLines maps every dotted key path to the line it appears on.
func recordLines(n *yaml.Node, prefix string, lines map[string]int) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, child := range n.Content {
			recordLines(child, prefix, lines)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			path := k.Value
			if prefix != "" {
				path = prefix + "." + k.Value
			}
			lines[path] = k.Line
			recordLines(n.Content[i+1], path, lines)
		}
	}
}

// FieldError is a validation failure of one key.
type FieldError struct {
	Key string
	// Line is where Key appears in the file, or 0 when it came from the
	// defaults.
	Line int
	Msg  string
}

func (e *FieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config: line %d: %s: %s", e.Line, e.Key, e.Msg)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

// Is reports ErrInvalid.
func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

func (c *Config) invalid(key, format string, args ...any) error {
	return &FieldError{Key: key, Line: c.lines[key], Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for logical consistency. The first
// failing key is reported, with its line when the config came from a file.
func (c *Config) Validate() error {
	if c.RefreshMs < MinRefreshMs {
		return c.invalid("refresh_ms", "must be at least %d, got %d", MinRefreshMs, c.RefreshMs)
	}
	if c.HistorySecs < MinHistorySecs || c.HistorySecs > MaxHistorySecs {
		return c.invalid("history_secs", "must be between %d and %d, got %d", MinHistorySecs, MaxHistorySecs, c.HistorySecs)
	}

	if !validThemes[c.Theme.Name] {
		return c.invalid("theme.name", "must be 'minimal', 'full', or 'monitoring', got %q", c.Theme.Name)
	}
	names := make([]string, 0, len(c.Theme.Colors))
	for name := range c.Theme.Colors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := c.Theme.Colors[name]; !hexColor.MatchString(v) {
			return c.invalid("theme.colors."+name, "must be #rgb or #rrggbb, got %q", v)
		}
	}

	if _, err := process.ParseSortColumn(c.Process.Sort); err != nil {
		return c.invalid("process.sort", "unknown column %q", c.Process.Sort)
	}

	if c.Storage.Depth < 0 || c.Storage.Depth > MaxStorageDepth {
		return c.invalid("storage.depth", "must be between 0 and %d, got %d", MaxStorageDepth, c.Storage.Depth)
	}
	for i, root := range c.Storage.Roots {
		if strings.TrimSpace(root) == "" {
			return c.invalid("storage.roots", "entry %d is empty", i)
		}
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return c.invalid("metrics_addr", "%v", err)
		}
	}
	return nil
}

// Refresh returns the collect interval.
func (c *Config) Refresh() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// HistoryLen is the number of samples that cover HistorySecs at the
// configured refresh rate.
func (c *Config) HistoryLen() int {
	if c.RefreshMs <= 0 {
		return max(1, c.HistorySecs)
	}
	return max(1, c.HistorySecs*1000/c.RefreshMs)
}
