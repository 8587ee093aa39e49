// Package procfs reads the small text files under /proc and /sys that the
// collectors and analyzers sample. Every read opens, consumes and closes its
// file before returning.
package procfs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxLine bounds a single line; /proc files never come close.
const maxLine = 64 * 1024

// ParseError points at the line of a file that could not be parsed.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrShortLine is returned when a line has fewer fields than expected.
var ErrShortLine = errors.New("too few fields")

// FS is a proc or sys tree rooted at Root ("/proc", "/sys", or a test fixture).
type FS struct {
	Root string
}

// Path joins elem onto the root.
func (fs FS) Path(elem ...string) string {
	return filepath.Join(append([]string{fs.Root}, elem...)...)
}

// Exists reports whether the path exists.
func (fs FS) Exists(elem ...string) bool {
	_, err := os.Stat(fs.Path(elem...))
	return err == nil
}

// Lines calls fn for every line of the file. fn receives the 1-based line
// number; a non-nil error from fn stops the scan and is returned wrapped in a
// *ParseError for that line.
func (fs FS) Lines(fn func(n int, line string) error, elem ...string) error {
	path := fs.Path(elem...)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, sc.Text()); err != nil {
			return &ParseError{Path: path, Line: n, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("procfs: read %s: %w", path, err)
	}
	return nil
}

// String returns the file contents with surrounding whitespace trimmed.
func (fs FS) String(elem ...string) (string, error) {
	data, err := os.ReadFile(fs.Path(elem...))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Uint parses the file as a single unsigned integer.
func (fs FS) Uint(elem ...string) (uint64, error) {
	s, err := fs.String(elem...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &ParseError{Path: fs.Path(elem...), Line: 1, Err: err}
	}
	return v, nil
}

// Int parses the file as a single signed integer.
func (fs FS) Int(elem ...string) (int64, error) {
	s, err := fs.String(elem...)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ParseError{Path: fs.Path(elem...), Line: 1, Err: err}
	}
	return v, nil
}

// Glob returns the root-relative matches of pattern, sorted.
func (fs FS) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(fs.Path(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(fs.Root, m)
		if err != nil {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// KV parses "Key:   value unit" lines such as /proc/meminfo. The unit
// suffix "kB" is applied, so values are returned in bytes when present.
func KV(line string) (key string, value uint64, err error) {
	k, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", 0, ErrShortLine
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", 0, ErrShortLine
	}
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return "", 0, err
	}
	if len(fields) > 1 && fields[1] == "kB" {
		v *= 1024
	}
	return strings.TrimSpace(k), v, nil
}

// Uints parses every field of fields as uint64.
func Uints(fields []string) ([]uint64, error) {
	out := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
