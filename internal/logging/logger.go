package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Options configures New. OutputPaths accepts "stdout", "stderr", or file
// paths; files are opened for append and their directories created.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
}

// New builds a logger from opts. Source locations are attached in
// development mode or at debug level.
func New(opts Options) (*slog.Logger, error) {
	level := ParseLevel(opts.Level)
	w, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(w, opts.Format, level, opts.Development || level <= slog.LevelDebug)
}

// NewWithWriter builds a logger on w using the "console" (default) or "json"
// format.
func NewWithWriter(w io.Writer, format string, level slog.Leveler, addSource bool) (*slog.Logger, error) {
	if level == nil {
		level = slog.LevelInfo
	}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		h = newPrettyHandler(w, level, addSource)
	case "json":
		h = newJSONHandler(w, level, addSource)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return slog.New(h), nil
}

// ParseLevel maps a config level name onto slog. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openOutputs(paths []string) (io.Writer, error) {
	var (
		opened  []string
		writers []io.Writer
	)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(opened, p) {
			continue
		}
		opened = append(opened, p)
		w, err := openOutput(p)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openOutput(p string) (io.Writer, error) {
	switch p {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", p, err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
