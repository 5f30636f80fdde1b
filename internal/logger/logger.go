// Package logger holds the process-wide structured logger used by sdrkit
// components that are not handed one explicitly.
package logger

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FileName is the log file written under Options.LogDir.
const FileName = "sdrctl.log"

// L discards everything until Init enables it.
var L = slog.New(slog.DiscardHandler)

// Options configures Init.
type Options struct {
	Enabled bool
	LogDir  string     // JSON lines appended to LogDir/FileName; empty means text on stderr
	Level   slog.Level // zero is LevelInfo
}

// Init replaces L according to opts.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return nil
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(opts.LogDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		L = slog.New(slog.NewJSONHandler(f, hopts))
		return nil
	}
	L = slog.New(slog.NewTextHandler(os.Stderr, hopts))
	return nil
}
