package appcache

import (
	"log/slog"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// SetLogger overrides the logger used throughout the manifest lifecycle —
// installation, association recording, fetch resolution, and GC sweeps. If
// never called, GetLogger falls back to slog.Default() on first read.
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the logger configured via SetLogger, or slog.Default()
// if none was set.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = slog.Default()
		}
	})
	return logger
}

// Component returns the configured logger tagged with a "component"
// attribute, so the Installer, Association Recorder, Page Agent, and
// worker packages can identify which stage of the manifest lifecycle
// emitted a line instead of hand-prefixing every message string.
func Component(name string) *slog.Logger {
	return GetLogger().With("component", name)
}
