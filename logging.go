package scanner

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/schemora/go-scanner/core"
)

// NewConsoleLogger creates a Logger that writes colorized output to stderr
// at the given level. Convenient for example binaries and local debugging;
// services that already carry a *slog.Logger should use core.NewSlogLogger
// instead.
func NewConsoleLogger(level slog.Level) Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
	return core.NewSlogLogger(slog.New(handler))
}
