package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/sunspy/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "sunspy"

// redacted replaces the value of any attribute whose key looks secret.
const redacted = "[REDACTED]"

// secretKeys are matched case-insensitively as substrings of attribute keys.
var secretKeys = []string{"password", "secret", "token"}

// Logger is an slog.Logger carrying sunspy's default fields.
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds the process logger from cfg.
//
// Output is "stdout", "stderr" or a file path. Files are opened for
// append and created if missing; Close releases them.
//
// Parameters:
//   - cfg: Level, format and output from the config file
//   - version: Build version added to every entry
//
// Returns:
//   - *Logger: Ready to use
//   - error: The log file could not be opened
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch out := strings.TrimSpace(cfg.Output); strings.ToLower(out) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closer = f, f
	}

	l := NewWithWriter(cfg, version, w)
	l.closer = closer
	return l, nil
}

// NewWithWriter is New writing to w. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With("service", serviceName, "version", version)}
}

// parseLevel maps debug, info, warn(ing) and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redact hides secret-looking attribute values.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// With returns a child logger with extra default attributes.
//
//	log := logger.With("component", "scheduler")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if any. Children made by With share the
// parent's file and must not outlive it.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default is the pre-config logger: text on stderr at info level, so
// startup problems read well on a terminal.
func Default() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, "dev", os.Stderr)
}

// Discard drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
