// Package log provides the structured logging interface used across the housing
// estimators, the training pipeline and the prediction service.
//
// The Logger interface is slog-compatible. GetLogger returns a logger backed by the
// process-wide provider, which SetupLogger configures as either slog JSON (Cloud
// Logging keys) or a zerolog console writer.
//
//	logger := log.GetLoggerWithName("trainer").With(log.RunIDKey, runID)
//	logger.Info("stage finished", log.StageKey, "FIT", log.SamplesKey, 16512)
package log

import (
	"context"
	"log/slog"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// logged under the "error" key together with its stack trace.
	//
	//	logger.Error("fit failed", err, log.OperationKey, log.OperationFit)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers for components.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}

// normalizeFields flattens the variadic fields into key-value order. A leading
// error value is moved under the "error" key and slog.Attr values are expanded.
func normalizeFields(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	out := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		switch v := f.(type) {
		case slog.Attr:
			out = append(out, v.Key, v.Value.Any())
		case error:
			if i == 0 {
				out = append(out, ErrAttrKey, v)
				continue
			}
			out = append(out, v)
		default:
			out = append(out, v)
		}
	}
	return out
}
