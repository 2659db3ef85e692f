package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" (default) or "console".
	Format string

	// Name is used as the log file name when Dir is set.
	Name string

	// Dir enables a rotating log file next to stdout.
	Dir string

	// MaxSize in megabytes before rotation.
	MaxSize int

	// MaxAge in days to retain old files.
	MaxAge int

	// MaxBackups is the number of old files to keep.
	MaxBackups int
}

// levelVar is shared by every handler created in this package so SetLevel applies everywhere.
var levelVar = new(slog.LevelVar)

// SetupLogger installs the default slog logger and the provider used by GetLogger.
func SetupLogger(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	levelVar.Set(slog.Level(level))

	var out io.Writer = os.Stdout
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return errors.Wrapf(err, "create log dir %s", opts.Dir)
		}
		name := opts.Name
		if name == "" {
			name = "housing"
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, name+".log"),
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     levelVar,
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			case slog.SourceKey:
				attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(out, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	var zl zerolog.Logger
	if opts.Format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
		SetProvider(NewZerologProvider(zl, level))
	} else {
		zl = zerolog.New(out).With().Timestamp().Logger()
		SetProvider(NewSlogProvider())
	}
	InstallWarningSink(zl)
	return nil
}

// InstallWarningSink routes pkg/errors warnings to zl as structured events.
func InstallWarningSink(zl zerolog.Logger) {
	errors.SetZerologWarnFunc(func(w error) {
		ev := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	})
}

// ParseLevel converts a textual level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
