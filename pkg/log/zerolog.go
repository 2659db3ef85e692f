package log

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

type zerologLogger struct {
	z zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to Logger.
func NewZerologLogger(z zerolog.Logger) Logger {
	return &zerologLogger{z: z}
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.z.Debug().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.z.Info().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.z.Warn().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.z.Error().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{z: l.z.With().Fields(normalizeFields(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.z.GetLevel()
}

type zerologProvider struct {
	mu   sync.Mutex
	base zerolog.Logger
}

// NewZerologProvider returns a provider writing through base at the given level.
func NewZerologProvider(base zerolog.Logger, level Level) LoggerProvider {
	p := &zerologProvider{base: base}
	p.SetLevel(level)
	return p
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &zerologLogger{z: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}
