package log

import (
	"context"
	"log/slog"
	"sync"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewSlogProvider()
)

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with ComponentKey=name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel changes the minimum level of the current provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}

type slogProvider struct{}

// NewSlogProvider returns a provider whose loggers write through slog.Default().
func NewSlogProvider() LoggerProvider {
	return slogProvider{}
}

func (slogProvider) GetLogger() Logger {
	return &slogLogger{l: slog.Default()}
}

func (p slogProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (slogProvider) SetLevel(level Level) {
	levelVar.Set(slog.Level(level))
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts an *slog.Logger to Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) {
	s.l.Debug(msg, normalizeFields(fields)...)
}

func (s *slogLogger) Info(msg string, fields ...any) {
	s.l.Info(msg, normalizeFields(fields)...)
}

func (s *slogLogger) Warn(msg string, fields ...any) {
	s.l.Warn(msg, normalizeFields(fields)...)
}

func (s *slogLogger) Error(msg string, fields ...any) {
	s.l.Error(msg, normalizeFields(fields)...)
}

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(normalizeFields(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}
