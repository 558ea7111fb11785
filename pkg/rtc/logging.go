package rtc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"

	"github.com/arzzra/whipcast/pkg/logger"
)

// slogFactory направляет логи pion в slog
type slogFactory struct {
	base *slog.Logger
}

// NewLoggerFactory создает pion LoggerFactory поверх slog логгера
func NewLoggerFactory(base *slog.Logger) logging.LoggerFactory {
	if base == nil {
		base = slog.Default()
	}
	return &slogFactory{base: base}
}

func (f *slogFactory) NewLogger(scope string) logging.LeveledLogger {
	return &slogLeveled{log: f.base.With(slog.String("pion", scope))}
}

type slogLeveled struct {
	log *slog.Logger
}

func (l *slogLeveled) logf(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *slogLeveled) Trace(msg string) { l.logf(logger.LevelTrace, "%s", msg) }
func (l *slogLeveled) Tracef(format string, args ...interface{}) {
	l.logf(logger.LevelTrace, format, args...)
}
func (l *slogLeveled) Debug(msg string) { l.logf(slog.LevelDebug, "%s", msg) }
func (l *slogLeveled) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l *slogLeveled) Info(msg string) { l.logf(slog.LevelInfo, "%s", msg) }
func (l *slogLeveled) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}
func (l *slogLeveled) Warn(msg string) { l.logf(slog.LevelWarn, "%s", msg) }
func (l *slogLeveled) Warnf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args...)
}
func (l *slogLeveled) Error(msg string) { l.logf(slog.LevelError, "%s", msg) }
func (l *slogLeveled) Errorf(format string, args ...interface{}) {
	l.logf(slog.LevelError, format, args...)
}
