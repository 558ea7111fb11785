// Package logger настраивает slog с консольным обработчиком tint
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// LevelTrace уровень ниже Debug для пакетной трассировки pion и медиа
const LevelTrace = slog.LevelDebug - 4

const timeFormat = "15:04:05.000"

var level = &slog.LevelVar{}

func init() {
	level.Set(slog.LevelWarn)
}

// Options параметры консольного логгера
type Options struct {
	Level   slog.Level
	NoColor bool
	Source  bool
}

// New создает логгер, пишущий в w
func New(w io.Writer, opts Options) *slog.Logger {
	level.Set(opts.Level)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		AddSource:   opts.Source,
		NoColor:     opts.NoColor,
		TimeFormat:  timeFormat,
		ReplaceAttr: replaceLevel,
	}))
}

// Setup создает логгер в stderr и делает его логгером по умолчанию
func Setup(opts Options) *slog.Logger {
	l := New(os.Stderr, opts)
	slog.SetDefault(l)
	return l
}

// SetLevel меняет уровень уже созданных логгеров
func SetLevel(l slog.Level) {
	level.Set(l)
}

// FromVerbosity переводит число флагов -v в уровень: 0 warn, 1 info, 2 debug, 3 trace
func FromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// ParseLevel разбирает имя уровня из конфигурации
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("неизвестный уровень логирования: %q", s)
	}
}

// replaceLevel печатает LevelTrace как TRC вместо DBG-4
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) != 0 {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		return slog.String(a.Key, "TRC")
	}
	return a
}
