package logger

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a levelled key/value logger backed by go-kit/log.
type Logger struct {
	base log.Logger
}

// NewLogger returns a logfmt logger writing to stderr, filtered at the given level.
func NewLogger(lvl string) *Logger {
	return New(os.Stderr, lvl, "logfmt")
}

// New builds a logger writing to w. format is "logfmt" or "json".
func New(w io.Writer, lvl, format string) *Logger {
	sw := log.NewSyncWriter(w)

	var l log.Logger
	if strings.EqualFold(format, "json") {
		l = log.NewJSONLogger(sw)
	} else {
		l = log.NewLogfmtLogger(sw)
	}
	l = level.NewFilter(l, allow(lvl))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))

	return &Logger{base: l}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{base: log.NewNopLogger()}
}

func allow(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

// With returns a logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{base: log.With(l.base, keyvals...)}
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(level.Debug(l.base), msg, keyvals)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(level.Info(l.base), msg, keyvals)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(level.Warn(l.base), msg, keyvals)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(level.Error(l.base), msg, keyvals)
}

func (l *Logger) log(lg log.Logger, msg string, keyvals []interface{}) {
	_ = lg.Log(append([]interface{}{"msg", msg}, keyvals...)...)
}
