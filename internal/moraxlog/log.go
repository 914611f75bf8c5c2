// Package moraxlog wires the process-wide structured logger: a go-kit/log
// logger with a level filter and the timestamp/caller fields every
// component's log lines carry. Components receive a logger through their
// constructor rather than reading a global, so tests can inject their own.
package moraxlog

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Format selects the wire encoding of log lines.
type Format string

const (
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

// Level is the minimum severity that reaches the output writer.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// New builds the process-wide base logger: format and minimum level are
// configuration-driven, everything past that is go-kit/log's standard
// stack (caller, timestamp, leveled filtering).
func New(format Format, lvl Level) log.Logger {
	var logger log.Logger
	if format == FormatJSON {
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	logger = level.NewFilter(logger, levelOption(lvl))
	return logger
}

func levelOption(lvl Level) level.Option {
	switch lvl {
	case LevelDebug:
		return level.AllowDebug()
	case LevelWarn:
		return level.AllowWarn()
	case LevelError:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// With returns a child logger carrying extra key/value pairs, for
// components that want to tag every line with e.g. their own name.
func With(logger log.Logger, keyvals ...interface{}) log.Logger {
	return log.With(logger, keyvals...)
}
