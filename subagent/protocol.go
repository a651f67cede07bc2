// Package subagent runs the header parser in worker subprocesses.
//
// A coordinator re-invokes its own executable with the worker subcommand
// and one serialized Options argument. The worker reports progress on
// stdout using the process log protocol: every line starts with a
// two-character prefix naming its level.
//
//	I:  info
//	W:  warning
//	T:  trace
//	E:  error (also collected into Result.Errors)
//
// Any other line, including lines shorter than two characters, is debug
// output and is taken verbatim.
package subagent

import (
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/teranos/bindgen/logger"
)

// Level is the severity a protocol line was classified as.
type Level int

const (
	LevelDebug Level = iota
	LevelTrace
	LevelInfo
	LevelWarn
	LevelError
)

const (
	PrefixInfo  = "I:"
	PrefixWarn  = "W:"
	PrefixTrace = "T:"
	PrefixError = "E:"
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "debug"
}

// ZapLevel maps a protocol level onto the logger's levels.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case LevelTrace:
		return logger.TraceLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	}
	return zapcore.DebugLevel
}

// Classify splits a protocol line into its level and message. Prefixed
// lines lose their prefix; everything else is debug and returned unchanged.
func Classify(line string) (Level, string) {
	if len(line) < 2 {
		return LevelDebug, line
	}
	switch line[:2] {
	case PrefixInfo:
		return LevelInfo, line[2:]
	case PrefixWarn:
		return LevelWarn, line[2:]
	case PrefixTrace:
		return LevelTrace, line[2:]
	case PrefixError:
		return LevelError, line[2:]
	}
	return LevelDebug, line
}

// Format renders msg as one protocol line without the trailing newline.
// Debug messages that happen to start with a prefix are shifted by a space
// so the coordinator does not promote them.
func Format(level Level, msg string) string {
	msg = flatten(msg)
	switch level {
	case LevelTrace:
		return PrefixTrace + msg
	case LevelInfo:
		return PrefixInfo + msg
	case LevelWarn:
		return PrefixWarn + msg
	case LevelError:
		return PrefixError + msg
	}
	if l, _ := Classify(msg); l != LevelDebug {
		return " " + msg
	}
	return msg
}

var flattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(s string) string {
	return flattener.Replace(s)
}

func levelFromZap(l zapcore.Level) Level {
	switch {
	case l <= logger.TraceLevel:
		return LevelTrace
	case l == zapcore.DebugLevel:
		return LevelDebug
	case l == zapcore.InfoLevel:
		return LevelInfo
	case l == zapcore.WarnLevel:
		return LevelWarn
	}
	return LevelError
}
