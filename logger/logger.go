package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below zap's DebugLevel. Worker "T:" lines and internal
// pipeline flow are logged here and only shown at -vvv.
const TraceLevel = zapcore.DebugLevel - 1

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
	// Level is the active level of the global logger; adjustable at runtime
	Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

func init() {
	// Safe no-op logger until Initialize is called
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger.
//
// Logs always go to stderr: in worker mode stdout carries the process log
// protocol and must not be mixed with coordinator output.
func Initialize(verbosity int, jsonOutput bool) error {
	Level.SetLevel(VerbosityToLevel(verbosity))
	JSONOutput = jsonOutput
	Logger = zap.New(newCore(os.Stderr, Level, jsonOutput)).Sugar()
	return nil
}

// New builds a standalone logger writing to w.
func New(w io.Writer, verbosity int, jsonOutput bool) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(VerbosityToLevel(verbosity))
	return zap.New(newCore(w, level, jsonOutput)), nil
}

// newCore serializes writes through a locked WriteSyncer so that entries
// from concurrent units never interleave partial lines.
func newCore(w io.Writer, level zap.AtomicLevel, jsonOutput bool) zapcore.Core {
	sink := zapcore.Lock(zapcore.AddSync(w))

	var enc zapcore.Encoder
	if jsonOutput {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeLevel = encodeLevel
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = newMinimalEncoder(w == os.Stderr && os.Getenv("NO_COLOR") == "")
	}
	return zapcore.NewCore(enc, sink, level)
}

// encodeLevel names the custom trace level; zap would print "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// Trace logs at TraceLevel with structured fields.
// SugaredLogger has no trace method, so the entry is checked on the
// underlying logger directly.
func Trace(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if l == nil {
		return
	}
	base := l.Desugar()
	ce := base.Check(TraceLevel, msg)
	if ce == nil {
		return
	}
	ce.Write(toFields(keysAndValues)...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
