package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// Everforest Dark palette
var (
	colorTime      = "\x1b[38;5;107m"
	colorComponent = "\x1b[38;5;208m"
	colorUnit      = "\x1b[38;5;109m"
	colorKey       = "\x1b[38;5;65m"
	colorTrace     = "\x1b[38;5;245m"
	colorWarn      = "\x1b[38;5;179m"
	colorWarnBg    = "\x1b[48;5;58m"
	colorErr       = "\x1b[38;5;167m"
	colorErrBg     = "\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder is a compact console encoder.
// Format: "13:04:35  WARN  [vulkan] parse  header skipped  file=vk.h"
//
// Context fields added through With are kept in the embedded map encoder
// and rendered together with per-call fields, sorted by key. The unit
// field is lifted out and shown in brackets before the message.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
	color bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	return &minimalEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		color:            color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := newMinimalEncoder(enc.color)
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	all := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		all.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(all)
	}

	final := bufferPool.Get()
	final.AppendString(enc.paint(colorTime, ent.Time.Format("15:04:05")))

	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	if unit, ok := all.Fields[FieldUnit]; ok {
		delete(all.Fields, FieldUnit)
		final.AppendString("  ")
		final.AppendString(enc.paint(colorUnit, fmt.Sprintf("[%v]", unit)))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorComponent, ent.LoggerName))
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	if len(all.Fields) > 0 {
		final.AppendString("  ")
		final.AppendString(enc.renderFields(all.Fields))
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *minimalEncoder) renderFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, enc.paint(colorKey, k+"=")+fmt.Sprintf("%v", fields[k]))
	}
	return strings.Join(parts, " ")
}

func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	switch {
	case level == TraceLevel:
		return enc.paint(colorTrace, "TRACE")
	case level == zapcore.DebugLevel:
		return enc.paint(colorTrace, "DEBUG")
	case level == zapcore.WarnLevel:
		return enc.paint(colorBold+colorWarnBg+colorWarn, "WARN")
	case level >= zapcore.ErrorLevel:
		return enc.paint(colorBold+colorErrBg+colorErr, level.CapitalString())
	default:
		return level.CapitalString()
	}
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color {
		return s
	}
	return color + s + colorReset
}
