package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		verbosity  int
		jsonOutput bool
	}{
		{name: "console quiet", verbosity: 0},
		{name: "console trace", verbosity: 3},
		{name: "json info", verbosity: 1, jsonOutput: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(func() {
				Logger = zap.NewNop().Sugar()
				JSONOutput = false
			})

			require.NoError(t, Initialize(tt.verbosity, tt.jsonOutput))
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)
			assert.Equal(t, VerbosityToLevel(tt.verbosity), Level.Level())
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{3, TraceLevel},
		{7, TraceLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
	assert.True(t, ShouldLogTrace(3))
	assert.False(t, ShouldLogTrace(2))
	assert.Equal(t, "Trace (-vvv+)", LevelName(5))
}

func TestTraceRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Trace(zap.New(core).Sugar(), "hidden", FieldUnit, "vk")
	assert.Equal(t, 0, logs.Len())

	core, logs = observer.New(TraceLevel)
	Trace(zap.New(core).Sugar(), "shown", FieldUnit, "vk", FieldCount, 3)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, TraceLevel, entry.Level)
	assert.Equal(t, "shown", entry.Message)
	assert.Equal(t, "vk", entry.ContextMap()[FieldUnit])
}

func TestTraceNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Trace(nil, "nothing") })
}

func TestNewConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, VerbosityTrace, false)
	require.NoError(t, err)

	l.Sugar().Named("subagent").With(FieldUnit, "vulkan").Warnw("worker exited", FieldExitCode, 3)
	Trace(l.Sugar(), "line", FieldMod, "rename")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN  [vulkan]  subagent  worker exited  exit_code=3")
	assert.NotContains(t, lines[0], "\x1b[")
	assert.Contains(t, lines[1], "TRACE  line  mod=rename")
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, VerbosityTrace, true)
	require.NoError(t, err)

	Trace(l.Sugar(), "trace entry")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "trace", decoded["level"])
	assert.Equal(t, "trace entry", decoded["msg"])
}

func TestMinimalEncoderKeepsAllFields(t *testing.T) {
	enc := newMinimalEncoder(false)
	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2024, 1, 1, 13, 4, 35, 0, time.UTC),
		Message: "emitted",
	}

	buf, err := enc.EncodeEntry(entry, []zapcore.Field{
		zap.String("zeta", "last"),
		zap.Int("outputs", 4),
		zap.Bool("fatal", false),
	})
	require.NoError(t, err)

	assert.Equal(t, "13:04:35  emitted  fatal=false outputs=4 zeta=last\n", buf.String())
}

func TestMinimalEncoderCloneIsolatesContext(t *testing.T) {
	enc := newMinimalEncoder(false)
	enc.AddString(FieldUnit, "a")

	clone := enc.Clone().(*minimalEncoder)
	clone.AddString(FieldMod, "rename")

	assert.NotContains(t, enc.Fields, FieldMod)
	assert.Equal(t, "a", clone.Fields[FieldUnit])
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "r1")
	ctx = WithUnit(ctx, "vulkan")

	assert.Equal(t, []interface{}{FieldRunID, "r1", FieldUnit, "vulkan"}, FieldsFromContext(ctx))
	assert.Empty(t, FieldsFromContext(context.Background()))
}
