package subagent

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// protocolCore is the worker-side zap core: each entry becomes exactly one
// protocol line on w.
type protocolCore struct {
	zapcore.LevelEnabler
	mu     *sync.Mutex
	w      io.Writer
	fields []zapcore.Field
}

// NewProtocolCore returns a core that writes entries at or above level to w
// in the process log protocol.
func NewProtocolCore(w io.Writer, level zapcore.LevelEnabler) zapcore.Core {
	return &protocolCore{
		LevelEnabler: level,
		mu:           &sync.Mutex{},
		w:            w,
	}
}

func (c *protocolCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

func (c *protocolCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *protocolCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	var b strings.Builder
	if ent.LoggerName != "" {
		b.WriteString(ent.LoggerName)
		b.WriteString(": ")
	}
	b.WriteString(ent.Message)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	if len(enc.Fields) > 0 {
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
		}
	}

	line := Format(levelFromZap(ent.Level), b.String()) + "\n"

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, line)
	return err
}

func (c *protocolCore) Sync() error {
	if s, ok := c.w.(interface{ Sync() error }); ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		// pipes and terminals reject fsync; that is not a logging failure
		_ = s.Sync()
	}
	return nil
}
