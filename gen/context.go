// Package gen runs the per-unit pipeline: parse, mods, emission. Each unit
// gets its own Context; contexts share nothing and may run concurrently.
package gen

import (
	"sync"
	"time"

	"github.com/teranos/bindgen/config"
	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/subagent"
)

// ErrResultTaken is returned by a second call to Context.Result.
var ErrResultTaken = errors.New("generation result already taken")

// Output is one emitted file.
type Output struct {
	Hint    string `yaml:"hint"`
	Content string `yaml:"-"`
}

// Status is how a unit's generation ended.
type Status int

const (
	StatusOK Status = iota
	// StatusFailed means a fatal diagnostic stopped the unit.
	StatusFailed
	// StatusAborted means the unit was cancelled or timed out.
	StatusAborted
	// StatusSkipped means the unit never started because fail-fast
	// stopped the run.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Result is what one unit produced.
type Result struct {
	Namespace   string
	Status      Status
	Outputs     []Output
	Diagnostics []diag.Diagnostic
	// Decls is the number of declarations that reached emission.
	Decls    int
	Duration time.Duration
}

// OK reports whether the unit produced its outputs.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Context is the state of one unit moving through the pipeline. Outputs
// and diagnostics only ever grow; Result hands them over exactly once.
type Context struct {
	Namespace string
	// Options describe the parse unit.
	Options subagent.Options
	// Config is the effective configuration. It is read-only.
	Config *config.Config
	// Parsed is the declaration set as the frontend returned it, before
	// any mod ran. It is set by the generator.
	Parsed *decl.Set

	mu          sync.Mutex
	outputs     []Output
	diagnostics []diag.Diagnostic
	taken       bool
}

// NewContext creates the context for one unit.
func NewContext(cfg *config.Config, opts subagent.Options) *Context {
	return &Context{
		Namespace: opts.Namespace,
		Options:   opts.Clone(),
		Config:    cfg,
	}
}

// EmitOutput appends an output file. It panics once the result was taken.
func (c *Context) EmitOutput(hint, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		panic("gen: EmitOutput after Result on unit " + c.Namespace)
	}
	c.outputs = append(c.outputs, Output{Hint: hint, Content: content})
}

// EmitDiagnostic appends a diagnostic. It panics once the result was taken.
func (c *Context) EmitDiagnostic(d diag.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		panic("gen: EmitDiagnostic after Result on unit " + c.Namespace)
	}
	c.diagnostics = append(c.diagnostics, d)
}

// EmitDiagnostics appends ds in order.
func (c *Context) EmitDiagnostics(ds []diag.Diagnostic) {
	for _, d := range ds {
		c.EmitDiagnostic(d)
	}
}

// HasFatal reports whether a fatal diagnostic was emitted so far.
func (c *Context) HasFatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return diag.HasFatal(c.diagnostics)
}

// Result returns the accumulated outputs and diagnostics in emission
// order. Only the first call succeeds.
func (c *Context) Result() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return Result{}, errors.Wrapf(ErrResultTaken, "unit %s", c.Namespace)
	}
	c.taken = true
	return Result{
		Namespace:   c.Namespace,
		Outputs:     c.outputs,
		Diagnostics: c.diagnostics,
	}, nil
}
