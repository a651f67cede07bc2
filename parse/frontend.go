// Package parse turns native headers into a declaration set.
//
// Two frontends exist. DirectFrontend runs the tree-sitter C parser in the
// current process; it is what a worker runs. SubagentFrontend is the
// coordinator side: it hands the unit to a worker subprocess and reads the
// result back, so a parser crash costs one unit and not the whole run.
package parse

import (
	"context"
	"fmt"
	"strings"

	"github.com/teranos/bindgen/decl"
	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/subagent"
)

// Stage is the diagnostic source name for parsing.
const Stage = "parse"

// Frontend parses one unit.
type Frontend interface {
	// Parse returns the parsed unit. Header problems are reported as
	// diagnostics on the unit; a non-nil error is a *Failure and means the
	// parser itself could not run to completion.
	Parse(ctx context.Context, opts subagent.Options) (*Unit, error)
}

// Unit is the parsed syntax of one unit.
type Unit struct {
	Namespace   string
	Set         *decl.Set
	Diagnostics []diag.Diagnostic
}

// Failure describes a parse that did not complete: the worker failed to
// start, exited nonzero or was aborted.
type Failure struct {
	Namespace string
	Status    subagent.Status
	ExitCode  int
	// Errors are the worker's E: lines in arrival order.
	Errors []string
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("parse of unit %s failed: %s (exit code %d)", f.Namespace, f.Status, f.ExitCode)
	if len(f.Errors) > 0 {
		msg += ": " + strings.Join(f.Errors, "; ")
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Aborted reports whether the parse was cancelled.
func (f *Failure) Aborted() bool {
	return f.Status == subagent.StatusAborted
}

// Diagnostics converts the failure into fatal diagnostics, one per worker
// error line, or a single summary when there are none.
func (f *Failure) Diagnostics() []diag.Diagnostic {
	code := diag.ParseWorker
	if f.Aborted() {
		code = diag.ParseAborted
	}
	if len(f.Errors) == 0 {
		return []diag.Diagnostic{diag.Fatalf(code, "%s", f.Error()).From(Stage)}
	}
	out := make([]diag.Diagnostic, 0, len(f.Errors))
	for _, e := range f.Errors {
		out = append(out, diag.Fatalf(code, "%s", e).From(Stage))
	}
	return out
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
