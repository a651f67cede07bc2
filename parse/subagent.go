package parse

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/diag"
	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
	"github.com/teranos/bindgen/subagent"
)

// Runner runs one worker. *subagent.Runner implements it.
type Runner interface {
	Run(ctx context.Context, opts subagent.Options) subagent.Result
}

// SubagentFrontend parses each unit in its own worker subprocess.
type SubagentFrontend struct {
	Runner Runner
	// PayloadDir holds the worker payload files. Defaults to os.TempDir().
	PayloadDir string
	Logger     *zap.SugaredLogger
}

// NewSubagentFrontend returns a frontend that runs workers with r.
func NewSubagentFrontend(r Runner) *SubagentFrontend {
	return &SubagentFrontend{Runner: r}
}

func (f *SubagentFrontend) log() *zap.SugaredLogger {
	if f.Logger != nil {
		return f.Logger
	}
	return logger.Logger.Named(Stage)
}

// Parse runs a worker for opts and reads its payload back.
func (f *SubagentFrontend) Parse(ctx context.Context, opts subagent.Options) (*Unit, error) {
	opts = opts.Clone()
	if opts.Output.Payload == "" {
		dir := f.PayloadDir
		if dir == "" {
			dir = os.TempDir()
		}
		opts.Output.Payload = filepath.Join(dir, "bindgen-"+opts.Namespace+"-"+uuid.NewString()+".msgpack")
	}
	defer os.Remove(opts.Output.Payload)

	res := f.Runner.Run(ctx, opts)
	if !res.OK() {
		return nil, &Failure{
			Namespace: opts.Namespace,
			Status:    res.Status,
			ExitCode:  res.ExitCode,
			Errors:    res.Errors,
			Err:       res.Err,
		}
	}

	unit, err := ReadPayload(opts.Output.Payload)
	if err != nil {
		return nil, &Failure{
			Namespace: opts.Namespace,
			Status:    res.Status,
			ExitCode:  res.ExitCode,
			Errors:    append(append([]string(nil), res.Errors...), err.Error()),
			Err:       errors.WithSecondaryError(errors.ErrWorkerFailed, err),
		}
	}

	// A worker that exits cleanly may still have reported errors.
	for _, e := range res.Errors {
		unit.Diagnostics = append(unit.Diagnostics, diag.Errorf(diag.ParseWorker, "%s", e).From(Stage))
	}

	f.log().Debugw("Unit parsed",
		logger.FieldUnit, opts.Namespace,
		logger.FieldDecls, unit.Set.Len(),
		logger.FieldDurationMS, res.Duration.Milliseconds(),
	)
	return unit, nil
}
