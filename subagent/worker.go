package subagent

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/bindgen/errors"
)

// Worker exit codes.
const (
	ExitOK         = 0
	ExitFailed     = 1
	ExitPanic      = 2
	ExitBadOptions = 64
)

// Handler does the work of one unit inside the worker process. Anything it
// logs through log reaches the coordinator as protocol lines.
type Handler func(ctx context.Context, opts Options, log *zap.SugaredLogger) error

// Serve is the worker side of Run. It decodes the serialized options, runs
// h with a protocol logger on stdout and returns the process exit code.
// Errors and panics are reported as E: lines.
func Serve(ctx context.Context, encoded string, stdout io.Writer, level zapcore.LevelEnabler, h Handler) (code int) {
	log := zap.New(NewProtocolCore(stdout, level)).Sugar()
	defer func() { _ = log.Sync() }()

	opts, err := DecodeOptions(encoded)
	if err == nil {
		err = opts.Validate()
	}
	if err != nil {
		log.Error(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			log.Info(hint)
		}
		return ExitBadOptions
	}

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("worker panic: %v", p)
			log.Debug(string(debug.Stack()))
			code = ExitPanic
		}
	}()

	if err := h(ctx, opts, log); err != nil {
		log.Error(fmt.Sprintf("%s: %v", opts.Namespace, err))
		return ExitFailed
	}
	return ExitOK
}
