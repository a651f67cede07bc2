package subagent

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
)

// ExitFailedToStart is reported when the worker process could not be
// launched at all. It matches the shell's "cannot execute" status.
const ExitFailedToStart = 126

// WorkerCommand is the subcommand that puts the executable in worker mode.
const WorkerCommand = "worker"

// DefaultKillGrace is how long the runner keeps draining a cancelled
// worker's output before closing the pipe.
const DefaultKillGrace = 2 * time.Second

// Status is how a worker run ended.
type Status int

const (
	StatusOK Status = iota
	StatusFailedToStart
	StatusExited
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailedToStart:
		return "failed_to_start"
	case StatusExited:
		return "exited"
	case StatusAborted:
		return "aborted"
	}
	return "unknown"
}

// Result is the outcome of one worker run.
type Result struct {
	Status   Status
	ExitCode int
	// Errors holds the message of every E: line in arrival order.
	Errors []string
	// Output holds every stdout line in arrival order.
	Output []string
	// Err is the launch error or the cancellation cause, if any.
	Err      error
	PID      int
	Duration time.Duration
}

// OK reports a clean exit.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Runner launches worker subprocesses. The zero value is usable: it runs the
// current executable with no extra arguments.
type Runner struct {
	// Executable defaults to os.Executable().
	Executable string
	// BaseArgs are placed before the worker subcommand, typically the
	// coordinator's persistent flags.
	BaseArgs []string
	// Env is appended to the inherited environment.
	Env []string
	// Stderr receives the worker's stderr unchanged. Defaults to os.Stderr.
	Stderr io.Writer
	// KillGrace defaults to DefaultKillGrace.
	KillGrace time.Duration
	// Logger defaults to the global logger.
	Logger *zap.SugaredLogger
}

func (r *Runner) log() *zap.SugaredLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.Logger.Named("subagent")
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return DefaultKillGrace
}

// Command returns the executable and arguments used to run opts.
func (r *Runner) Command(opts Options) (string, []string, error) {
	exe := r.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return "", nil, errors.Wrap(err, "failed to locate own executable")
		}
		exe = self
	}
	encoded, err := opts.Encode()
	if err != nil {
		return "", nil, err
	}
	args := make([]string, 0, len(r.BaseArgs)+2)
	args = append(args, r.BaseArgs...)
	args = append(args, WorkerCommand, encoded)
	return exe, args, nil
}

// Run executes one worker for opts and blocks until its output is drained
// and it has exited, or ctx is done. Failures are reported in the Result;
// Run never panics on a misbehaving worker.
func (r *Runner) Run(ctx context.Context, opts Options) Result {
	log := r.log().With(logger.FieldUnit, opts.Namespace)
	start := time.Now()

	exe, args, err := r.Command(opts)
	if err != nil {
		log.Errorw("Worker command could not be built", logger.FieldError, err)
		return Result{Status: StatusFailedToStart, ExitCode: ExitFailedToStart, Err: err}
	}

	if ctx.Err() != nil {
		return Result{
			Status:   StatusAborted,
			ExitCode: -1,
			Err:      errors.Wrapf(errors.WithSecondaryError(errors.ErrAborted, ctx.Err()), "unit %s", opts.Namespace),
		}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		err = errors.Wrap(err, "failed to create worker stdout pipe")
		log.Errorw("Worker could not be started", logger.FieldError, err)
		return Result{Status: StatusFailedToStart, ExitCode: ExitFailedToStart, Err: err}
	}

	cmd := exec.Command(exe, args...)
	cmd.Dir, _ = os.Getwd()
	cmd.Stdout = pw
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Env = append(os.Environ(), r.Env...)

	logger.Trace(log, "Launching worker", logger.FieldCommand, shellquote.Join(append([]string{exe}, args...)...))

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		err = errors.Wrapf(errors.WithSecondaryError(errors.ErrWorkerFailed, err), "failed to start worker %s", exe)
		log.Errorw("Worker could not be started", logger.FieldBinary, exe, logger.FieldError, err)
		return Result{Status: StatusFailedToStart, ExitCode: ExitFailedToStart, Err: err, Duration: time.Since(start)}
	}
	// The child holds its own copy; ours must go so EOF arrives on exit.
	pw.Close()

	res := Result{PID: cmd.Process.Pid}
	log.Debugw("Worker started", logger.FieldPID, res.PID)

	var closeOnce sync.Once
	closeReader := func() { closeOnce.Do(func() { pr.Close() }) }

	var aborted atomic.Bool
	drained := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			aborted.Store(true)
			log.Warnw("Cancelling worker", logger.FieldPID, res.PID, logger.FieldError, ctx.Err())
			if err := killTree(int32(res.PID)); err != nil {
				log.Debugw("Process tree kill incomplete, killing worker directly", logger.FieldError, err)
				_ = cmd.Process.Kill()
			}
			timer := time.NewTimer(r.killGrace())
			defer timer.Stop()
			select {
			case <-drained:
			case <-timer.C:
				// a surviving descendant still holds the write end
				closeReader()
			}
		case <-drained:
		}
	}()

	r.drain(pr, log, &res)
	close(drained)
	closeReader()
	<-watcherDone

	// Only now, with stdout at EOF, is it safe to wait.
	waitErr := cmd.Wait()
	res.ExitCode = cmd.ProcessState.ExitCode()
	res.Duration = time.Since(start)

	switch {
	case aborted.Load():
		res.Status = StatusAborted
		res.Err = errors.Wrapf(errors.WithSecondaryError(errors.ErrAborted, ctx.Err()), "unit %s", opts.Namespace)
	case res.ExitCode == 0 && waitErr == nil:
		res.Status = StatusOK
	default:
		res.Status = StatusExited
		if res.ExitCode == 0 {
			// killed by a signal we did not send
			res.ExitCode = -1
		}
		res.Err = errors.Wrapf(errors.ErrWorkerFailed, "unit %s exited with code %d", opts.Namespace, res.ExitCode)
	}

	fields := []interface{}{
		logger.FieldStatus, res.Status.String(),
		logger.FieldExitCode, res.ExitCode,
		logger.FieldDurationMS, res.Duration.Milliseconds(),
	}
	if res.Status == StatusOK {
		log.Debugw("Worker finished", fields...)
	} else {
		log.Warnw("Worker finished", append(fields, logger.FieldCount, len(res.Errors))...)
	}
	return res
}

// drain reads stdout line by line until EOF or until the reader is closed.
// bufio.Reader is used instead of a Scanner so that no line is too long.
func (r *Runner) drain(pr io.Reader, log *zap.SugaredLogger, res *Result) {
	br := bufio.NewReader(pr)
	for {
		line, err := br.ReadString('\n')
		if err == nil || line != "" {
			r.handleLine(strings.TrimRight(line, "\r\n"), log, res)
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, os.ErrClosed) {
				log.Debugw("Worker stdout read failed", logger.FieldError, err)
			}
			return
		}
	}
}

func (r *Runner) handleLine(line string, log *zap.SugaredLogger, res *Result) {
	res.Output = append(res.Output, line)

	level, msg := Classify(line)
	switch level {
	case LevelInfo:
		log.Info(msg)
	case LevelWarn:
		log.Warn(msg)
	case LevelTrace:
		logger.Trace(log, msg)
	case LevelError:
		res.Errors = append(res.Errors, msg)
		log.Error(msg)
	default:
		log.Debug(msg)
	}
}

// killTree kills pid and every descendant, deepest first.
func killTree(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "failed to inspect process %d", pid)
	}
	children, _ := p.Children()
	for _, c := range children {
		_ = killTree(c.Pid)
	}
	if err := p.Kill(); err != nil {
		return errors.Wrapf(err, "failed to kill process %d", pid)
	}
	return nil
}
