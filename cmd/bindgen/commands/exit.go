// Package commands implements the bindgen subcommands.
package commands

import "fmt"

// Exit codes for check.
const (
	ExitStale = 1
	ExitCheckFailed = 2
)

// ExitError asks main to exit with Code. Err, when set, is printed first.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
