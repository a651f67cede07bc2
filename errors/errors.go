// Package errors provides error handling for bindgen.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging worker and pipeline failures
//   - Error wrapping and context
//   - Hints for configuration mistakes
//
// Usage:
//
//	// Wrap with context
//	if err := pipeline.Validate(); err != nil {
//	    return errors.Wrap(err, "invalid mod pipeline")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "check the [[mods]] section of bindgen.toml")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across the generator.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrInvalidConfig indicates a configuration value could not be used
	ErrInvalidConfig = New("invalid configuration")

	// ErrUnknownMod indicates a mod name that is not registered
	ErrUnknownMod = New("unknown mod")

	// ErrWorkerFailed indicates a worker subprocess failed to start or exited nonzero
	ErrWorkerFailed = New("worker failed")

	// ErrAborted indicates a unit was cancelled before it completed
	ErrAborted = New("aborted")
)

// IsInvalidConfig checks if an error is or wraps ErrInvalidConfig
func IsInvalidConfig(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}

// IsAborted checks if an error is or wraps ErrAborted
func IsAborted(err error) bool {
	return err != nil && Is(err, ErrAborted)
}

// InvalidConfigf creates an invalid-configuration error with a formatted message
func InvalidConfigf(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}
