// Package errors provides the coded error taxonomy used across scf.
//
// Overview:
//   - Responsibility: Classify construction, contract and source failures by code
//   - Key Types: Code for classification, E for structured errors, Builder for fluent construction
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: Compatible with standard library wrapping (errors.Is / errors.As)
//   - Performance Notes: One allocation per constructed error
//
// Usage:
//
//	err := errors.New(errors.CodeInvalidArgument, "source name is required")
//	mismatch := errors.Build(errors.CodeConfigMismatch).WithOp("configx.GetProperty").WithMsgf("key %v", key).Err()
//	if errors.IsCode(err, errors.CodeRequiredMissing) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Code represents an error classification code.
type Code string

// Error codes raised by scf packages.
const (
	// CodeInvalidArgument marks construction-time failures: invalid configs,
	// nil listeners, duplicate source priorities, malformed conversion input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeConfigMismatch marks a key requested with a config that differs
	// from the one it was first created with.
	CodeConfigMismatch Code = "CONFIG_MISMATCH"
	// CodeRequiredMissing marks a required property that resolved to nothing.
	CodeRequiredMissing Code = "REQUIRED_PROPERTY_MISSING"
	// CodeUnavailable marks a source that refused service.
	CodeUnavailable Code = "UNAVAILABLE"
	// CodeNotFound marks a missing backing resource.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInternal marks recovered panics and unexpected faults.
	CodeInternal Code = "INTERNAL"
)

// E represents a structured error with code, operation, message, and details.
type E struct {
	Code    Code   // Error classification code
	Op      string // Operation that failed
	Err     error  // Underlying error (may be nil)
	Msg     string // Human-readable message
	Details []any  // Additional structured details
}

// Error implements the error interface.
func (e *E) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = prefix + ": " + e.Op
	}
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *E) Unwrap() error {
	return e.Err
}

// New creates a new structured error with the given code and message.
func New(code Code, msg string) error {
	return &E{Code: code, Msg: msg}
}

// Newf creates a new structured error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &E{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new structured error wrapping an existing error.
// The operation name helps identify where the error occurred.
func Wrap(code Code, op string, err error) error {
	return &E{Code: code, Op: op, Err: err}
}

// Wrapf creates a new structured error wrapping an existing error with formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) error {
	return &E{
		Code: code,
		Op:   op,
		Err:  err,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// CodeOf extracts the error code from an error.
// Returns empty string if the error doesn't have a code.
func CodeOf(err error) Code {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// As is a convenience wrapper around the standard library's errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsCode checks if an error carries a specific code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Is is a convenience wrapper around the standard library's errors.Is.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// Builder provides a fluent interface for constructing errors.
type Builder struct {
	code    Code
	op      string
	err     error
	msg     string
	details []any
}

// Build starts a new error with the given code.
func Build(code Code) *Builder {
	return &Builder{code: code}
}

// WithOp sets the operation that failed.
func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

// WithErr wraps an underlying error.
func (b *Builder) WithErr(err error) *Builder {
	b.err = err
	return b
}

// WithMsg sets a human-readable message.
func (b *Builder) WithMsg(msg string) *Builder {
	b.msg = msg
	return b
}

// WithMsgf sets a formatted human-readable message.
func (b *Builder) WithMsgf(format string, args ...any) *Builder {
	b.msg = fmt.Sprintf(format, args...)
	return b
}

// WithDetails adds structured details to the error.
func (b *Builder) WithDetails(details ...any) *Builder {
	b.details = append(b.details, details...)
	return b
}

// Err builds and returns the error.
func (b *Builder) Err() error {
	return &E{
		Code:    b.code,
		Op:      b.op,
		Err:     b.err,
		Msg:     b.msg,
		Details: b.details,
	}
}

// Recovered converts a recovered panic value into a CodeInternal error.
// It returns nil when r is nil.
func Recovered(op string, r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return Wrapf(CodeInternal, op, err, "panic recovered")
	}
	return &E{Code: CodeInternal, Op: op, Msg: fmt.Sprintf("panic recovered: %v", r)}
}
