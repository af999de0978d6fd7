// Package errors provides structured error types for gilt.
//
// This package defines error codes and types that enable:
//   - Distinguishing configuration failures (which abort a run before any
//     repository is touched) from per-dependency failures
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes fall into three groups:
//   - Configuration: MANIFEST_NOT_FOUND, INVALID_MANIFEST, MISSING_KEY,
//     INVALID_INTERPOLATION, INVALID_PATH, INVALID_URI
//   - Dependency: GIT_ERROR, POST_COMMAND_FAILED, FILESYSTEM_ERROR, LOCK_ERROR
//   - Internal: INTERNAL_ERROR
//
// # Usage
//
//	err := errors.MissingKey("version")
//	if errors.Is(err, errors.ErrCodeMissingKey) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeGit, origErr, "clone %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors
	ErrCodeManifestNotFound     Code = "MANIFEST_NOT_FOUND"
	ErrCodeInvalidManifest      Code = "INVALID_MANIFEST"
	ErrCodeMissingKey           Code = "MISSING_KEY"
	ErrCodeInvalidInterpolation Code = "INVALID_INTERPOLATION"
	ErrCodeInvalidPath          Code = "INVALID_PATH"
	ErrCodeInvalidURI           Code = "INVALID_URI"

	// Dependency errors
	ErrCodeGit         Code = "GIT_ERROR"
	ErrCodePostCommand Code = "POST_COMMAND_FAILED"
	ErrCodeFilesystem  Code = "FILESYSTEM_ERROR"
	ErrCodeLock        Code = "LOCK_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Key     string // Manifest key, set for MISSING_KEY errors
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// MissingKey creates a MISSING_KEY error identified by the manifest key name.
func MissingKey(key string) *Error {
	return &Error{
		Code:    ErrCodeMissingKey,
		Message: fmt.Sprintf("missing required key %q", key),
		Key:     key,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As is errors.As from the standard library, so callers importing this
// package need not import both.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MissingKeyName returns the manifest key of a MISSING_KEY error in err's
// chain, or "" if there is none.
func MissingKeyName(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeMissingKey {
		return e.Key
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsConfig reports whether err is a configuration error, i.e. one that is
// raised before any dependency work starts.
func IsConfig(err error) bool {
	switch GetCode(err) {
	case ErrCodeManifestNotFound, ErrCodeInvalidManifest, ErrCodeMissingKey,
		ErrCodeInvalidInterpolation, ErrCodeInvalidPath, ErrCodeInvalidURI:
		return true
	}
	return false
}
