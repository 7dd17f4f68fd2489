package lifecycle

import (
	"errors"
	"fmt"
)

// #region codes

// Code classifies a lifecycle failure so callers can render a precise
// user-facing message without parsing error text.
type Code string

const (
	CodeGoalNotFound          Code = "GOAL_NOT_FOUND"
	CodeNotFound              Code = "NOT_FOUND"
	CodeBlocked               Code = "BLOCKED"
	CodeHarmBlocked           Code = "HARM_BLOCKED"
	CodeInvalidStatus         Code = "INVALID_STATUS"
	CodeRollbackWindowExpired Code = "ROLLBACK_WINDOW_EXPIRED"
	CodeApplyFailed           Code = "APPLY_FAILED"
	CodeRestoreFailed         Code = "RESTORE_FAILED"
	CodeValidation            Code = "VALIDATION"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// #endregion codes

// #region error

// Error is the typed failure returned by every lifecycle operation.
// Not-found responses deliberately do not distinguish absence from
// ownership denial.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func failf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), err: err}
}

// CodeOf extracts the code from an error chain, CodeInternal for
// anything untyped.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// #endregion error
