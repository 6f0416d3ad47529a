package domain

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure for callers and the HTTP boundary.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeNotFound         Code = "not_found"
	CodeForbidden        Code = "forbidden"
	CodeDuplicateTitle   Code = "duplicate_title"
	CodeAlreadyMember    Code = "already_member"
	CodeInvalidOperation Code = "invalid_operation"
	CodeNotEmpty         Code = "not_empty"
	CodeUnauthenticated  Code = "unauthenticated"
	CodeUnavailable      Code = "unavailable"
)

// ErrExists is returned by create-only store writes when a document with the
// same key is already present. Services translate it into the caller-facing
// code for the operation (DuplicateTitle, AlreadyMember, ...).
var ErrExists = errors.New("document already exists")

// Error is a typed domain failure. The zero Message is the code itself.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return Errf(CodeValidation, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return Errf(CodeNotFound, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return Errf(CodeForbidden, format, args...)
}

// Unavailable wraps a transport or store failure so the original error stays
// reachable through errors.Unwrap.
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the domain code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
