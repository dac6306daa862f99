package utils

import (
	"errors"
	"net/http"
)

// ErrorKind classifies an AppError; each kind has a default HTTP status.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindLocked       ErrorKind = "locked"
	KindForbidden    ErrorKind = "forbidden"
	KindUnauthorized ErrorKind = "unauthorized"
	KindUpstream     ErrorKind = "upstream"
	KindInternal     ErrorKind = "internal"
)

var kindStatus = map[ErrorKind]int{
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindLocked:       http.StatusConflict,
	KindForbidden:    http.StatusForbidden,
	KindUnauthorized: http.StatusUnauthorized,
	KindUpstream:     http.StatusBadGateway,
	KindInternal:     http.StatusInternalServerError,
}

// AppError is a client-presentable failure. Message is safe to return to the caller;
// Err is the underlying cause and is only logged.
type AppError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// With attaches an extra response field and returns the same error.
func (e *AppError) With(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = map[string]interface{}{}
	}
	e.Fields[key] = value
	return e
}

// Wrap records the underlying cause.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError builds an error with the default status for kind.
func NewAppError(kind ErrorKind, message string) *AppError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Kind: kind, Status: status, Message: message}
}

func ValidationError(message string) *AppError   { return NewAppError(KindValidation, message) }
func NotFoundError(message string) *AppError     { return NewAppError(KindNotFound, message) }
func ConflictError(message string) *AppError     { return NewAppError(KindConflict, message) }
func LockedError(message string) *AppError       { return NewAppError(KindLocked, message) }
func ForbiddenError(message string) *AppError    { return NewAppError(KindForbidden, message) }
func UnauthorizedError(message string) *AppError { return NewAppError(KindUnauthorized, message) }
func InternalError(message string) *AppError     { return NewAppError(KindInternal, message) }

// UpstreamError reports an identity-service failure. A status outside 4xx/5xx maps to 502.
func UpstreamError(status int, message string) *AppError {
	e := NewAppError(KindUpstream, message)
	if status >= 400 && status <= 599 {
		e.Status = status
	}
	return e
}

// AsAppError unwraps err into an *AppError if it is one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
