// Package errors defines the error taxonomy shared by every layer: sentinel
// kinds for errors.Is matching and AppError for client-facing code and status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Wrap one with %w, or build an AppError through the
// constructors below, to give an error a client-facing code and status.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrUnprocessable  = errors.New("unprocessable")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrServiceUnavail = errors.New("service unavailable")
)

// CodeInternal is reported for errors that match no kind.
const CodeInternal = "INTERNAL_ERROR"

type kind struct {
	sentinel error
	code     string
	status   int
}

// Checked in order; the first match wins.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrUnprocessable, "UNPROCESSABLE", http.StatusUnprocessableEntity},
	{ErrPaymentFailed, "PAYMENT_FAILED", http.StatusUnprocessableEntity},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
}

// AppError carries the code and status an error is reported with. Err is the
// cause that errors.Is and errors.As see.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an error with a domain-specific code. err is usually a typed
// cause callers match with errors.As.
func New(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func ofKind(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return New(k.code, message, k.status, sentinel)
		}
	}
	return New(CodeInternal, message, http.StatusInternalServerError, sentinel)
}

// NotFound reports a missing resource, e.g. NotFound("order", id).
func NotFound(resource, id string) *AppError {
	return ofKind(ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return ofKind(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

func InvalidInput(message string) *AppError {
	return ofKind(ErrInvalidInput, message)
}

func Conflict(message string) *AppError {
	return ofKind(ErrConflict, message)
}

// PaymentFailed reports a capture the payment service refused.
func PaymentFailed(message string) *AppError {
	return ofKind(ErrPaymentFailed, message)
}

// ServiceUnavailable reports a dependency that cannot be reached right now.
func ServiceUnavailable(message string) *AppError {
	return ofKind(ErrServiceUnavail, message)
}

// Classify returns the code and status err is reported with: an AppError's
// own, else those of the first sentinel kind err wraps, else CodeInternal
// and 500.
func Classify(err error) (code string, status int) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code, k.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	_, status := Classify(err)
	return status
}
