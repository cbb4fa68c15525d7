package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is returned when a Redis key does not exist.
	RedisNotFoundMessage = "redis key not found"
	// ClassificationErrorMessage is returned when routing a question fails.
	ClassificationErrorMessage = "failed to classify question"
	// MergeErrorMessage is returned when agent outputs cannot be combined.
	MergeErrorMessage = "failed to merge agent answers"
	// FinalizeErrorMessage is returned when the final polish step fails.
	FinalizeErrorMessage = "failed to finalize answer"
	// InvalidInputMessage describes rejected caller input.
	InvalidInputMessage = "invalid input"
)

// Sentinel kinds. Match them with errors.Is on any AppError produced by the
// helpers below.
var (
	ErrClassification = errors.New("classification failed")
	ErrMerge          = errors.New("merge failed")
	ErrFinalize       = errors.New("finalize failed")
	ErrInvalidInput   = errors.New("invalid input")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	kind    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

func newKind(kind, err error, status int, message string) error {
	if err == nil {
		err = kind
	}
	return &AppError{Err: err, Status: status, Message: message, kind: kind}
}

// WrapClassification marks a fatal classifier failure.
func WrapClassification(err error) error {
	return newKind(ErrClassification, err, http.StatusBadGateway, ClassificationErrorMessage)
}

// WrapMerge marks a fatal merger failure.
func WrapMerge(err error) error {
	return newKind(ErrMerge, err, http.StatusBadGateway, MergeErrorMessage)
}

// WrapFinalize marks a fatal finalizer failure.
func WrapFinalize(err error) error {
	return newKind(ErrFinalize, err, http.StatusBadGateway, FinalizeErrorMessage)
}

// InvalidInput builds a 400 error with a caller-facing detail.
func InvalidInput(format string, args ...any) error {
	return newKind(ErrInvalidInput, fmt.Errorf(format, args...), http.StatusBadRequest, InvalidInputMessage)
}

// Is reports whether the target matches the error kind, the underlying error
// or the AppError itself.
func (e *AppError) Is(target error) bool {
	if e.kind != nil && target == e.kind {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// StatusOf returns the HTTP-style status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return SystemErrorMessage
}
