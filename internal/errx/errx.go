package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/rtzll/insight/internal/model"
)

const (
	// ToolNotReadyMessage is returned to clients that query before analyzing.
	ToolNotReadyMessage = "Analyzer not initialized. Engines are not ready."
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
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

// FromError maps any error onto the API contract: tool-not-ready is a
// client error, everything else is a 500 carrying the error text.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrToolNotReady) {
		return New(err, http.StatusBadRequest, ToolNotReadyMessage)
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return appErr
	}

	return New(err, http.StatusInternalServerError, err.Error())
}

// WrapRedis wraps a Redis error with a consistent status code and message.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, "redis key not found")
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
