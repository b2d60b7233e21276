package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
)

// Job flow errors. Each failure class of the submit/track flow wraps one of these.
var (
	ErrUpload    = errors.New("upload failed")
	ErrChannel   = errors.New("push channel failed")
	ErrProtocol  = errors.New("malformed push message")
	ErrJobFailed = errors.New("job failed")
)

// Error codes used in AppError.Code.
const (
	CodeConfig   = "CONFIG_ERROR"
	CodeNetwork  = "NETWORK_ERROR"
	CodeServer   = "SERVER_ERROR"
	CodeChannel  = "CHANNEL_ERROR"
	CodeProtocol = "PROTOCOL_ERROR"
	CodeState    = "STATE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UploadError is returned when a submission is rejected, either before reaching the
// backend (Network) or by the backend itself.
type UploadError struct {
	Network    bool
	StatusCode int
	Detail     string
	Cause      error
}

func (e *UploadError) Error() string {
	if e.Network {
		return fmt.Sprintf("%s: %s: %v", CodeNetwork, ErrUpload, e.Cause)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: status %d: %s", CodeServer, ErrUpload, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s: status %d", CodeServer, ErrUpload, e.StatusCode)
}

func (e *UploadError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUpload, e.Cause}
	}
	return []error{ErrUpload}
}

// NewNetworkUploadError wraps a transport failure during upload.
func NewNetworkUploadError(cause error) *UploadError {
	return &UploadError{Network: true, Cause: cause}
}

// NewServerUploadError carries the backend's rejection payload.
func NewServerUploadError(status int, detail string, cause error) *UploadError {
	return &UploadError{StatusCode: status, Detail: detail, Cause: cause}
}
