package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared by the gateway client and the control surface
const (
	CodeGateway       = "GATEWAY_ERROR"
	CodeUnavailable   = "GATEWAY_UNAVAILABLE"
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnknownAction = "UNKNOWN_ACTION"
	CodeInternal      = "INTERNAL_ERROR"
	CodeRateLimited   = "RATE_LIMIT_EXCEEDED"
)

// defaultGatewayMessage is used when a failed response carries no body
const defaultGatewayMessage = "Request failed"

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewTooManyRequestsError creates a 429 error
func NewTooManyRequestsError(code string, message string) *AppError {
	return NewError(http.StatusTooManyRequests, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// NewGatewayError converts a non-2xx backend response into an AppError.
// The response body text becomes the message.
func NewGatewayError(statusCode int, body string) *AppError {
	message := strings.TrimSpace(body)
	if message == "" {
		message = defaultGatewayMessage
	}
	return NewError(statusCode, CodeGateway, message)
}

// NewUnavailableError reports a call short-circuited before reaching the backend
func NewUnavailableError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeUnavailable, message)
}

// Is checks if the target error is an AppError with the same code
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}

// FromError converts an error to an AppError.
// Anything that is not already an AppError becomes an internal error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError(CodeInternal, err.Error())
}

// Message returns the human readable part of err, the text a presentation
// layer shows in its scoped error slot
func Message(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// StatusCode extracts the HTTP status code, 500 if err is not an AppError
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
