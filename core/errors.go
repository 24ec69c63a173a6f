package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes failures of the auth flow.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindConflict       ErrorKind = "conflict"
	KindAuthentication ErrorKind = "authentication"
	KindInternal       ErrorKind = "internal"
)

// User-facing messages.
const (
	MsgAllFieldsRequired  = "All fields are required."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgUsernameExists     = "Username already exists."
	MsgPasswordTooLong    = "Password must be at most 72 bytes."
	MsgInvalidCredentials = "Invalid username or password."
	MsgRegistrationFailed = "An error occurred during registration."
	MsgLoginFailed        = "An error occurred during login."
	MsgLogoutFailed       = "Failed to log out."
	MsgSessionFailed      = "An error occurred while reading your session."
	MsgNotFound           = "Not Found"
)

// AppError is the error value returned by AuthService operations.
// Message is always safe to show to the caller; Cause never is.
type AppError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func ValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func ConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// AuthenticationError is identical for unknown users and wrong passwords.
func AuthenticationError() *AppError {
	return &AppError{Kind: KindAuthentication, Message: MsgInvalidCredentials}
}

func InternalError(message string, cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Cause: cause}
}

// AsAppError converts any error into an *AppError, treating unknown errors as internal.
func AsAppError(err error, fallback string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(fallback, err)
}
