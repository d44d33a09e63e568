// Package apperror defines a centralized system for application-specific errors.
// Every layer (validators, guards, services, stores) returns an *AppError, and the
// HTTP boundary turns it into a status code and a JSON body in one place.
// It's similar in concept to Nest.js's Exception Filters, where you can catch specific
// error types and customize the HTTP response.
package apperror

import (
	"errors"
	"fmt"
	// `net/http` is used for HTTP status codes.
	"net/http"
)

// ErrorType is an enumeration (using `iota`) for different categories of application errors.
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the document store
	DatabaseError
	// ConfigError represents an error related to application configuration
	ConfigError
	// AuthError represents an authentication error (missing/invalid token, bad credentials)
	AuthError
	// UnauthorizedError represents an authorization error (authenticated, but not the owner)
	UnauthorizedError
	// NotFoundError represents a resource not found error
	NotFoundError
	// ValidationError represents an input validation error
	ValidationError
	// BadRequestError represents a generic bad request (e.g. malformed JSON)
	BadRequestError
	// InternalError represents a generic internal server error
	InternalError
	// ConflictError represents a conflict, e.g., username already registered
	ConflictError
	// RateLimitError represents a client that exceeded its request window
	RateLimitError
	// UnsupportedMediaTypeError represents a request body that is not JSON
	UnsupportedMediaTypeError
)

// GenericInternalMessage is the only text a client ever sees for a 5xx error.
// The underlying cause is logged server-side.
const GenericInternalMessage = "Contact administrator"

// FieldViolation is one itemised problem found while validating a request.
// @Description A single validation failure
type FieldViolation struct {
	// Name of the offending field (JSON name or path parameter name).
	Field string `json:"field" example:"title"`
	// Where the field was read from: "body", "path" or "query".
	Location string `json:"location" example:"body"`
	// Human readable message.
	Message string `json:"msg" example:"Obligatory field"`
}

// AppError is a custom error type for the application.
// It allows wrapping an underlying error (`Err`) for more detailed debugging,
// and carries optional field-level details for validation failures.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error // Underlying error, never sent to the client
	Details []FieldViolation
}

// Error returns the string representation of the error, satisfying the `error` interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error so `errors.Is` and `errors.As` can inspect the chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code appropriate for the error type
func (e *AppError) StatusCode() int {
	switch e.Type {
	case AuthError:
		// 401: the caller is not (or no longer) authenticated.
		return http.StatusUnauthorized
	case UnauthorizedError:
		// 403: the caller is authenticated but may not touch this resource.
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError:
		return http.StatusBadRequest
	case ConflictError:
		return http.StatusConflict
	case RateLimitError:
		return http.StatusTooManyRequests
	case UnsupportedMediaTypeError:
		return http.StatusUnsupportedMediaType
	case DatabaseError, ConfigError, InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsServerError reports whether the error maps to a 5xx status.
func (e *AppError) IsServerError() bool {
	return e.StatusCode() >= http.StatusInternalServerError
}

// WithDetails attaches itemised violations and returns the same error for chaining.
func (e *AppError) WithDetails(details []FieldViolation) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new AppError. This is a generic constructor used when the
// error type is determined dynamically (the validation chain does this).
func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

// NewConfigError creates a new ConfigError
func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

// NewAuthError creates a new AuthError (for authentication issues)
func NewAuthError(message string, underlyingError error) *AppError {
	return NewAppError(AuthError, message, underlyingError)
}

// NewUnauthorizedError creates a new UnauthorizedError (for authorization issues)
func NewUnauthorizedError(message string, underlyingError error) *AppError {
	return NewAppError(UnauthorizedError, message, underlyingError)
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewValidationError creates a new ValidationError
func NewValidationError(message string, underlyingError error) *AppError {
	return NewAppError(ValidationError, message, underlyingError)
}

// NewBadRequestError creates a new BadRequestError
func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

// NewConflictError creates a new ConflictError
func NewConflictError(message string, underlyingError error) *AppError {
	return NewAppError(ConflictError, message, underlyingError)
}

// NewRateLimitError creates a new RateLimitError
func NewRateLimitError(message string) *AppError {
	return NewAppError(RateLimitError, message, nil)
}

func NewUnsupportedMediaTypeError(message string) *AppError {
	return NewAppError(UnsupportedMediaTypeError, message, nil)
}

// ErrorResponse represents a generic error response payload for API clients.
// @Description Error payload returned by every failing endpoint
type ErrorResponse struct {
	Error  string           `json:"error" example:"A description of the error"`
	Errors []FieldViolation `json:"errors,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse suitable for API responses.
// Only the user-facing `Message` is included, never the underlying `Err`; server errors
// are further reduced to the generic administrator message.
func (e *AppError) ToResponse() ErrorResponse {
	if e.IsServerError() {
		return ErrorResponse{Error: GenericInternalMessage}
	}
	return ErrorResponse{Error: e.Message, Errors: e.Details}
}

// FromError attempts to convert a generic error to an *AppError.
// Wrapped AppErrors are found too, so `fmt.Errorf("...: %w", appErr)` keeps its status.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == NotFoundError
}

// IsAuthError checks if an error is an AuthError (authentication problem)
func IsAuthError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == AuthError
}

// IsUnauthorizedError checks if an error is an UnauthorizedError (authorization problem)
func IsUnauthorizedError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == UnauthorizedError
}

// IsValidationError checks if an error is a Validation error
func IsValidationError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ValidationError
}

// IsConflictError checks if an error is a Conflict error
func IsConflictError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ConflictError
}
