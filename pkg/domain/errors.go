package domain

import "fmt"

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeDuplicate           = "DUPLICATE_LEAD"
	ErrCodeRateLimit           = "RATE_LIMITED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
	ErrCodeNotification        = "NOTIFICATION_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// Error constructors

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewDuplicateError creates a new duplicate lead error
func NewDuplicateError(msg string) error {
	return &DomainError{
		Code:    ErrCodeDuplicate,
		Message: msg,
	}
}

// NewRateLimitError creates a new rate limited error
func NewRateLimitError(msg string) error {
	return &DomainError{
		Code:    ErrCodeRateLimit,
		Message: msg,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
	}
}

// NewUpstreamError creates a new upstream unavailable error
func NewUpstreamError(service string, err error) error {
	return &DomainError{
		Code:    ErrCodeUpstreamUnavailable,
		Message: fmt.Sprintf("%s is unavailable", service),
		Err:     err,
	}
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(err error) error {
	return &DomainError{
		Code:    ErrCodePersistence,
		Message: "A storage error occurred",
		Err:     err,
	}
}

// NewNotificationError creates a new notification delivery error
func NewNotificationError(err error) error {
	return &DomainError{
		Code:    ErrCodeNotification,
		Message: "Failed to deliver notification",
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// Helper functions to check error types

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeNotFound
	}
	return false
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeValidation
	}
	return false
}

// IsDuplicate checks if the error is a duplicate lead error
func IsDuplicate(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeDuplicate
	}
	return false
}

// IsRateLimit checks if the error is a rate limited error
func IsRateLimit(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeRateLimit
	}
	return false
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeUnauthorized
	}
	return false
}

// IsUpstreamUnavailable checks if the error is an upstream unavailable error
func IsUpstreamUnavailable(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodeUpstreamUnavailable
	}
	return false
}

// IsPersistence checks if the error is a persistence error
func IsPersistence(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Code == ErrCodePersistence
	}
	return false
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	if de, ok := err.(*DomainError); ok {
		return de.Code
	}
	return ErrCodeInternal
}
