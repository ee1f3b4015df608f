package services

import (
	"errors"
	"fmt"
)

// ErrorType categorizes an engine error. The taxonomy mirrors the gate's
// deny surface: client denials are expected and user-actionable, fraud
// denials only via support, store failures fail closed.
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeClientDenied ErrorType = "client_denied"
	ErrorTypeFraudDenied  ErrorType = "fraud_denied"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func isErrorType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError reports whether err is a not-found domain error.
func IsNotFoundError(err error) bool { return isErrorType(err, ErrorTypeNotFound) }

// IsValidationError reports whether err is a validation domain error.
func IsValidationError(err error) bool { return isErrorType(err, ErrorTypeValidation) }

// IsClientDeniedError reports whether err is a plan or quota denial.
func IsClientDeniedError(err error) bool { return isErrorType(err, ErrorTypeClientDenied) }

// IsFraudDeniedError reports whether err is a risk-driven denial.
func IsFraudDeniedError(err error) bool { return isErrorType(err, ErrorTypeFraudDenied) }

// IsConflictError reports whether err is a conflict domain error.
func IsConflictError(err error) bool { return isErrorType(err, ErrorTypeConflict) }

// IsInternalError reports whether err is an internal domain error.
func IsInternalError(err error) bool { return isErrorType(err, ErrorTypeInternal) }

// GetErrorType returns the domain error type, or ErrorTypeInternal for
// errors outside the taxonomy.
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails returns the detail map attached to a domain error, if any.
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

var (
	// ErrUserNotFound covers gate checks against unknown user ids.
	ErrUserNotFound = NewDomainError(ErrorTypeNotFound, "user not found", nil)

	// ErrRecordNotFound covers admin operations on missing records.
	ErrRecordNotFound = NewDomainError(ErrorTypeNotFound, "entitlement record not found", nil)

	// ErrInvalidInput covers payload validation failures.
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)

	// ErrStoreUnavailable covers transient record-store failures after the
	// gate's retry budget is exhausted. The gate fails closed on it.
	ErrStoreUnavailable = NewDomainError(ErrorTypeInternal, "record store unavailable", nil)
)
