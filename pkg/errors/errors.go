package errors

import (
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInsufficient indicates the wallet cannot cover the requested amount
	ErrorTypeInsufficient ErrorType = "INSUFFICIENT"

	// ErrorTypeConflict indicates a concurrent modification was detected
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeStale indicates a precondition has gone stale and must be refreshed
	ErrorTypeStale ErrorType = "STALE"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// Machine-readable error codes surfaced to API callers. Messages carry
// enough detail to react; raw internal identifiers are never included.
const (
	CodeInsufficientFunds              = "INSUFFICIENT_FUNDS"
	CodeInsufficientEligibleCredit     = "INSUFFICIENT_ELIGIBLE_CREDIT"
	CodeInsufficientTransferableCredit = "INSUFFICIENT_TRANSFERABLE_CREDIT"
	CodeNonTransferable                = "NON_TRANSFERABLE"
	CodeInvalidRecipient               = "INVALID_RECIPIENT"
	CodeAnnualLimitExceeded            = "ANNUAL_LIMIT_EXCEEDED"
	CodeConcurrentModification         = "CONCURRENT_MODIFICATION"
	CodeCreditExpired                  = "CREDIT_EXPIRED"
	CodeStaleVerification              = "STALE_VERIFICATION"
	CodeVerificationFailed             = "VERIFICATION_FAILED"
	CodeInvalidTransition              = "INVALID_TRANSITION"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode attaches a machine-readable code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInsufficientError creates an insufficiency error with a machine-readable code
func NewInsufficientError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInsufficient,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a concurrent modification error; callers may retry
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeConcurrentModification,
		Message: message,
	}
}

// NewStaleError creates a staleness error with a machine-readable code
func NewStaleError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeStale,
		Code:    code,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// IsRetryable reports whether the operation that produced err may be retried
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeConflict)
}
