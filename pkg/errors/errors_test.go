package errors

import (
	"errors"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewValidationError("amount must be positive")
	if got := err.Error(); got != "VALIDATION: amount must be positive" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := NewInternalError("query failed", errors.New("connection reset"))
	if got := wrapped.Error(); got != "INTERNAL: query failed: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError("wrapper", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
}

func TestIsTypeAndHasCode(t *testing.T) {
	err := NewInsufficientError(CodeInsufficientEligibleCredit, "not enough credit")

	if !IsType(err, ErrorTypeInsufficient) {
		t.Error("IsType() should match insufficient")
	}
	if IsType(err, ErrorTypeNotFound) {
		t.Error("IsType() should not match not found")
	}
	if !HasCode(err, CodeInsufficientEligibleCredit) {
		t.Error("HasCode() should match the attached code")
	}
	if HasCode(errors.New("plain"), CodeInsufficientEligibleCredit) {
		t.Error("HasCode() should reject non-AppError values")
	}
}

func TestWithCode(t *testing.T) {
	err := NewValidationError("cannot transition").WithCode(CodeInvalidTransition)
	if !HasCode(err, CodeInvalidTransition) {
		t.Error("WithCode() should attach the code")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewConflictError("wallet changed")) {
		t.Error("conflicts are retryable")
	}
	if IsRetryable(NewValidationError("bad input")) {
		t.Error("validation errors are not retryable")
	}
}
