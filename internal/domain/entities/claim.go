package entities

import (
	"time"
)

// ClaimStatus is the state of an insurance claim
type ClaimStatus string

const (
	ClaimStatusSubmitted  ClaimStatus = "submitted"
	ClaimStatusProcessing ClaimStatus = "processing"
	ClaimStatusApproved   ClaimStatus = "approved"
	ClaimStatusRejected   ClaimStatus = "rejected"
	ClaimStatusReconciled ClaimStatus = "reconciled"
)

// Terminal reports whether the status is final. Terminal claims are never
// reopened; disputed rejections require a new claim.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusRejected || s == ClaimStatusReconciled
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next. Only processing claims may be approved or rejected, and only
// approved claims may be reconciled.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	switch s {
	case ClaimStatusSubmitted:
		return next == ClaimStatusProcessing
	case ClaimStatusProcessing:
		return next == ClaimStatusApproved || next == ClaimStatusRejected
	case ClaimStatusApproved:
		return next == ClaimStatusReconciled
	}
	return false
}

// InsuranceClaim records an insurance-backed spend submitted for insurer
// settlement
type InsuranceClaim struct {
	ID            string      `json:"id" db:"id"`
	ProfileID     string      `json:"profile_id" db:"profile_id"`
	AppointmentID string      `json:"appointment_id" db:"appointment_id"`
	TransactionID string      `json:"transaction_id,omitempty" db:"transaction_id"`
	Amount        int64       `json:"amount" db:"amount"`
	Status        ClaimStatus `json:"status" db:"status"`
	ExternalRef   string      `json:"external_ref,omitempty" db:"external_ref"`
	SubmittedAt   time.Time   `json:"submitted_at" db:"submitted_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// ReconciliationReport compares the insurer-settled amount against the
// insurance-backed consumption recorded for the originating spend.
// Mismatches are reported, never silently adjusted.
type ReconciliationReport struct {
	ClaimID        string `json:"claim_id"`
	ExpectedAmount int64  `json:"expected_amount"`
	SettledAmount  int64  `json:"settled_amount"`
	Matched        bool   `json:"matched"`
}
