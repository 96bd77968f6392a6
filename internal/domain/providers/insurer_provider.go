package providers

import (
	"context"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
)

// PolicyVerification is the insurer's answer to a verification request
type PolicyVerification struct {
	PolicyNumber string `json:"policy_number"`
	Active       bool   `json:"active"`
}

// InsurerProvider is the external insurer API. Claim adjudication happens
// entirely on the insurer side; this interface only submits and polls.
type InsurerProvider interface {
	// VerifyPolicy checks whether a policy is active with the insurer
	VerifyPolicy(ctx context.Context, policyNumber string) (*PolicyVerification, error)

	// SubmitClaim submits a claim and returns the insurer's reference.
	// A failed submission leaves the claim in its submitted state; the
	// sweep worker retries it later.
	SubmitClaim(ctx context.Context, claim *entities.InsuranceClaim) (string, error)
}
