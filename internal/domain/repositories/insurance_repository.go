package repositories

import (
	"context"
	"time"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
)

// InsuranceRepository defines the interface for insurance profile data
// operations. UsedAmount is never mutated here; reservations go through
// LedgerRepository.ApplyAtomic so they commit with the spend.
type InsuranceRepository interface {
	// Create creates a new insurance profile
	Create(ctx context.Context, profile *entities.InsuranceProfile) error

	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id string) (*entities.InsuranceProfile, error)

	// GetByPolicyNumber retrieves a profile by its unique policy number
	GetByPolicyNumber(ctx context.Context, policyNumber string) (*entities.InsuranceProfile, error)

	// GetActiveByUser retrieves a user's active profile
	GetActiveByUser(ctx context.Context, userID string) (*entities.InsuranceProfile, error)

	// MarkVerified refreshes the profile's verification timestamp and
	// active flag
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time, active bool) error
}
