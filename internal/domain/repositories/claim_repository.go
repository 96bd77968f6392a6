package repositories

import (
	"context"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
)

// ClaimRepository defines the interface for insurance claim data operations
type ClaimRepository interface {
	// Create creates a new claim
	Create(ctx context.Context, claim *entities.InsuranceClaim) error

	// GetByID retrieves a claim by ID
	GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error)

	// Update persists claim status changes
	Update(ctx context.Context, claim *entities.InsuranceClaim) error

	// ListByStatus retrieves claims in a given status, oldest first
	ListByStatus(ctx context.Context, status entities.ClaimStatus, limit int) ([]*entities.InsuranceClaim, error)
}
