package insurer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
)

// MockProvider is an in-process insurer for development and tests. Every
// policy verifies as active unless its number carries an "INACTIVE"
// marker, and every submission is accepted.
type MockProvider struct {
	mu         sync.Mutex
	references map[string]string
}

// NewMockProvider creates a mock insurer provider
func NewMockProvider() providers.InsurerProvider {
	return &MockProvider{
		references: make(map[string]string),
	}
}

// VerifyPolicy verifies a policy against the mock rules
func (m *MockProvider) VerifyPolicy(ctx context.Context, policyNumber string) (*providers.PolicyVerification, error) {
	return &providers.PolicyVerification{
		PolicyNumber: policyNumber,
		Active:       !strings.Contains(strings.ToUpper(policyNumber), "INACTIVE"),
	}, nil
}

// SubmitClaim accepts a claim and returns a stable mock reference
func (m *MockProvider) SubmitClaim(ctx context.Context, claim *entities.InsuranceClaim) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Resubmissions of the same claim get the same reference
	if ref, ok := m.references[claim.ID]; ok {
		return ref, nil
	}

	ref := fmt.Sprintf("MOCK-%s", uuid.New().String()[:8])
	m.references[claim.ID] = ref
	return ref, nil
}
