package services

import (
	"context"
	"time"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// CoverageService maintains per-user insurance coverage and verification
// freshness. Usage reservations themselves commit inside the ledger
// transaction; this service answers the questions asked before that commit
// and refuses conservatively when verification has gone stale.
type CoverageService struct {
	repo      repositories.InsuranceRepository
	insurer   providers.InsurerProvider
	freshness time.Duration
}

// NewCoverageService creates a new coverage service
func NewCoverageService(repo repositories.InsuranceRepository, insurer providers.InsurerProvider, freshness time.Duration) *CoverageService {
	return &CoverageService{
		repo:      repo,
		insurer:   insurer,
		freshness: freshness,
	}
}

// Verify confirms a policy with the insurer and refreshes the profile's
// verification timestamp
func (s *CoverageService) Verify(ctx context.Context, policyNumber string) (*entities.InsuranceProfile, error) {
	profile, err := s.repo.GetByPolicyNumber(ctx, policyNumber)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError("no insurance profile for policy").WithCode(apperrors.CodeVerificationFailed)
		}
		return nil, err
	}

	verification, err := s.insurer.VerifyPolicy(ctx, policyNumber)
	if err != nil {
		return nil, apperrors.NewExternalError("insurer verification failed", err).WithCode(apperrors.CodeVerificationFailed)
	}

	now := time.Now()
	if err := s.repo.MarkVerified(ctx, profile.ID, now, verification.Active); err != nil {
		return nil, err
	}

	profile.LastVerifiedAt = now
	profile.Active = verification.Active
	return profile, nil
}

// ActiveProfileForUser returns the user's active profile
func (s *CoverageService) ActiveProfileForUser(ctx context.Context, userID string) (*entities.InsuranceProfile, error) {
	return s.repo.GetActiveByUser(ctx, userID)
}

// RequireFresh refuses with StaleVerification when the profile's last
// verification is older than the configured freshness window. Spends and
// transfers involving insurance credit must pass this gate.
func (s *CoverageService) RequireFresh(profile *entities.InsuranceProfile, now time.Time) error {
	if !profile.Active {
		return apperrors.NewStaleError(apperrors.CodeStaleVerification, "insurance profile is inactive; re-verify the policy")
	}
	if !profile.VerifiedWithin(s.freshness, now) {
		return apperrors.NewStaleError(apperrors.CodeStaleVerification, "insurance verification has expired; re-verify the policy")
	}
	return nil
}

// Freshness returns the configured verification freshness window
func (s *CoverageService) Freshness() time.Duration {
	return s.freshness
}
