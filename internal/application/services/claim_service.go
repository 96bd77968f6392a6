package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// ClaimService drives the claim state machine. Transitions arrive from the
// external insurer; the service only enforces which transitions are legal
// and confirms amounts at reconciliation.
type ClaimService struct {
	repo    repositories.ClaimRepository
	insurer providers.InsurerProvider
}

// NewClaimService creates a new claim service
func NewClaimService(repo repositories.ClaimRepository, insurer providers.InsurerProvider) *ClaimService {
	return &ClaimService{
		repo:    repo,
		insurer: insurer,
	}
}

// Submit creates a claim and attempts first submission to the insurer. If
// the insurer is unreachable the claim stays submitted and the sweep worker
// retries it; it is never dropped.
func (s *ClaimService) Submit(ctx context.Context, profileID, appointmentID, transactionID string, amount int64) (*entities.InsuranceClaim, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("claim amount must be positive")
	}
	if profileID == "" || appointmentID == "" {
		return nil, apperrors.NewValidationError("profile and appointment are required")
	}

	now := time.Now()
	claim := &entities.InsuranceClaim{
		ID:            uuid.New().String(),
		ProfileID:     profileID,
		AppointmentID: appointmentID,
		TransactionID: transactionID,
		Amount:        amount,
		Status:        entities.ClaimStatusSubmitted,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, claim); err != nil {
		return nil, err
	}

	s.trySubmit(ctx, claim)
	return claim, nil
}

// trySubmit forwards a submitted claim to the insurer and promotes it to
// processing on success
func (s *ClaimService) trySubmit(ctx context.Context, claim *entities.InsuranceClaim) {
	if s.insurer == nil {
		return
	}

	ref, err := s.insurer.SubmitClaim(ctx, claim)
	if err != nil {
		log.Warn().Err(err).Str("claim_id", claim.ID).Msg("insurer submission failed; claim stays submitted for retry")
		return
	}

	claim.ExternalRef = ref
	claim.Status = entities.ClaimStatusProcessing
	claim.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, claim); err != nil {
		log.Error().Err(err).Str("claim_id", claim.ID).Msg("failed to persist claim promotion")
	}
}

// GetStatus returns a claim's current state
func (s *ClaimService) GetStatus(ctx context.Context, claimID string) (*entities.InsuranceClaim, error) {
	return s.repo.GetByID(ctx, claimID)
}

// Transition applies an insurer-driven state change. Illegal transitions
// are refused; terminal claims are never reopened.
func (s *ClaimService) Transition(ctx context.Context, claimID string, next entities.ClaimStatus) (*entities.InsuranceClaim, error) {
	claim, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if !claim.Status.CanTransitionTo(next) {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"claim in status %s cannot move to %s", claim.Status, next,
		)).WithCode(apperrors.CodeInvalidTransition)
	}

	now := time.Now()
	claim.Status = next
	claim.UpdatedAt = now
	if next == entities.ClaimStatusApproved || next == entities.ClaimStatusRejected {
		claim.ProcessedAt = &now
	}
	if next == entities.ClaimStatusRejected {
		// The spend already completed; rejection flags the claim for
		// offline reconciliation rather than reversing anything.
		log.Warn().Str("claim_id", claim.ID).Msg("claim rejected; flagged for offline reconciliation")
	}

	if err := s.repo.Update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Reconcile settles an approved claim. The settled amount is confirmed
// against the insurance-backed consumption recorded for the originating
// spend; a mismatch is reported in the returned record, never adjusted.
func (s *ClaimService) Reconcile(ctx context.Context, claimID string, settledAmount int64) (*entities.InsuranceClaim, *entities.ReconciliationReport, error) {
	claim, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}

	if !claim.Status.CanTransitionTo(entities.ClaimStatusReconciled) {
		return nil, nil, apperrors.NewValidationError(fmt.Sprintf(
			"claim in status %s cannot be reconciled", claim.Status,
		)).WithCode(apperrors.CodeInvalidTransition)
	}

	report := &entities.ReconciliationReport{
		ClaimID:        claim.ID,
		ExpectedAmount: claim.Amount,
		SettledAmount:  settledAmount,
		Matched:        settledAmount == claim.Amount,
	}
	if !report.Matched {
		log.Warn().
			Str("claim_id", claim.ID).
			Int64("expected", report.ExpectedAmount).
			Int64("settled", report.SettledAmount).
			Msg("claim settlement amount mismatch")
	}

	now := time.Now()
	claim.Status = entities.ClaimStatusReconciled
	claim.UpdatedAt = now

	if err := s.repo.Update(ctx, claim); err != nil {
		return nil, nil, err
	}
	return claim, report, nil
}

// ResubmitPending retries claims the insurer never acknowledged. Run
// periodically by the sweep worker.
func (s *ClaimService) ResubmitPending(ctx context.Context, limit int) (int, error) {
	claims, err := s.repo.ListByStatus(ctx, entities.ClaimStatusSubmitted, limit)
	if err != nil {
		return 0, err
	}

	resubmitted := 0
	for _, claim := range claims {
		before := claim.Status
		s.trySubmit(ctx, claim)
		if before == entities.ClaimStatusSubmitted && claim.Status == entities.ClaimStatusProcessing {
			resubmitted++
		}
	}
	return resubmitted, nil
}
