package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

func TestClaimService_SubmitPromotesOnInsurerAck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)

	assert.Equal(t, entities.ClaimStatusProcessing, claim.Status)
	assert.NotEmpty(t, claim.ExternalRef)

	stored, err := f.claims.GetStatus(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusProcessing, stored.Status)
}

func TestClaimService_SubmitSurvivesInsurerOutage(t *testing.T) {
	f := newFixture(t)
	f.insurer.submitErr = errors.New("insurer down")
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusSubmitted, claim.Status)
	assert.Empty(t, claim.ExternalRef)

	// The sweep retries once the insurer recovers
	f.insurer.submitErr = nil
	resubmitted, err := f.claims.ResubmitPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resubmitted)

	stored, err := f.claims.GetStatus(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusProcessing, stored.Status)
	assert.NotEmpty(t, stored.ExternalRef)
}

func TestClaimService_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.claims.Submit(ctx, "", "appt-1", "txn-1", 100)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestClaimService_TransitionStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)
	require.Equal(t, entities.ClaimStatusProcessing, claim.Status)

	// Processing cannot jump straight to reconciled
	_, err = f.claims.Transition(ctx, claim.ID, entities.ClaimStatusReconciled)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	approved, err := f.claims.Transition(ctx, claim.ID, entities.ClaimStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusApproved, approved.Status)
	assert.NotNil(t, approved.ProcessedAt)

	// Approved cannot be rejected
	_, err = f.claims.Transition(ctx, claim.ID, entities.ClaimStatusRejected)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestClaimService_RejectedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)

	rejected, err := f.claims.Transition(ctx, claim.ID, entities.ClaimStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusRejected, rejected.Status)

	for _, next := range []entities.ClaimStatus{
		entities.ClaimStatusSubmitted,
		entities.ClaimStatusProcessing,
		entities.ClaimStatusApproved,
		entities.ClaimStatusReconciled,
	} {
		_, err = f.claims.Transition(ctx, claim.ID, next)
		require.Error(t, err, "rejected claim must not move to %s", next)
	}
}

func TestClaimService_ReconcileReportsMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)
	_, err = f.claims.Transition(ctx, claim.ID, entities.ClaimStatusApproved)
	require.NoError(t, err)

	reconciled, report, err := f.claims.Reconcile(ctx, claim.ID, 450)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimStatusReconciled, reconciled.Status)

	require.NotNil(t, report)
	assert.False(t, report.Matched)
	assert.Equal(t, int64(500), report.ExpectedAmount)
	assert.Equal(t, int64(450), report.SettledAmount)

	// The claim amount itself is never adjusted
	stored, err := f.claims.GetStatus(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stored.Amount)
}

func TestClaimService_ReconcileMatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.claims.Submit(ctx, "profile-1", "appt-1", "txn-1", 500)
	require.NoError(t, err)
	_, err = f.claims.Transition(ctx, claim.ID, entities.ClaimStatusApproved)
	require.NoError(t, err)

	_, report, err := f.claims.Reconcile(ctx, claim.ID, 500)
	require.NoError(t, err)
	assert.True(t, report.Matched)
}
