package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

func newTransferFixture(t *testing.T) (*ledgerFixture, *services.TransferService) {
	t.Helper()
	f := newFixture(t)
	transfers := services.NewTransferService(f.store, f.wallets, f.coverage, nil, 3)
	return f, transfers
}

func TestTransferService_MovesValueAtomically(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	f.grant(t, "donor", entities.CreditTypePurchased, 500, nil, entities.Restrictions{Transferable: true})

	receipt, err := transfers.Transfer(ctx, "donor", "recipient", 300, entities.Restrictions{})
	require.NoError(t, err)
	assert.Equal(t, int64(300), receipt.Amount)
	assert.NotEmpty(t, receipt.GiftCreditID)

	donor, err := f.wallets.Balance(ctx, "donor")
	require.NoError(t, err)
	assert.Equal(t, int64(200), donor.TotalAvailable())

	recipient, err := f.wallets.Balance(ctx, "recipient")
	require.NoError(t, err)
	assert.Equal(t, int64(300), recipient.Gifted)
	assert.Equal(t, int64(300), recipient.TotalAvailable())

	gift, err := f.store.GetCredit(ctx, receipt.GiftCreditID)
	require.NoError(t, err)
	assert.Equal(t, entities.CreditTypeGifted, gift.Type)
	assert.Equal(t, receipt.DonorTransactionID, gift.SourceRef)
}

func TestTransferService_NonTransferableCreditCannotFund(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	f.grant(t, "donor", entities.CreditTypePurchased, 300, nil, entities.Restrictions{Transferable: true})
	f.grant(t, "donor", entities.CreditTypeCorporate, 200, nil, entities.Restrictions{})

	// 500 total but only 300 transferable
	_, err := transfers.Transfer(ctx, "donor", "recipient", 400, entities.Restrictions{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientTransferableCredit))

	// Nothing moved on either side
	donor, err := f.wallets.Balance(ctx, "donor")
	require.NoError(t, err)
	assert.Equal(t, int64(500), donor.TotalAvailable())

	recipient, err := f.wallets.Balance(ctx, "recipient")
	require.NoError(t, err)
	assert.Equal(t, int64(0), recipient.TotalAvailable())
}

func TestTransferService_GiftInheritsStrictestRestrictions(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	maxUses := 2
	f.grant(t, "donor", entities.CreditTypePurchased, 500, nil, entities.Restrictions{
		AllowedServiceTypes: []string{"dental", "optical"},
		MaxUses:             &maxUses,
		Transferable:        true,
	})

	requestedUses := 5
	receipt, err := transfers.Transfer(ctx, "donor", "recipient", 200, entities.Restrictions{
		AllowedServiceTypes: []string{"dental"},
		MaxUses:             &requestedUses,
	})
	require.NoError(t, err)

	gift, err := f.store.GetCredit(ctx, receipt.GiftCreditID)
	require.NoError(t, err)
	assert.Equal(t, []string{"dental"}, gift.Restrictions.AllowedServiceTypes)
	require.NotNil(t, gift.Restrictions.MaxUses)
	assert.Equal(t, 2, *gift.Restrictions.MaxUses)
	// Re-gifting is opt-in; the recipient's credit is not transferable
	// unless the donor asked for it
	assert.False(t, gift.Restrictions.Transferable)
}

func TestTransferService_GiftExpiryCappedByFundingCredit(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	soon := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	later := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	f.grant(t, "donor", entities.CreditTypePurchased, 100, &soon, entities.Restrictions{Transferable: true})
	f.grant(t, "donor", entities.CreditTypePurchased, 400, &later, entities.Restrictions{Transferable: true})

	receipt, err := transfers.Transfer(ctx, "donor", "recipient", 300, entities.Restrictions{})
	require.NoError(t, err)

	gift, err := f.store.GetCredit(ctx, receipt.GiftCreditID)
	require.NoError(t, err)
	require.NotNil(t, gift.ExpiresAt)
	assert.True(t, gift.ExpiresAt.Equal(soon), "gift expiry must not outlive the earliest funding credit")
}

func TestTransferService_RecipientValidation(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	f.grant(t, "donor", entities.CreditTypePurchased, 500, nil, entities.Restrictions{Transferable: true})

	_, err := transfers.Transfer(ctx, "donor", "donor", 100, entities.Restrictions{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRecipient))

	_, err = transfers.Transfer(ctx, "donor", "", 100, entities.Restrictions{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRecipient))

	_, err = transfers.Transfer(ctx, "donor", "recipient", 0, entities.Restrictions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestTransferService_StaleVerificationBlocksInsuranceFunding(t *testing.T) {
	f, transfers := newTransferFixture(t)
	ctx := context.Background()

	f.addProfile(t, "donor", 10000, 0, time.Now().Add(-48*time.Hour))
	f.grant(t, "donor", entities.CreditTypeInsurance, 500, nil, entities.Restrictions{Transferable: true})

	_, err := transfers.Transfer(ctx, "donor", "recipient", 200, entities.Restrictions{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleVerification))
}
