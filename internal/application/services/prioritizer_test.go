package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

func ptrTime(t time.Time) *time.Time { return &t }

func makeCredit(id string, ct entities.CreditType, remaining int64, expiresAt *time.Time, createdAt time.Time) *entities.Credit {
	return &entities.Credit{
		ID:              id,
		WalletID:        "wallet-1",
		Type:            ct,
		Amount:          remaining,
		RemainingAmount: remaining,
		ExpiresAt:       expiresAt,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestSelectCredits_ExpiryFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)

	credits := []*entities.Credit{
		makeCredit("later", entities.CreditTypeGifted, 1000, ptrTime(now.Add(30*24*time.Hour)), base),
		makeCredit("sooner", entities.CreditTypeCorporate, 1000, ptrTime(now.Add(7*24*time.Hour)), base),
		makeCredit("never", entities.CreditTypePurchased, 1000, nil, base),
	}

	selections, err := services.SelectCredits(credits, 1500, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)

	// Soonest expiry drains first regardless of category rank
	require.Len(t, selections, 2)
	assert.Equal(t, "sooner", selections[0].CreditID)
	assert.Equal(t, int64(1000), selections[0].Amount)
	assert.Equal(t, "later", selections[1].CreditID)
	assert.Equal(t, int64(500), selections[1].Amount)
}

func TestSelectCredits_CategoryTieBreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)
	expiry := ptrTime(now.Add(10 * 24 * time.Hour))

	credits := []*entities.Credit{
		makeCredit("corporate", entities.CreditTypeCorporate, 100, expiry, base),
		makeCredit("purchased", entities.CreditTypePurchased, 100, expiry, base),
		makeCredit("insurance", entities.CreditTypeInsurance, 100, expiry, base),
		makeCredit("gifted", entities.CreditTypeGifted, 100, expiry, base),
	}

	selections, err := services.SelectCredits(credits, 400, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)
	require.Len(t, selections, 4)

	assert.Equal(t, "gifted", selections[0].CreditID)
	assert.Equal(t, "insurance", selections[1].CreditID)
	assert.Equal(t, "purchased", selections[2].CreditID)
	assert.Equal(t, "corporate", selections[3].CreditID)
}

func TestSelectCredits_GiftedBeforeInsurance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)
	expiry := ptrTime(now.Add(10 * 24 * time.Hour))

	credits := []*entities.Credit{
		makeCredit("insurance", entities.CreditTypeInsurance, 1000, expiry, base),
		makeCredit("gifted", entities.CreditTypeGifted, 500, expiry, base),
	}

	selections, err := services.SelectCredits(credits, 600, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)
	require.Len(t, selections, 2)

	assert.Equal(t, "gifted", selections[0].CreditID)
	assert.Equal(t, int64(500), selections[0].Amount)
	assert.Equal(t, "insurance", selections[1].CreditID)
	assert.Equal(t, int64(100), selections[1].Amount)
}

func TestSelectCredits_FIFOWithinType(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	credits := []*entities.Credit{
		makeCredit("newer", entities.CreditTypePurchased, 100, nil, now.Add(-1*time.Hour)),
		makeCredit("older", entities.CreditTypePurchased, 100, nil, now.Add(-48*time.Hour)),
	}

	selections, err := services.SelectCredits(credits, 150, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)
	require.Len(t, selections, 2)
	assert.Equal(t, "older", selections[0].CreditID)
	assert.Equal(t, "newer", selections[1].CreditID)
}

func TestSelectCredits_SkipsIneligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)

	expired := makeCredit("expired", entities.CreditTypeGifted, 500, ptrTime(now.Add(-time.Minute)), base)
	restricted := makeCredit("dental-only", entities.CreditTypeCorporate, 500, nil, base)
	restricted.Restrictions.AllowedServiceTypes = []string{"dental"}
	open := makeCredit("open", entities.CreditTypePurchased, 500, nil, base)

	svc := entities.ServiceContext{ServiceType: "consultation"}
	selections, err := services.SelectCredits([]*entities.Credit{expired, restricted, open}, 300, svc, now, services.SelectionOptions{})
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.Equal(t, "open", selections[0].CreditID)
}

func TestSelectCredits_SourceTypeRestriction(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)

	credits := []*entities.Credit{
		makeCredit("gifted", entities.CreditTypeGifted, 500, nil, base),
		makeCredit("insurance", entities.CreditTypeInsurance, 500, nil, base),
	}

	svc := entities.ServiceContext{SourceTypes: []entities.CreditType{entities.CreditTypeInsurance}}
	selections, err := services.SelectCredits(credits, 400, svc, now, services.SelectionOptions{})
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.Equal(t, "insurance", selections[0].CreditID)
}

func TestSelectCredits_InsufficientNeverPartial(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	credits := []*entities.Credit{
		makeCredit("only", entities.CreditTypePurchased, 200, nil, now.Add(-time.Hour)),
	}

	selections, err := services.SelectCredits(credits, 500, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.Error(t, err)
	assert.Nil(t, selections)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInsufficient))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientEligibleCredit))
}

func TestSelectCredits_TransferableOnlyCodes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-time.Hour)

	nonTransferable := makeCredit("fixed", entities.CreditTypePurchased, 1000, nil, base)

	// Value exists but none of it is transferable
	_, err := services.SelectCredits([]*entities.Credit{nonTransferable}, 100, entities.ServiceContext{}, now, services.SelectionOptions{
		TransferableOnly: true,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNonTransferable))

	// Some transferable value exists but not enough
	transferable := makeCredit("open", entities.CreditTypePurchased, 50, nil, base)
	transferable.Restrictions.Transferable = true
	_, err = services.SelectCredits([]*entities.Credit{nonTransferable, transferable}, 100, entities.ServiceContext{}, now, services.SelectionOptions{
		TransferableOnly: true,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientTransferableCredit))
}

func TestSelectCredits_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-24 * time.Hour)
	expiry := ptrTime(now.Add(5 * 24 * time.Hour))

	credits := []*entities.Credit{
		makeCredit("b", entities.CreditTypePurchased, 300, expiry, base),
		makeCredit("a", entities.CreditTypePurchased, 300, expiry, base),
		makeCredit("c", entities.CreditTypePurchased, 300, expiry, base),
	}

	first, err := services.SelectCredits(credits, 700, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)

	// Same inputs in a different order produce the identical selection
	reordered := []*entities.Credit{credits[2], credits[0], credits[1]}
	second, err := services.SelectCredits(reordered, 700, entities.ServiceContext{}, now, services.SelectionOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[0].CreditID)
}

func TestSumByType(t *testing.T) {
	selections := []entities.CreditSelection{
		{CreditID: "1", Type: entities.CreditTypeInsurance, Amount: 100},
		{CreditID: "2", Type: entities.CreditTypeGifted, Amount: 50},
		{CreditID: "3", Type: entities.CreditTypeInsurance, Amount: 25},
	}
	assert.Equal(t, int64(125), services.SumByType(selections, entities.CreditTypeInsurance))
	assert.Equal(t, int64(0), services.SumByType(selections, entities.CreditTypeCorporate))
}
