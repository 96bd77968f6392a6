package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgolden55/basebackend-sub001/internal/adapters/memory"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

func seedWallet(t *testing.T, store *memory.Store, walletID, userID string) *entities.CreditWallet {
	t.Helper()
	wallet := &entities.CreditWallet{
		ID:      walletID,
		UserID:  userID,
		Version: 1,
	}
	require.NoError(t, store.CreateWallet(context.Background(), wallet))
	return wallet
}

func seedCredit(t *testing.T, store *memory.Store, walletID, creditID string, ct entities.CreditType, amount int64, expiresAt *time.Time) {
	t.Helper()
	now := time.Now()
	txn := &entities.CreditTransaction{
		ID:       "txn-seed-" + creditID,
		WalletID: walletID,
		Type:     entities.TransactionTypeGrant,
		Amount:   amount,
	}
	_, err := store.ApplyAtomic(context.Background(), repositories.WalletMutation{
		WalletID: walletID,
		NewCredits: []*entities.Credit{{
			ID:              creditID,
			WalletID:        walletID,
			Type:            ct,
			Amount:          amount,
			RemainingAmount: amount,
			ExpiresAt:       expiresAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}},
		Transaction: txn,
	})
	require.NoError(t, err)
}

func spendMutation(walletID string, expectedVersion int64, consumptions ...repositories.CreditConsumption) repositories.WalletMutation {
	return repositories.WalletMutation{
		WalletID:        walletID,
		ExpectedVersion: expectedVersion,
		Consumptions:    consumptions,
		Transaction: &entities.CreditTransaction{
			ID:       "txn-" + walletID + "-" + time.Now().Format("150405.000000000"),
			WalletID: walletID,
			Type:     entities.TransactionTypeSpend,
		},
	}
}

func TestApplyAtomic_VersionConflict(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	seedCredit(t, store, "w1", "c1", entities.CreditTypePurchased, 500, nil)

	wallet, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)

	_, err = store.ApplyAtomic(ctx, spendMutation("w1", wallet.Version-1,
		repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypePurchased, Amount: 100},
	))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	// The stale writer changed nothing
	credit, err := store.GetCredit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), credit.RemainingAmount)
}

func TestApplyAtomic_ConcurrentWritersOneWins(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	seedCredit(t, store, "w1", "c1", entities.CreditTypePurchased, 500, nil)

	wallet, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.ApplyAtomic(ctx, spendMutation("w1", wallet.Version,
				repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypePurchased, Amount: 500},
			))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		}
	}
	assert.Equal(t, 1, succeeded, "same expected version must admit exactly one writer")

	credit, err := store.GetCredit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), credit.RemainingAmount, "credit must not be double spent")
}

func TestApplyAtomic_MultiWalletAllOrNothing(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	seedWallet(t, store, "w2", "u2")
	seedCredit(t, store, "w1", "c1", entities.CreditTypePurchased, 500, nil)
	seedCredit(t, store, "w2", "c2", entities.CreditTypePurchased, 100, nil)

	w1, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)
	w2, err := store.GetWallet(ctx, "w2")
	require.NoError(t, err)

	// Second mutation overdraws; the first must not land either
	_, err = store.ApplyAtomic(ctx,
		spendMutation("w1", w1.Version, repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypePurchased, Amount: 200}),
		spendMutation("w2", w2.Version, repositories.CreditConsumption{CreditID: "c2", Type: entities.CreditTypePurchased, Amount: 300}),
	)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientFunds))

	c1, err := store.GetCredit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), c1.RemainingAmount)

	after, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, w1.Version, after.Version)
	assert.Equal(t, int64(500), after.Purchased)
}

func TestApplyAtomic_CoverageReservationLimit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	seedCredit(t, store, "w1", "c1", entities.CreditTypeInsurance, 500, nil)

	require.NoError(t, store.Create(ctx, &entities.InsuranceProfile{
		ID:                 "p1",
		UserID:             "u1",
		PolicyNumber:       "POL-1",
		PackageType:        entities.PackageTypeFSSHIP,
		CoveragePercentage: 100,
		AnnualLimit:        1000,
		UsedAmount:         900,
		Active:             true,
	}))

	wallet, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)

	over := spendMutation("w1", wallet.Version,
		repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypeInsurance, Amount: 200},
	)
	over.CoverageReservation = &repositories.CoverageReservation{ProfileID: "p1", Amount: 200}

	_, err = store.ApplyAtomic(ctx, over)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAnnualLimitExceeded))

	profile, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), profile.UsedAmount)

	within := spendMutation("w1", wallet.Version,
		repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypeInsurance, Amount: 100},
	)
	within.CoverageReservation = &repositories.CoverageReservation{ProfileID: "p1", Amount: 100}

	_, err = store.ApplyAtomic(ctx, within)
	require.NoError(t, err)

	profile, err = store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), profile.UsedAmount)
}

func TestApplyAtomic_ExpiredCredit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	past := time.Now().Add(-time.Hour)
	seedCredit(t, store, "w1", "c1", entities.CreditTypeGifted, 300, &past)

	wallet, err := store.GetWallet(ctx, "w1")
	require.NoError(t, err)

	_, err = store.ApplyAtomic(ctx, spendMutation("w1", wallet.Version,
		repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypeGifted, Amount: 100},
	))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCreditExpired))

	// Expiry sweeps zero the credit with AllowExpired set
	_, err = store.ApplyAtomic(ctx, spendMutation("w1", wallet.Version,
		repositories.CreditConsumption{CreditID: "c1", Type: entities.CreditTypeGifted, Amount: 300, AllowExpired: true},
	))
	require.NoError(t, err)

	credit, err := store.GetCredit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), credit.RemainingAmount)
}

func TestListTransactions_NewestFirstWithPaging(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedWallet(t, store, "w1", "u1")
	seedCredit(t, store, "w1", "c1", entities.CreditTypePurchased, 1000, nil)
	seedCredit(t, store, "w1", "c2", entities.CreditTypePurchased, 1000, nil)
	seedCredit(t, store, "w1", "c3", entities.CreditTypePurchased, 1000, nil)

	all, err := store.ListTransactions(ctx, "w1", repositories.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "txn-seed-c3", all[0].ID)
	assert.Equal(t, "txn-seed-c1", all[2].ID)

	page, err := store.ListTransactions(ctx, "w1", repositories.TransactionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "txn-seed-c2", page[0].ID)
}

func TestListWalletsWithExpiredCredits(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now()

	seedWallet(t, store, "w1", "u1")
	seedWallet(t, store, "w2", "u2")
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	seedCredit(t, store, "w1", "c1", entities.CreditTypeGifted, 100, &past)
	seedCredit(t, store, "w2", "c2", entities.CreditTypeGifted, 100, &future)

	ids, err := store.ListWalletsWithExpiredCredits(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, ids)
}
