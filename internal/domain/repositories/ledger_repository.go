package repositories

import (
	"context"
	"time"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
)

// CreditConsumption decrements a credit's remaining amount and the matching
// wallet sub-balance. AllowExpired is set only by the expiry sweep, which
// consumes value from already-expired credits.
type CreditConsumption struct {
	CreditID     string
	Type         entities.CreditType
	Amount       int64
	AllowExpired bool
}

// CoverageReservation reserves insurance coverage headroom inside the same
// transaction as the ledger commit. The reservation fails the whole commit
// with AnnualLimitExceeded if it would push used amount past the limit.
type CoverageReservation struct {
	ProfileID string
	Amount    int64
}

/// WalletMutation is the unit of atomic change for one wallet: an ordered
// set of credit consumptions, new credits, an optional coverage
// reservation, and exactly one transaction record.
type WalletMutation struct {
	WalletID            string
	ExpectedVersion     int64
	Consumptions        []CreditConsumption
	NewCredits          []*entities.Credit
	CoverageReservation *CoverageReservation
	Transaction         *entities.CreditTransaction
}

// TransactionFilter narrows transaction history queries
type TransactionFilter struct {
	Limit  int
	Offset int
}

// LedgerRepository is the transactional store for wallets, credits and
// transaction records.
type LedgerRepository interface {
	// CreateWallet creates a wallet; wallets are created lazily on first grant
	CreateWallet(ctx context.Context, wallet *entities.CreditWallet) error

	// GetWallet retrieves a wallet by ID
	GetWallet(ctx context.Context, walletID string) (*entities.CreditWallet, error)

	// GetWalletByUser retrieves a user's wallet
	GetWalletByUser(ctx context.Context, userID string) (*entities.CreditWallet, error)

	// ListActiveCredits returns credits with remaining value, including
	// ones already past expiry (the prioritizer filters those; the sweep
	// consumes them)
	ListActiveCredits(ctx context.Context, walletID string) ([]*entities.Credit, error)

	// GetCredit retrieves a single credit by ID
	GetCredit(ctx context.Context, creditID string) (*entities.Credit, error)

	// ApplyAtomic commits the given mutations as a single all-or-nothing
	// unit. Mutations spanning multiple wallets are applied with wallets
	// locked in ascending wallet-id order. No partial application is ever
	// observable. Returns post-commit wallet snapshots in mutation order.
	ApplyAtomic(ctx context.Context, mutations ...WalletMutation) ([]*entities.CreditWallet, error)

	// ListTransactions returns a wallet's transactions, newest first
	ListTransactions(ctx context.Context, walletID string, filter TransactionFilter) ([]*entities.CreditTransaction, error)

	// ListWalletsWithExpiredCredits returns IDs of wallets holding credits
	// that expired at or before now and still carry remaining value
	ListWalletsWithExpiredCredits(ctx context.Context, now time.Time) ([]string, error)
}
