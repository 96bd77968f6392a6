package entities

import (
	"time"
)

// TransactionType classifies a ledger transaction
type TransactionType string

const (
	TransactionTypeSpend           TransactionType = "spend"
	TransactionTypePurchase        TransactionType = "purchase"
	TransactionTypeGrant           TransactionType = "grant"
	TransactionTypeGiftIn          TransactionType = "gift-in"
	TransactionTypeGiftOut         TransactionType = "gift-out"
	TransactionTypeExpiry          TransactionType = "expiry"
	TransactionTypeClaimSettlement TransactionType = "claim-settlement"
)

// CreditTransaction is an immutable, append-only audit record. It is the
// sole source of truth for reconstructing balances if sub-balances ever
// diverge from the credits they summarize.
type CreditTransaction struct {
	ID                 string          `json:"id" db:"id"`
	WalletID           string          `json:"wallet_id" db:"wallet_id"`
	Type               TransactionType `json:"type" db:"type"`
	Amount             int64           `json:"amount" db:"amount"`
	AffectedCreditIDs  []string        `json:"affected_credit_ids" db:"affected_credit_ids"`
	CounterpartyUserID *string         `json:"counterparty_user_id,omitempty" db:"counterparty_user_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// SpendReceipt is returned to callers after a successful spend
type SpendReceipt struct {
	TransactionID    string            `json:"transaction_id"`
	ConsumedCredits  []CreditSelection `json:"consumed_credits"`
	RemainingBalance int64             `json:"remaining_balance"`
	Wallet           *CreditWallet     `json:"wallet"`
	ClaimID          string            `json:"claim_id,omitempty"`
}

// TransferReceipt is returned to callers after a successful transfer
type TransferReceipt struct {
	DonorTransactionID     string            `json:"donor_transaction_id"`
	RecipientTransactionID string            `json:"recipient_transaction_id"`
	GiftCreditID           string            `json:"gift_credit_id"`
	Amount                 int64             `json:"amount"`
	FundingCredits         []CreditSelection `json:"funding_credits"`
}
