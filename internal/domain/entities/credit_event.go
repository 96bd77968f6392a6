package entities

import (
	"time"
)

// CreditEventType classifies ledger events published to the platform
type CreditEventType string

const (
	CreditEventSpend    CreditEventType = "credit.spent"
	CreditEventGrant    CreditEventType = "credit.granted"
	CreditEventTransfer CreditEventType = "credit.transferred"
	CreditEventExpiry   CreditEventType = "credit.expired"
	CreditEventClaim    CreditEventType = "claim.updated"
)

// CreditEvent is emitted after every committed ledger mutation so the
// surrounding platform (notifications, analytics, cache invalidation) can
// react without polling.
type CreditEvent struct {
	ID            string          `json:"id"`
	Type          CreditEventType `json:"type"`
	WalletID      string          `json:"wallet_id"`
	UserID        string          `json:"user_id"`
	Amount        int64           `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
