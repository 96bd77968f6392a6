package entities

import (
	"time"
)

// CreditType identifies the source category of a credit unit
type CreditType string

const (
	CreditTypeInsurance CreditType = "insurance"
	CreditTypePurchased CreditType = "purchased"
	CreditTypeGifted    CreditType = "gifted"
	CreditTypeCorporate CreditType = "corporate"
)

// CreditTypes lists all credit categories in their tie-break consumption
// order: gifted before insurance-backed before purchased before corporate.
var CreditTypes = []CreditType{
	CreditTypeGifted,
	CreditTypeInsurance,
	CreditTypePurchased,
	CreditTypeCorporate,
}

// Valid reports whether t is a known credit type
func (t CreditType) Valid() bool {
	switch t {
	case CreditTypeInsurance, CreditTypePurchased, CreditTypeGifted, CreditTypeCorporate:
		return true
	}
	return false
}

// ConsumptionRank returns the tie-break position of the type. Lower ranks
// are consumed first when expiry does not decide the order.
func (t CreditType) ConsumptionRank() int {
	for i, ct := range CreditTypes {
		if ct == t {
			return i
		}
	}
	return len(CreditTypes)
}

// CreditWallet aggregates a user's credits as per-category sub-balances.
// The total is always derived from the sub-balances; the sub-balances are
// only ever mutated inside a ledger transaction, so they cannot drift from
// the credits they summarize.
type CreditWallet struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	InsuranceBacked int64     `json:"insurance_backed" db:"insurance_backed"`
	Purchased       int64     `json:"purchased" db:"purchased"`
	Gifted          int64     `json:"gifted" db:"gifted"`
	Corporate       int64     `json:"corporate" db:"corporate"`
	Version         int64     `json:"-" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TotalAvailable returns the sum of all sub-balances
func (w *CreditWallet) TotalAvailable() int64 {
	return w.InsuranceBacked + w.Purchased + w.Gifted + w.Corporate
}

// SubBalance returns the sub-balance for a credit type
func (w *CreditWallet) SubBalance(t CreditType) int64 {
	switch t {
	case CreditTypeInsurance:
		return w.InsuranceBacked
	case CreditTypePurchased:
		return w.Purchased
	case CreditTypeGifted:
		return w.Gifted
	case CreditTypeCorporate:
		return w.Corporate
	}
	return 0
}

// AddSubBalance applies a delta to the sub-balance for a credit type
func (w *CreditWallet) AddSubBalance(t CreditType, delta int64) {
	switch t {
	case CreditTypeInsurance:
		w.InsuranceBacked += delta
	case CreditTypePurchased:
		w.Purchased += delta
	case CreditTypeGifted:
		w.Gifted += delta
	case CreditTypeCorporate:
		w.Corporate += delta
	}
}

// Clone returns a deep copy of the wallet
func (w *CreditWallet) Clone() *CreditWallet {
	cp := *w
	return &cp
}
