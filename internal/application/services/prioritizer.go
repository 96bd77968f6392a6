package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// SelectionOptions narrows which credits the prioritizer may pick from
type SelectionOptions struct {
	// TransferableOnly restricts selection to credits whose own policy
	// marks them transferable (gift funding)
	TransferableOnly bool

	// ExcludeTypes removes whole categories from selection (coverage
	// fallback after an annual-limit refusal)
	ExcludeTypes []entities.CreditType
}

func (o SelectionOptions) excluded(t entities.CreditType) bool {
	for _, et := range o.ExcludeTypes {
		if et == t {
			return true
		}
	}
	return false
}

// SelectCredits picks which credit units fund a spend of amountNeeded in
// the given service context. The order is fixed and total: soonest expiry
// first among eligible credits; on absent or tied expiry, gifted before
// insurance-backed before purchased before corporate; within a type, oldest
// credit first. Credits without expiry sort after every credit with one.
//
// The function is pure: given the same credits, amount, context and instant
// it returns the same ordered selection. It never returns a partial spend.
func SelectCredits(credits []*entities.Credit, amountNeeded int64, svc entities.ServiceContext, now time.Time, opts SelectionOptions) ([]entities.CreditSelection, error) {
	if amountNeeded <= 0 {
		return nil, apperrors.NewValidationError("spend amount must be positive")
	}

	eligible := make([]*entities.Credit, 0, len(credits))
	skippedNonTransferable := 0
	for _, c := range credits {
		if opts.excluded(c.Type) {
			continue
		}
		if !c.EligibleFor(svc, now) {
			continue
		}
		if opts.TransferableOnly && !c.Restrictions.Transferable {
			skippedNonTransferable++
			continue
		}
		eligible = append(eligible, c)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return creditLess(eligible[i], eligible[j])
	})

	var selections []entities.CreditSelection
	remaining := amountNeeded
	for _, c := range eligible {
		if remaining == 0 {
			break
		}
		take := c.RemainingAmount
		if take > remaining {
			take = remaining
		}
		selections = append(selections, entities.CreditSelection{
			CreditID: c.ID,
			Type:     c.Type,
			Amount:   take,
		})
		remaining -= take
	}

	if remaining > 0 {
		code := apperrors.CodeInsufficientEligibleCredit
		if opts.TransferableOnly {
			// No transferable credit at all reads differently from not
			// enough of it.
			if len(eligible) == 0 && skippedNonTransferable > 0 {
				code = apperrors.CodeNonTransferable
			} else {
				code = apperrors.CodeInsufficientTransferableCredit
			}
		}
		return nil, apperrors.NewInsufficientError(code, fmt.Sprintf(
			"eligible credit covers %d of requested %d", amountNeeded-remaining, amountNeeded,
		))
	}

	return selections, nil
}

// creditLess orders credits for consumption: expiry, then category rank,
// then FIFO by creation, then ID as a final deterministic tiebreak.
func creditLess(a, b *entities.Credit) bool {
	switch {
	case a.ExpiresAt != nil && b.ExpiresAt == nil:
		return true
	case a.ExpiresAt == nil && b.ExpiresAt != nil:
		return false
	case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
		return a.ExpiresAt.Before(*b.ExpiresAt)
	}

	if ra, rb := a.Type.ConsumptionRank(), b.Type.ConsumptionRank(); ra != rb {
		return ra < rb
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return a.ID < b.ID
}

// SumByType totals selection amounts for one credit type
func SumByType(selections []entities.CreditSelection, t entities.CreditType) int64 {
	var total int64
	for _, s := range selections {
		if s.Type == t {
			total += s.Amount
		}
	}
	return total
}
