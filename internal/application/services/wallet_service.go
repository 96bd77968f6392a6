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
	"github.com/iamgolden55/basebackend-sub001/pkg/retry"
)

// WalletService is the wallet engine: atomic spend, grant and expiry sweep
// built on the ledger store. Commit conflicts are retried with bounded
// backoff before being surfaced.
type WalletService struct {
	ledger   repositories.LedgerRepository
	coverage *CoverageService
	claims   *ClaimService
	eventBus providers.EventBus
	retryCfg retry.Config
}

// NewWalletService creates a new wallet service. Coverage is required;
// claims and the event bus are optional collaborators.
func NewWalletService(
	ledger repositories.LedgerRepository,
	coverage *CoverageService,
	claims *ClaimService,
	eventBus providers.EventBus,
	maxCommitRetries int,
) *WalletService {
	return &WalletService{
		ledger:   ledger,
		coverage: coverage,
		claims:   claims,
		eventBus: eventBus,
		retryCfg: retry.CommitConfig(maxCommitRetries),
	}
}

// Spend debits a user's wallet for a service. Credit units are selected by
// the prioritizer; the debit, the coverage reservation and the transaction
// record commit as one atomic unit. Reads that authorize the spend are
// re-validated inside that same transaction, so a stale read can only
// produce a retryable conflict, never a double spend.
func (s *WalletService) Spend(ctx context.Context, userID string, amount int64, svc entities.ServiceContext) (*entities.SpendReceipt, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("spend amount must be positive")
	}

	var receipt *entities.SpendReceipt
	err := retry.DoIf(ctx, s.retryCfg, apperrors.IsRetryable, func() error {
		r, err := s.spendOnce(ctx, userID, amount, svc)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.CreditEventSpend, receipt.Wallet, amount, receipt.TransactionID)
	return receipt, nil
}

func (s *WalletService) spendOnce(ctx context.Context, userID string, amount int64, svc entities.ServiceContext) (*entities.SpendReceipt, error) {
	wallet, err := s.ledger.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	credits, err := s.ledger.ListActiveCredits(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	selections, err := SelectCredits(credits, amount, svc, now, SelectionOptions{})
	if err != nil {
		return nil, err
	}

	var profile *entities.InsuranceProfile
	insurancePortion := SumByType(selections, entities.CreditTypeInsurance)
	if insurancePortion > 0 {
		profile, err = s.coverage.ActiveProfileForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.coverage.RequireFresh(profile, now); err != nil {
			return nil, err
		}

		if profile.Headroom() < insurancePortion {
			if onlyInsurance(svc.SourceTypes) {
				return nil, annualLimitError(insurancePortion, profile.Headroom())
			}
			// Fall back to non-insurance credit when sourcing is open.
			selections, err = SelectCredits(credits, amount, svc, now, SelectionOptions{
				ExcludeTypes: []entities.CreditType{entities.CreditTypeInsurance},
			})
			if err != nil {
				if apperrors.IsType(err, apperrors.ErrorTypeInsufficient) {
					return nil, annualLimitError(insurancePortion, profile.Headroom())
				}
				return nil, err
			}
			insurancePortion = 0
			profile = nil
		}
	}

	txn := &entities.CreditTransaction{
		ID:                uuid.New().String(),
		WalletID:          wallet.ID,
		Type:              entities.TransactionTypeSpend,
		Amount:            amount,
		AffectedCreditIDs: creditIDs(selections),
		CreatedAt:         now,
	}

	mutation := repositories.WalletMutation{
		WalletID:        wallet.ID,
		ExpectedVersion: wallet.Version,
		Consumptions:    consumptions(selections),
		Transaction:     txn,
	}
	if insurancePortion > 0 {
		mutation.CoverageReservation = &repositories.CoverageReservation{
			ProfileID: profile.ID,
			Amount:    insurancePortion,
		}
	}

	snapshots, err := s.ledger.ApplyAtomic(ctx, mutation)
	if err != nil {
		return nil, err
	}

	receipt := &entities.SpendReceipt{
		TransactionID:    txn.ID,
		ConsumedCredits:  selections,
		RemainingBalance: snapshots[0].TotalAvailable(),
		Wallet:           snapshots[0],
	}

	if insurancePortion > 0 && s.claims != nil && svc.AppointmentID != "" {
		claim, err := s.claims.Submit(ctx, profile.ID, svc.AppointmentID, txn.ID, insurancePortion)
		if err != nil {
			// The spend has committed; a claim failure is logged and
			// handled out-of-band, never rolled into the receipt error.
			log.Error().Err(err).Str("user_id", userID).Msg("failed to open claim for insurance-backed spend")
		} else {
			receipt.ClaimID = claim.ID
		}
	}

	return receipt, nil
}

func onlyInsurance(types []entities.CreditType) bool {
	for _, t := range types {
		if t != entities.CreditTypeInsurance {
			return false
		}
	}
	return len(types) > 0
}

func annualLimitError(requested, headroom int64) error {
	return apperrors.NewInsufficientError(apperrors.CodeAnnualLimitExceeded, fmt.Sprintf(
		"insurance coverage of %d requested but only %d remains under the annual limit", requested, headroom,
	))
}

// Grant creates a new credit unit, creating the wallet lazily on first
// grant
func (s *WalletService) Grant(ctx context.Context, spec entities.CreditSpec) (*entities.Credit, error) {
	if spec.Amount <= 0 {
		return nil, apperrors.NewValidationError("grant amount must be positive")
	}
	if !spec.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown credit type")
	}
	now := time.Now()
	if spec.ExpiresAt != nil && !spec.ExpiresAt.After(now) {
		return nil, apperrors.NewValidationError("credit expiry must be in the future")
	}

	var credit *entities.Credit
	err := retry.DoIf(ctx, s.retryCfg, apperrors.IsRetryable, func() error {
		c, err := s.grantOnce(ctx, spec)
		if err != nil {
			return err
		}
		credit = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

func (s *WalletService) grantOnce(ctx context.Context, spec entities.CreditSpec) (*entities.Credit, error) {
	wallet, err := s.ensureWallet(ctx, spec.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	credit := &entities.Credit{
		ID:              uuid.New().String(),
		WalletID:        wallet.ID,
		Type:            spec.Type,
		Amount:          spec.Amount,
		RemainingAmount: spec.Amount,
		ExpiresAt:       spec.ExpiresAt,
		SourceRef:       spec.SourceRef,
		Restrictions:    spec.Restrictions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	txnType := entities.TransactionTypeGrant
	if spec.Type == entities.CreditTypePurchased {
		txnType = entities.TransactionTypePurchase
	}
	txn := &entities.CreditTransaction{
		ID:                uuid.New().String(),
		WalletID:          wallet.ID,
		Type:              txnType,
		Amount:            spec.Amount,
		AffectedCreditIDs: []string{credit.ID},
		CreatedAt:         now,
	}

	snapshots, err := s.ledger.ApplyAtomic(ctx, repositories.WalletMutation{
		WalletID:        wallet.ID,
		ExpectedVersion: wallet.Version,
		NewCredits:      []*entities.Credit{credit},
		Transaction:     txn,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entities.CreditEventGrant, snapshots[0], spec.Amount, txn.ID)
	return credit, nil
}

// ensureWallet fetches or lazily creates a user's wallet
func (s *WalletService) ensureWallet(ctx context.Context, userID string) (*entities.CreditWallet, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user is required")
	}

	wallet, err := s.ledger.GetWalletByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := time.Now()
	wallet = &entities.CreditWallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.CreateWallet(ctx, wallet); err != nil {
		// Lost a create race; the other writer's wallet wins.
		if existing, getErr := s.ledger.GetWalletByUser(ctx, userID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return wallet, nil
}

// Balance returns a wallet snapshot for display reads
func (s *WalletService) Balance(ctx context.Context, userID string) (*entities.CreditWallet, error) {
	return s.ledger.GetWalletByUser(ctx, userID)
}

// History returns a wallet's transactions, newest first
func (s *WalletService) History(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.CreditTransaction, error) {
	wallet, err := s.ledger.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListTransactions(ctx, wallet.ID, filter)
}

// ExpireSweep zeroes credits that expired at or before now and appends one
// expiry transaction per affected wallet. Re-running with the same instant
// is a no-op once swept; wallets are swept independently so a conflict on
// one does not stall the rest.
func (s *WalletService) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	walletIDs, err := s.ledger.ListWalletsWithExpiredCredits(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, walletID := range walletIDs {
		err := retry.DoIf(ctx, s.retryCfg, apperrors.IsRetryable, func() error {
			return s.sweepWallet(ctx, walletID, now)
		})
		if err != nil {
			log.Error().Err(err).Str("wallet_id", walletID).Msg("expiry sweep failed for wallet")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *WalletService) sweepWallet(ctx context.Context, walletID string, now time.Time) error {
	wallet, err := s.ledger.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}

	credits, err := s.ledger.ListActiveCredits(ctx, walletID)
	if err != nil {
		return err
	}

	var cons []repositories.CreditConsumption
	var affected []string
	var total int64
	for _, c := range credits {
		if c.Expired(now) && c.RemainingAmount > 0 {
			cons = append(cons, repositories.CreditConsumption{
				CreditID:     c.ID,
				Type:         c.Type,
				Amount:       c.RemainingAmount,
				AllowExpired: true,
			})
			affected = append(affected, c.ID)
			total += c.RemainingAmount
		}
	}
	if len(cons) == 0 {
		return nil
	}

	txn := &entities.CreditTransaction{
		ID:                uuid.New().String(),
		WalletID:          walletID,
		Type:              entities.TransactionTypeExpiry,
		Amount:            total,
		AffectedCreditIDs: affected,
		CreatedAt:         now,
	}

	snapshots, err := s.ledger.ApplyAtomic(ctx, repositories.WalletMutation{
		WalletID:        walletID,
		ExpectedVersion: wallet.Version,
		Consumptions:    cons,
		Transaction:     txn,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, entities.CreditEventExpiry, snapshots[0], total, txn.ID)
	return nil
}

func (s *WalletService) publish(ctx context.Context, eventType entities.CreditEventType, wallet *entities.CreditWallet, amount int64, txnID string) {
	if s.eventBus == nil {
		return
	}
	event := &entities.CreditEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		Amount:        amount,
		TransactionID: txnID,
		Timestamp:     time.Now(),
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelCreditActivity, event); err != nil {
		log.Warn().Err(err).Str("wallet_id", wallet.ID).Msg("failed to publish credit event")
	}
}

func creditIDs(selections []entities.CreditSelection) []string {
	ids := make([]string, 0, len(selections))
	for _, sel := range selections {
		ids = append(ids, sel.CreditID)
	}
	return ids
}

func consumptions(selections []entities.CreditSelection) []repositories.CreditConsumption {
	out := make([]repositories.CreditConsumption, 0, len(selections))
	for _, sel := range selections {
		out = append(out, repositories.CreditConsumption{
			CreditID: sel.CreditID,
			Type:     sel.Type,
			Amount:   sel.Amount,
		})
	}
	return out
}
