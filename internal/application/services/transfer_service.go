package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
	"github.com/iamgolden55/basebackend-sub001/pkg/retry"
)

// TransferService executes peer-to-peer credit gifting. Donor debit and
// recipient grant commit as a single atomic operation spanning both
// wallets; the ledger store locks them in ascending wallet-id order so
// opposing transfers cannot deadlock.
type TransferService struct {
	ledger   repositories.LedgerRepository
	wallets  *WalletService
	coverage *CoverageService
	eventBus providers.EventBus
	retryCfg retry.Config
}

// NewTransferService creates a new transfer service
func NewTransferService(
	ledger repositories.LedgerRepository,
	wallets *WalletService,
	coverage *CoverageService,
	eventBus providers.EventBus,
	maxCommitRetries int,
) *TransferService {
	return &TransferService{
		ledger:   ledger,
		wallets:  wallets,
		coverage: coverage,
		eventBus: eventBus,
		retryCfg: retry.CommitConfig(maxCommitRetries),
	}
}

// Transfer gifts amount from donor to recipient. Funding credits are chosen
// by the prioritizer restricted to transferable credits; the recipient
// receives one gifted credit whose restrictions are the donor-requested
// policy tightened by every funding credit's own policy, and whose expiry
// is no later than the earliest funding credit's expiry.
func (s *TransferService) Transfer(ctx context.Context, donorID, recipientID string, amount int64, requested entities.Restrictions) (*entities.TransferReceipt, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("transfer amount must be positive")
	}
	if donorID == "" || recipientID == "" {
		return nil, apperrors.NewValidationError("donor and recipient are required").WithCode(apperrors.CodeInvalidRecipient)
	}
	if donorID == recipientID {
		return nil, apperrors.NewValidationError("cannot transfer credit to yourself").WithCode(apperrors.CodeInvalidRecipient)
	}

	var receipt *entities.TransferReceipt
	err := retry.DoIf(ctx, s.retryCfg, apperrors.IsRetryable, func() error {
		r, err := s.transferOnce(ctx, donorID, recipientID, amount, requested)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *TransferService) transferOnce(ctx context.Context, donorID, recipientID string, amount int64, requested entities.Restrictions) (*entities.TransferReceipt, error) {
	donor, err := s.ledger.GetWalletByUser(ctx, donorID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewInsufficientError(apperrors.CodeInsufficientTransferableCredit, "donor has no credit wallet")
		}
		return nil, err
	}

	recipient, err := s.wallets.ensureWallet(ctx, recipientID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, apperrors.NewValidationError("recipient is not valid").WithCode(apperrors.CodeInvalidRecipient)
		}
		return nil, err
	}

	credits, err := s.ledger.ListActiveCredits(ctx, donor.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	selections, err := SelectCredits(credits, amount, entities.ServiceContext{}, now, SelectionOptions{
		TransferableOnly: true,
	})
	if err != nil {
		return nil, err
	}

	// Transfers funded by insurance-backed credit carry the same
	// verification freshness gate as spends.
	if SumByType(selections, entities.CreditTypeInsurance) > 0 {
		profile, err := s.coverage.ActiveProfileForUser(ctx, donorID)
		if err != nil {
			return nil, err
		}
		if err := s.coverage.RequireFresh(profile, now); err != nil {
			return nil, err
		}
	}

	creditByID := make(map[string]*entities.Credit, len(credits))
	for _, c := range credits {
		creditByID[c.ID] = c
	}

	giftRestrictions := requested
	var giftExpiry *time.Time
	for _, sel := range selections {
		source := creditByID[sel.CreditID]
		giftRestrictions = entities.MergeRestrictions(source.Restrictions, giftRestrictions)
		if source.ExpiresAt != nil && (giftExpiry == nil || source.ExpiresAt.Before(*giftExpiry)) {
			t := *source.ExpiresAt
			giftExpiry = &t
		}
	}

	donorTxnID := uuid.New().String()
	gift := &entities.Credit{
		ID:              uuid.New().String(),
		WalletID:        recipient.ID,
		Type:            entities.CreditTypeGifted,
		Amount:          amount,
		RemainingAmount: amount,
		ExpiresAt:       giftExpiry,
		SourceRef:       donorTxnID,
		Restrictions:    giftRestrictions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	donorTxn := &entities.CreditTransaction{
		ID:                 donorTxnID,
		WalletID:           donor.ID,
		Type:               entities.TransactionTypeGiftOut,
		Amount:             amount,
		AffectedCreditIDs:  creditIDs(selections),
		CounterpartyUserID: &recipientID,
		CreatedAt:          now,
	}
	recipientTxn := &entities.CreditTransaction{
		ID:                 uuid.New().String(),
		WalletID:           recipient.ID,
		Type:               entities.TransactionTypeGiftIn,
		Amount:             amount,
		AffectedCreditIDs:  []string{gift.ID},
		CounterpartyUserID: &donorID,
		CreatedAt:          now,
	}

	_, err = s.ledger.ApplyAtomic(ctx,
		repositories.WalletMutation{
			WalletID:        donor.ID,
			ExpectedVersion: donor.Version,
			Consumptions:    consumptions(selections),
			Transaction:     donorTxn,
		},
		repositories.WalletMutation{
			WalletID:        recipient.ID,
			ExpectedVersion: recipient.Version,
			NewCredits:      []*entities.Credit{gift},
			Transaction:     recipientTxn,
		},
	)
	if err != nil {
		return nil, err
	}

	s.publishTransfer(ctx, donor, recipient, amount, donorTxn.ID)

	return &entities.TransferReceipt{
		DonorTransactionID:     donorTxn.ID,
		RecipientTransactionID: recipientTxn.ID,
		GiftCreditID:           gift.ID,
		Amount:                 amount,
		FundingCredits:         selections,
	}, nil
}

func (s *TransferService) publishTransfer(ctx context.Context, donor, recipient *entities.CreditWallet, amount int64, txnID string) {
	if s.eventBus == nil {
		return
	}
	for _, wallet := range []*entities.CreditWallet{donor, recipient} {
		event := &entities.CreditEvent{
			ID:            uuid.New().String(),
			Type:          entities.CreditEventTransfer,
			WalletID:      wallet.ID,
			UserID:        wallet.UserID,
			Amount:        amount,
			TransactionID: txnID,
			Timestamp:     time.Now(),
		}
		_ = s.eventBus.Publish(ctx, providers.EventChannelCreditActivity, event)
	}
}
