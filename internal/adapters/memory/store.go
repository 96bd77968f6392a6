package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// Store is an in-memory implementation of the ledger, insurance and claim
// repositories. It is used by unit tests and local development; the commit
// path mirrors the database adapter's semantics, including optimistic
// version checks and the in-transaction coverage reservation.
type Store struct {
	mu sync.Mutex

	wallets      map[string]*entities.CreditWallet
	walletByUser map[string]string
	credits      map[string]*entities.Credit
	transactions []*entities.CreditTransaction

	profiles        map[string]*entities.InsuranceProfile
	profileByPolicy map[string]string

	claims map[string]*entities.InsuranceClaim
}

// New creates an empty store
func New() *Store {
	return &Store{
		wallets:         make(map[string]*entities.CreditWallet),
		walletByUser:    make(map[string]string),
		credits:         make(map[string]*entities.Credit),
		profiles:        make(map[string]*entities.InsuranceProfile),
		profileByPolicy: make(map[string]string),
		claims:          make(map[string]*entities.InsuranceClaim),
	}
}

var (
	_ repositories.LedgerRepository    = (*Store)(nil)
	_ repositories.InsuranceRepository = (*Store)(nil)
	_ repositories.ClaimRepository     = (*claimStore)(nil)
)

// Claims returns a ClaimRepository view over the store. The claim methods
// carry distinct names on Store because their signatures would otherwise
// collide with the insurance profile methods.
func (s *Store) Claims() repositories.ClaimRepository {
	return &claimStore{s: s}
}

type claimStore struct {
	s *Store
}

func (c *claimStore) Create(ctx context.Context, claim *entities.InsuranceClaim) error {
	return c.s.CreateClaim(ctx, claim)
}

func (c *claimStore) GetByID(ctx context.Context, id string) (*entities.InsuranceClaim, error) {
	return c.s.GetClaim(ctx, id)
}

func (c *claimStore) Update(ctx context.Context, claim *entities.InsuranceClaim) error {
	return c.s.UpdateClaim(ctx, claim)
}

func (c *claimStore) ListByStatus(ctx context.Context, status entities.ClaimStatus, limit int) ([]*entities.InsuranceClaim, error) {
	return c.s.ListClaimsByStatus(ctx, status, limit)
}

// CreateWallet creates a wallet
func (s *Store) CreateWallet(_ context.Context, wallet *entities.CreditWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.walletByUser[wallet.UserID]; exists {
		return apperrors.NewValidationError("wallet already exists for user")
	}
	if wallet.Version == 0 {
		wallet.Version = 1
	}
	s.wallets[wallet.ID] = wallet.Clone()
	s.walletByUser[wallet.UserID] = wallet.ID
	return nil
}

// GetWallet retrieves a wallet by ID
func (s *Store) GetWallet(_ context.Context, walletID string) (*entities.CreditWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletLocked(walletID)
}

// GetWalletByUser retrieves a user's wallet
func (s *Store) GetWalletByUser(_ context.Context, userID string) (*entities.CreditWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walletID, ok := s.walletByUser[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("wallet not found for user")
	}
	return s.walletLocked(walletID)
}

func (s *Store) walletLocked(walletID string) (*entities.CreditWallet, error) {
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, apperrors.NewNotFoundError("wallet not found")
	}
	return w.Clone(), nil
}

// ListActiveCredits returns credits with remaining value
func (s *Store) ListActiveCredits(_ context.Context, walletID string) ([]*entities.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entities.Credit
	for _, c := range s.credits {
		if c.WalletID == walletID && c.RemainingAmount > 0 {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetCredit retrieves a credit by ID
func (s *Store) GetCredit(_ context.Context, creditID string) (*entities.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credits[creditID]
	if !ok {
		return nil, apperrors.NewNotFoundError("credit not found")
	}
	return c.Clone(), nil
}

// ApplyAtomic commits the mutations all-or-nothing under a single lock.
// Validation happens against staged copies; live state is only touched
// once every mutation has passed.
func (s *Store) ApplyAtomic(_ context.Context, mutations ...repositories.WalletMutation) ([]*entities.CreditWallet, error) {
	if len(mutations) == 0 {
		return nil, apperrors.NewValidationError("no mutations to apply")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	stagedWallets := make(map[string]*entities.CreditWallet, len(mutations))
	stagedCredits := make(map[string]*entities.Credit)
	stagedProfiles := make(map[string]*entities.InsuranceProfile)

	for _, m := range mutations {
		live, ok := s.wallets[m.WalletID]
		if !ok {
			return nil, apperrors.NewNotFoundError("wallet not found")
		}
		if m.ExpectedVersion > 0 && live.Version != m.ExpectedVersion {
			return nil, apperrors.NewConflictError("wallet was modified concurrently")
		}
		wallet := live.Clone()

		for _, cons := range m.Consumptions {
			credit, ok := s.credits[cons.CreditID]
			if !ok {
				return nil, apperrors.NewNotFoundError("credit not found")
			}
			if staged, ok := stagedCredits[cons.CreditID]; ok {
				credit = staged
			} else {
				credit = credit.Clone()
			}
			if !cons.AllowExpired && credit.Expired(now) {
				return nil, apperrors.NewStaleError(apperrors.CodeCreditExpired, "credit expired before commit")
			}
			if credit.RemainingAmount < cons.Amount {
				return nil, apperrors.NewInsufficientError(apperrors.CodeInsufficientFunds, "credit has insufficient remaining value")
			}
			credit.RemainingAmount -= cons.Amount
			credit.Uses++
			credit.UpdatedAt = now
			stagedCredits[cons.CreditID] = credit

			wallet.AddSubBalance(cons.Type, -cons.Amount)
			if wallet.SubBalance(cons.Type) < 0 {
				return nil, apperrors.NewInsufficientError(apperrors.CodeInsufficientFunds, "wallet sub-balance cannot go negative")
			}
		}

		for _, nc := range m.NewCredits {
			if nc.WalletID != m.WalletID {
				return nil, apperrors.NewValidationError("new credit wallet mismatch")
			}
			if _, exists := s.credits[nc.ID]; exists {
				return nil, apperrors.NewValidationError("credit already exists")
			}
			stagedCredits[nc.ID] = nc.Clone()
			wallet.AddSubBalance(nc.Type, nc.RemainingAmount)
		}

		if m.CoverageReservation != nil {
			profile, ok := s.profiles[m.CoverageReservation.ProfileID]
			if !ok {
				return nil, apperrors.NewNotFoundError("insurance profile not found")
			}
			if staged, ok := stagedProfiles[profile.ID]; ok {
				profile = staged
			} else {
				profile = profile.Clone()
			}
			if !profile.Active {
				return nil, apperrors.NewValidationError("insurance profile is inactive")
			}
			if profile.UsedAmount+m.CoverageReservation.Amount > profile.AnnualLimit {
				return nil, apperrors.NewInsufficientError(apperrors.CodeAnnualLimitExceeded, fmt.Sprintf(
					"reservation of %d exceeds remaining annual coverage of %d",
					m.CoverageReservation.Amount, profile.Headroom(),
				))
			}
			profile.UsedAmount += m.CoverageReservation.Amount
			profile.UpdatedAt = now
			stagedProfiles[profile.ID] = profile
		}

		if m.Transaction == nil {
			return nil, apperrors.NewValidationError("mutation requires a transaction record")
		}

		wallet.Version++
		wallet.UpdatedAt = now
		stagedWallets[m.WalletID] = wallet
	}

	// All mutations validated; make them live.
	for id, c := range stagedCredits {
		s.credits[id] = c
	}
	for id, p := range stagedProfiles {
		s.profiles[id] = p
	}
	snapshots := make([]*entities.CreditWallet, 0, len(mutations))
	for _, m := range mutations {
		s.wallets[m.WalletID] = stagedWallets[m.WalletID]

		txn := *m.Transaction
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = now
		}
		s.transactions = append(s.transactions, &txn)

		snapshots = append(snapshots, stagedWallets[m.WalletID].Clone())
	}

	return snapshots, nil
}

// ListTransactions returns a wallet's transactions, newest first
func (s *Store) ListTransactions(_ context.Context, walletID string, filter repositories.TransactionFilter) ([]*entities.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entities.CreditTransaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].WalletID == walletID {
			txn := *s.transactions[i]
			out = append(out, &txn)
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListWalletsWithExpiredCredits returns wallets holding expired value
func (s *Store) ListWalletsWithExpiredCredits(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.credits {
		if c.RemainingAmount > 0 && c.Expired(now) {
			if _, ok := seen[c.WalletID]; !ok {
				seen[c.WalletID] = struct{}{}
				out = append(out, c.WalletID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Create creates an insurance profile
func (s *Store) Create(_ context.Context, profile *entities.InsuranceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profileByPolicy[profile.PolicyNumber]; exists {
		return apperrors.NewValidationError("policy number already registered")
	}
	s.profiles[profile.ID] = profile.Clone()
	s.profileByPolicy[profile.PolicyNumber] = profile.ID
	return nil
}

// GetByID retrieves an insurance profile by ID
func (s *Store) GetByID(_ context.Context, id string) (*entities.InsuranceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("insurance profile not found")
	}
	return p.Clone(), nil
}

// GetByPolicyNumber retrieves an insurance profile by policy number
func (s *Store) GetByPolicyNumber(_ context.Context, policyNumber string) (*entities.InsuranceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.profileByPolicy[policyNumber]
	if !ok {
		return nil, apperrors.NewNotFoundError("insurance profile not found for policy")
	}
	return s.profiles[id].Clone(), nil
}

// GetActiveByUser retrieves a user's active insurance profile
func (s *Store) GetActiveByUser(_ context.Context, userID string) (*entities.InsuranceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*entities.InsuranceProfile
	for _, p := range s.profiles {
		if p.UserID == userID && p.Active {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNotFoundError("no active insurance profile for user")
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0].Clone(), nil
}

// MarkVerified refreshes verification metadata on a profile
func (s *Store) MarkVerified(_ context.Context, id string, verifiedAt time.Time, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return apperrors.NewNotFoundError("insurance profile not found")
	}
	p.LastVerifiedAt = verifiedAt
	p.Active = active
	p.UpdatedAt = time.Now()
	return nil
}

// CreateClaim creates a claim
func (s *Store) CreateClaim(_ context.Context, claim *entities.InsuranceClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.ID]; exists {
		return apperrors.NewValidationError("claim already exists")
	}
	cp := *claim
	s.claims[claim.ID] = &cp
	return nil
}

// GetClaim retrieves a claim by ID
func (s *Store) GetClaim(_ context.Context, id string) (*entities.InsuranceClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("claim not found")
	}
	cp := *c
	return &cp, nil
}

// UpdateClaim persists a claim's current state
func (s *Store) UpdateClaim(_ context.Context, claim *entities.InsuranceClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[claim.ID]; !ok {
		return apperrors.NewNotFoundError("claim not found")
	}
	cp := *claim
	s.claims[claim.ID] = &cp
	return nil
}

// ListClaimsByStatus retrieves claims in a given status, oldest first
func (s *Store) ListClaimsByStatus(_ context.Context, status entities.ClaimStatus, limit int) ([]*entities.InsuranceClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entities.InsuranceClaim
	for _, c := range s.claims {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
