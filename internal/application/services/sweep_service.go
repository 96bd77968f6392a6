package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SweepService bundles the periodic maintenance passes: expiring stale
// credit and resubmitting claims the insurer never acknowledged. The sweep
// worker runs it on a cron schedule; each pass is idempotent.
type SweepService struct {
	wallets *WalletService
	claims  *ClaimService
}

// NewSweepService creates a new sweep service
func NewSweepService(wallets *WalletService, claims *ClaimService) *SweepService {
	return &SweepService{
		wallets: wallets,
		claims:  claims,
	}
}

// Run executes one maintenance pass as of now
func (s *SweepService) Run(ctx context.Context, now time.Time) {
	swept, err := s.wallets.ExpireSweep(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep pass failed")
	} else if swept > 0 {
		log.Info().Int("wallets", swept).Msg("expiry sweep completed")
	}

	if s.claims != nil {
		resubmitted, err := s.claims.ResubmitPending(ctx, 100)
		if err != nil {
			log.Error().Err(err).Msg("claim resubmission pass failed")
		} else if resubmitted > 0 {
			log.Info().Int("claims", resubmitted).Msg("resubmitted pending claims")
		}
	}
}
