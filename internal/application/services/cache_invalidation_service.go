package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
)

// BalanceCacheKey is the cache key for a user's balance snapshot
func BalanceCacheKey(userID string) string {
	return fmt.Sprintf("balance:%s", userID)
}

// CacheInvalidationService drops cached balance snapshots when credit
// events report a committed ledger mutation, keeping display reads from
// serving balances older than one event hop.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for credit events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCreditActivity)
	if err != nil {
		return fmt.Errorf("failed to subscribe to credit activity: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(events <-chan *entities.CreditEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.UserID == "" {
				continue
			}
			key := BalanceCacheKey(event.UserID)
			if err := s.cache.Delete(s.ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to invalidate balance cache")
			}
		}
	}
}
