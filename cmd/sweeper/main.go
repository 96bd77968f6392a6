package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/iamgolden55/basebackend-sub001/internal/adapters/database"
	"github.com/iamgolden55/basebackend-sub001/internal/adapters/events"
	"github.com/iamgolden55/basebackend-sub001/internal/adapters/providers/insurer"
	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/postgres"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/redis"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/observability"
	"github.com/iamgolden55/basebackend-sub001/pkg/config"
)

// The sweeper runs the periodic ledger maintenance pass: zeroing expired
// credits and resubmitting claims the insurer never acknowledged. It runs
// as its own process so sweep load never competes with API traffic.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger("credit-ledger-sweeper", os.Getenv("APP_ENV"))

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
	}

	ledgerAdapter := database.NewLedgerAdapter(pgClient)
	insuranceAdapter := database.NewInsuranceAdapter(pgClient)
	claimAdapter := database.NewClaimAdapter(pgClient)

	var insurerProvider providers.InsurerProvider
	if cfg.Insurer.BaseURL == "" {
		insurerProvider = insurer.NewMockProvider()
	} else {
		insurerProvider = insurer.NewHTTPClient(&cfg.Insurer)
	}

	coverageService := services.NewCoverageService(insuranceAdapter, insurerProvider, cfg.Ledger.VerificationFreshness)
	claimService := services.NewClaimService(claimAdapter, insurerProvider)
	walletService := services.NewWalletService(
		ledgerAdapter,
		coverageService,
		claimService,
		eventBus,
		cfg.Ledger.MaxCommitRetries,
	)
	sweepService := services.NewSweepService(walletService, claimService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Ledger.SweepSchedule, func() {
		sweepService.Run(ctx, time.Now())
	})
	if err != nil {
		log.Fatalf("Invalid sweep schedule %q: %v", cfg.Ledger.SweepSchedule, err)
	}

	// Run once at startup so a long downtime does not wait for the next tick
	sweepService.Run(ctx, time.Now())

	scheduler.Start()
	log.Printf("Sweeper started with schedule %q", cfg.Ledger.SweepSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Sweeper shutting down...")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}
	log.Println("Sweeper stopped")
}
