package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iamgolden55/basebackend-sub001/internal/adapters/cache"
	"github.com/iamgolden55/basebackend-sub001/internal/adapters/database"
	"github.com/iamgolden55/basebackend-sub001/internal/adapters/events"
	"github.com/iamgolden55/basebackend-sub001/internal/adapters/providers/insurer"
	"github.com/iamgolden55/basebackend-sub001/internal/api/handlers"
	"github.com/iamgolden55/basebackend-sub001/internal/api/routes"
	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/postgres"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/clients/redis"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/observability"
	"github.com/iamgolden55/basebackend-sub001/pkg/config"
)

func main() {
	// Load .env when present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - balance caching and events are optional
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize adapters
	ledgerAdapter := database.NewLedgerAdapter(pgClient)
	insuranceAdapter := database.NewInsuranceAdapter(pgClient)
	claimAdapter := database.NewClaimAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	var insurerProvider providers.InsurerProvider
	if cfg.Insurer.BaseURL == "" {
		log.Println("Warning: INSURER_API_URL is not set; using mock insurer provider")
		insurerProvider = insurer.NewMockProvider()
	} else {
		insurerProvider = insurer.NewHTTPClient(&cfg.Insurer)
	}

	// Initialize services
	coverageService := services.NewCoverageService(insuranceAdapter, insurerProvider, cfg.Ledger.VerificationFreshness)
	claimService := services.NewClaimService(claimAdapter, insurerProvider)
	walletService := services.NewWalletService(
		ledgerAdapter,
		coverageService,
		claimService,
		eventBus,
		cfg.Ledger.MaxCommitRetries,
	)
	transferService := services.NewTransferService(
		ledgerAdapter,
		walletService,
		coverageService,
		eventBus,
		cfg.Ledger.MaxCommitRetries,
	)

	// Initialize cache invalidation service
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Printf("Warning: Failed to start cache invalidation service: %v", err)
		} else {
			log.Println("Cache invalidation service started successfully")
		}
	}

	// Initialize handlers
	creditHandler := handlers.NewCreditHandler(
		walletService,
		transferService,
		cacheProvider,
		cfg.Ledger.BalanceCacheTTLSeconds,
	)
	insuranceHandler := handlers.NewInsuranceHandler(coverageService, claimService, insuranceAdapter)

	// Set up router
	router := routes.NewRouter(creditHandler, insuranceHandler, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	log.Println("Server stopped")
}
