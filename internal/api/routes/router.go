package routes

import (
	"net/http"

	"github.com/iamgolden55/basebackend-sub001/internal/api/handlers"
	"github.com/iamgolden55/basebackend-sub001/internal/api/middleware"
	"github.com/iamgolden55/basebackend-sub001/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	creditHandler    *handlers.CreditHandler
	insuranceHandler *handlers.InsuranceHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	creditHandler *handlers.CreditHandler,
	insuranceHandler *handlers.InsuranceHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		creditHandler:    creditHandler,
		insuranceHandler: insuranceHandler,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Credit wallet endpoints
	r.mux.HandleFunc("POST /api/credits/spend", r.creditHandler.Spend)
	r.mux.HandleFunc("POST /api/credits/transfer", r.creditHandler.Transfer)
	r.mux.HandleFunc("POST /api/credits/purchase", r.creditHandler.Purchase)
	r.mux.HandleFunc("POST /api/credits/grants", r.creditHandler.Grant)
	r.mux.HandleFunc("GET /api/credits/balance", r.creditHandler.Balance)
	r.mux.HandleFunc("GET /api/credits/history", r.creditHandler.History)

	// Insurance endpoints
	r.mux.HandleFunc("POST /api/insurance/profiles", r.insuranceHandler.RegisterProfile)
	r.mux.HandleFunc("POST /api/insurance/verify", r.insuranceHandler.Verify)
	r.mux.HandleFunc("GET /api/insurance/coverage", r.insuranceHandler.Coverage)
	r.mux.HandleFunc("POST /api/insurance/claims", r.insuranceHandler.SubmitClaim)
	r.mux.HandleFunc("GET /api/insurance/claims/{id}/status", r.insuranceHandler.ClaimStatus)
	r.mux.HandleFunc("POST /api/insurance/claims/{id}/transition", r.insuranceHandler.TransitionClaim)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
