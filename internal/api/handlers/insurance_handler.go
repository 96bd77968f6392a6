package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
)

// InsuranceHandler handles insurance coverage and claim requests
type InsuranceHandler struct {
	coverage *services.CoverageService
	claims   *services.ClaimService
	profiles repositories.InsuranceRepository
}

// NewInsuranceHandler creates a new insurance handler
func NewInsuranceHandler(
	coverage *services.CoverageService,
	claims *services.ClaimService,
	profiles repositories.InsuranceRepository,
) *InsuranceHandler {
	return &InsuranceHandler{
		coverage: coverage,
		claims:   claims,
		profiles: profiles,
	}
}

type registerProfileRequest struct {
	UserID             string               `json:"user_id"`
	PolicyNumber       string               `json:"policy_number"`
	PackageType        entities.PackageType `json:"package_type"`
	CoveragePercentage int                  `json:"coverage_percentage"`
	AnnualLimit        int64                `json:"annual_limit"`
}

// RegisterProfile handles POST /api/insurance/profiles
func (h *InsuranceHandler) RegisterProfile(w http.ResponseWriter, r *http.Request) {
	var req registerProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.UserID == "" || req.PolicyNumber == "" {
		respondWithError(w, http.StatusBadRequest, "user_id and policy_number are required")
		return
	}
	if !req.PackageType.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown package type")
		return
	}
	if req.CoveragePercentage <= 0 || req.CoveragePercentage > 100 {
		respondWithError(w, http.StatusBadRequest, "coverage percentage must be between 1 and 100")
		return
	}
	if req.AnnualLimit <= 0 {
		respondWithError(w, http.StatusBadRequest, "annual limit must be positive")
		return
	}

	now := time.Now()
	profile := &entities.InsuranceProfile{
		ID:                 uuid.New().String(),
		UserID:             req.UserID,
		PolicyNumber:       req.PolicyNumber,
		PackageType:        req.PackageType,
		CoveragePercentage: req.CoveragePercentage,
		AnnualLimit:        req.AnnualLimit,
		Active:             false, // activated by verification
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.profiles.Create(r.Context(), profile); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, profile)
}

type verifyRequest struct {
	PolicyNumber string `json:"policy_number"`
}

// Verify handles POST /api/insurance/verify
func (h *InsuranceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.PolicyNumber == "" {
		respondWithError(w, http.StatusBadRequest, "policy_number is required")
		return
	}

	profile, err := h.coverage.Verify(r.Context(), req.PolicyNumber)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

type coverageResponse struct {
	ProfileID          string               `json:"profile_id"`
	PolicyNumber       string               `json:"policy_number"`
	PackageType        entities.PackageType `json:"package_type"`
	CoveragePercentage int                  `json:"coverage_percentage"`
	AnnualLimit        int64                `json:"annual_limit"`
	UsedAmount         int64                `json:"used_amount"`
	Headroom           int64                `json:"headroom"`
	LastVerifiedAt     time.Time            `json:"last_verified_at"`
	Active             bool                 `json:"active"`
}

// Coverage handles GET /api/insurance/coverage
func (h *InsuranceHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	profile, err := h.coverage.ActiveProfileForUser(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, coverageResponse{
		ProfileID:          profile.ID,
		PolicyNumber:       profile.PolicyNumber,
		PackageType:        profile.PackageType,
		CoveragePercentage: profile.CoveragePercentage,
		AnnualLimit:        profile.AnnualLimit,
		UsedAmount:         profile.UsedAmount,
		Headroom:           profile.Headroom(),
		LastVerifiedAt:     profile.LastVerifiedAt,
		Active:             profile.Active,
	})
}

type submitClaimRequest struct {
	ProfileID     string `json:"profile_id"`
	AppointmentID string `json:"appointment_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        int64  `json:"amount"`
}

// SubmitClaim handles POST /api/insurance/claims
func (h *InsuranceHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req submitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	claim, err := h.claims.Submit(r.Context(), req.ProfileID, req.AppointmentID, req.TransactionID, req.Amount)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, claim)
}

// ClaimStatus handles GET /api/insurance/claims/{id}/status
func (h *InsuranceHandler) ClaimStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "claim ID is required")
		return
	}

	claim, err := h.claims.GetStatus(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, claim)
}

type transitionRequest struct {
	Status        entities.ClaimStatus `json:"status"`
	SettledAmount *int64               `json:"settled_amount,omitempty"`
}

// TransitionClaim handles POST /api/insurance/claims/{id}/transition.
// Moving to reconciled requires the settled amount and returns the
// reconciliation report alongside the claim.
func (h *InsuranceHandler) TransitionClaim(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "claim ID is required")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.Status == entities.ClaimStatusReconciled {
		if req.SettledAmount == nil {
			respondWithError(w, http.StatusBadRequest, "settled_amount is required for reconciliation")
			return
		}
		claim, report, err := h.claims.Reconcile(r.Context(), id, *req.SettledAmount)
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"claim":          claim,
			"reconciliation": report,
		})
		return
	}

	claim, err := h.claims.Transition(r.Context(), id, req.Status)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, claim)
}
