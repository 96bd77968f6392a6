package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgolden55/basebackend-sub001/internal/adapters/memory"
	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
)

type fakeInsurer struct {
	active bool
}

func (f *fakeInsurer) VerifyPolicy(_ context.Context, policyNumber string) (*providers.PolicyVerification, error) {
	return &providers.PolicyVerification{PolicyNumber: policyNumber, Active: f.active}, nil
}

func (f *fakeInsurer) SubmitClaim(_ context.Context, claim *entities.InsuranceClaim) (string, error) {
	return "EXT-" + claim.ID[:8], nil
}

func setupInsuranceHandler(t *testing.T) *InsuranceHandler {
	t.Helper()
	store := memory.New()
	insurer := &fakeInsurer{active: true}
	coverage := services.NewCoverageService(store, insurer, 24*time.Hour)
	claims := services.NewClaimService(store.Claims(), insurer)
	return NewInsuranceHandler(coverage, claims, store)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestInsuranceHandler_RegisterVerifyCoverage(t *testing.T) {
	handler := setupInsuranceHandler(t)

	rec := postJSON(t, handler.RegisterProfile, "/api/insurance/profiles", map[string]interface{}{
		"user_id":             "user-1",
		"policy_number":       "POL-001",
		"package_type":        "FSSHIP",
		"coverage_percentage": 80,
		"annual_limit":        100000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var profile entities.InsuranceProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.False(t, profile.Active, "profile must stay inactive until verified")

	// Coverage is not served from an unverified profile
	req := httptest.NewRequest(http.MethodGet, "/api/insurance/coverage?user_id=user-1", nil)
	cov := httptest.NewRecorder()
	handler.Coverage(cov, req)
	assert.Equal(t, http.StatusNotFound, cov.Code)

	rec = postJSON(t, handler.Verify, "/api/insurance/verify", map[string]interface{}{
		"policy_number": "POL-001",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/insurance/coverage?user_id=user-1", nil)
	cov = httptest.NewRecorder()
	handler.Coverage(cov, req)
	require.Equal(t, http.StatusOK, cov.Code)

	var resp coverageResponse
	require.NoError(t, json.Unmarshal(cov.Body.Bytes(), &resp))
	assert.Equal(t, "POL-001", resp.PolicyNumber)
	assert.Equal(t, int64(100000), resp.Headroom)
	assert.True(t, resp.Active)
}

func TestInsuranceHandler_RegisterProfileValidation(t *testing.T) {
	handler := setupInsuranceHandler(t)

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{
			name: "missing policy number",
			payload: map[string]interface{}{
				"user_id": "u", "package_type": "FSSHIP", "coverage_percentage": 80, "annual_limit": 1000,
			},
		},
		{
			name: "unknown package type",
			payload: map[string]interface{}{
				"user_id": "u", "policy_number": "P", "package_type": "GOLD", "coverage_percentage": 80, "annual_limit": 1000,
			},
		},
		{
			name: "percentage out of range",
			payload: map[string]interface{}{
				"user_id": "u", "policy_number": "P", "package_type": "FSSHIP", "coverage_percentage": 150, "annual_limit": 1000,
			},
		},
		{
			name: "non-positive limit",
			payload: map[string]interface{}{
				"user_id": "u", "policy_number": "P", "package_type": "FSSHIP", "coverage_percentage": 80, "annual_limit": 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler.RegisterProfile, "/api/insurance/profiles", tt.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInsuranceHandler_VerifyUnknownPolicy(t *testing.T) {
	handler := setupInsuranceHandler(t)

	rec := postJSON(t, handler.Verify, "/api/insurance/verify", map[string]interface{}{
		"policy_number": "POL-UNKNOWN",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VERIFICATION_FAILED", resp["code"])
}

func TestInsuranceHandler_ClaimLifecycle(t *testing.T) {
	handler := setupInsuranceHandler(t)

	rec := postJSON(t, handler.SubmitClaim, "/api/insurance/claims", map[string]interface{}{
		"profile_id":     "profile-1",
		"appointment_id": "appt-1",
		"amount":         500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var claim entities.InsuranceClaim
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	assert.Equal(t, entities.ClaimStatusProcessing, claim.Status)

	statusReq := httptest.NewRequest(http.MethodGet, "/api/insurance/claims/"+claim.ID+"/status", nil)
	statusReq.SetPathValue("id", claim.ID)
	statusRec := httptest.NewRecorder()
	handler.ClaimStatus(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)

	transition := func(payload map[string]interface{}) *httptest.ResponseRecorder {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/insurance/claims/"+claim.ID+"/transition", bytes.NewReader(body))
		req.SetPathValue("id", claim.ID)
		rec := httptest.NewRecorder()
		handler.TransitionClaim(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, transition(map[string]interface{}{"status": "approved"}).Code)

	// Reconciliation needs the settled amount
	assert.Equal(t, http.StatusBadRequest, transition(map[string]interface{}{"status": "reconciled"}).Code)

	rec = transition(map[string]interface{}{"status": "reconciled", "settled_amount": 500})
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Claim          *entities.InsuranceClaim       `json:"claim"`
		Reconciliation *entities.ReconciliationReport `json:"reconciliation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, entities.ClaimStatusReconciled, result.Claim.Status)
	assert.True(t, result.Reconciliation.Matched)
}

func TestInsuranceHandler_ClaimStatusNotFound(t *testing.T) {
	handler := setupInsuranceHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/insurance/claims/missing/status", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	handler.ClaimStatus(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
