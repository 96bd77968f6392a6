package insurer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/pkg/config"
	apperrors "github.com/iamgolden55/basebackend-sub001/pkg/errors"
)

// HTTPClient talks to the external insurer API. All calls go through a
// circuit breaker so a degraded insurer cannot tie up spend requests.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates an insurer API client
func NewHTTPClient(cfg *config.InsurerConfig) providers.InsurerProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "insurer-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: breaker,
	}
}

type verifyResponse struct {
	PolicyNumber string `json:"policy_number"`
	Active       bool   `json:"active"`
}

type claimSubmission struct {
	PolicyProfileID string `json:"policy_profile_id"`
	AppointmentID   string `json:"appointment_id"`
	Amount          int64  `json:"amount"`
	SubmittedAt     string `json:"submitted_at"`
}

type claimSubmissionResponse struct {
	Reference string `json:"reference"`
}

// VerifyPolicy checks whether a policy is active with the insurer
func (c *HTTPClient) VerifyPolicy(ctx context.Context, policyNumber string) (*providers.PolicyVerification, error) {
	endpoint := fmt.Sprintf("%s/policies/%s/verify", c.baseURL, url.PathEscape(policyNumber))

	out := &verifyResponse{}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, out); err != nil {
		return nil, err
	}

	return &providers.PolicyVerification{
		PolicyNumber: out.PolicyNumber,
		Active:       out.Active,
	}, nil
}

// SubmitClaim submits a claim and returns the insurer's reference
func (c *HTTPClient) SubmitClaim(ctx context.Context, claim *entities.InsuranceClaim) (string, error) {
	endpoint := fmt.Sprintf("%s/claims", c.baseURL)

	body := claimSubmission{
		PolicyProfileID: claim.ProfileID,
		AppointmentID:   claim.AppointmentID,
		Amount:          claim.Amount,
		SubmittedAt:     claim.SubmittedAt.Format(time.RFC3339),
	}

	out := &claimSubmissionResponse{}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, out); err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", apperrors.NewExternalError("insurer returned an empty claim reference", nil)
	}

	return out.Reference, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, apperrors.NewInternalError("failed to marshal request body", err)
			}
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to build insurer request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, apperrors.NewExternalError("insurer request failed", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, apperrors.NewExternalError(
				fmt.Sprintf("insurer api returned status %d", resp.StatusCode), nil)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, apperrors.NewExternalError("failed to decode insurer response", err)
		}

		return nil, nil
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperrors.NewExternalError("insurer api is unavailable", err)
	}

	return err
}
