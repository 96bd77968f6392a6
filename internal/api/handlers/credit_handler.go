package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iamgolden55/basebackend-sub001/internal/application/services"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/providers"
	"github.com/iamgolden55/basebackend-sub001/internal/domain/repositories"
)

// CreditHandler handles credit wallet requests
type CreditHandler struct {
	wallets   *services.WalletService
	transfers *services.TransferService
	cache     providers.CacheProvider
	cacheTTL  int
}

// NewCreditHandler creates a new credit handler. The cache is optional;
// balance reads fall through to the ledger when it is absent.
func NewCreditHandler(
	wallets *services.WalletService,
	transfers *services.TransferService,
	cache providers.CacheProvider,
	cacheTTLSeconds int,
) *CreditHandler {
	return &CreditHandler{
		wallets:   wallets,
		transfers: transfers,
		cache:     cache,
		cacheTTL:  cacheTTLSeconds,
	}
}

type spendRequest struct {
	UserID  string                  `json:"user_id"`
	Amount  int64                   `json:"amount"`
	Service entities.ServiceContext `json:"service"`
}

// Spend handles POST /api/credits/spend
func (h *CreditHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	receipt, err := h.wallets.Spend(r.Context(), req.UserID, req.Amount, req.Service)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, receipt)
}

type transferRequest struct {
	DonorID      string                `json:"donor_id"`
	RecipientID  string                `json:"recipient_id"`
	Amount       int64                 `json:"amount"`
	Restrictions entities.Restrictions `json:"restrictions"`
}

// Transfer handles POST /api/credits/transfer
func (h *CreditHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	receipt, err := h.transfers.Transfer(r.Context(), req.DonorID, req.RecipientID, req.Amount, req.Restrictions)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, receipt)
}

type purchaseRequest struct {
	UserID    string     `json:"user_id"`
	Amount    int64      `json:"amount"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	SourceRef string     `json:"source_ref,omitempty"`
}

// Purchase handles POST /api/credits/purchase. Purchased credit is always
// unrestricted and transferable.
func (h *CreditHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	credit, err := h.wallets.Grant(r.Context(), entities.CreditSpec{
		UserID:    req.UserID,
		Type:      entities.CreditTypePurchased,
		Amount:    req.Amount,
		ExpiresAt: req.ExpiresAt,
		SourceRef: req.SourceRef,
		Restrictions: entities.Restrictions{
			Transferable: true,
		},
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, credit)
}

// Grant handles POST /api/credits/grants for corporate and insurance
// allocations
func (h *CreditHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var spec entities.CreditSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	credit, err := h.wallets.Grant(r.Context(), spec)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, credit)
}

type balanceResponse struct {
	UserID          string `json:"user_id"`
	InsuranceBacked int64  `json:"insurance_backed"`
	Purchased       int64  `json:"purchased"`
	Gifted          int64  `json:"gifted"`
	Corporate       int64  `json:"corporate"`
	Total           int64  `json:"total"`
}

// Balance handles GET /api/credits/balance. Snapshots are served from
// cache when available; the cache invalidation worker drops entries on
// every credit event.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	cacheKey := services.BalanceCacheKey(userID)
	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil {
			var resp balanceResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				respondWithJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	wallet, err := h.wallets.Balance(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	resp := balanceResponse{
		UserID:          wallet.UserID,
		InsuranceBacked: wallet.InsuranceBacked,
		Purchased:       wallet.Purchased,
		Gifted:          wallet.Gifted,
		Corporate:       wallet.Corporate,
		Total:           wallet.TotalAvailable(),
	}

	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, data, h.cacheTTL); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache balance snapshot")
			}
		}
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// History handles GET /api/credits/history
func (h *CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	filter := repositories.TransactionFilter{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	transactions, err := h.wallets.History(r.Context(), userID, filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
