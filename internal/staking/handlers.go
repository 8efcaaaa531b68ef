package staking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
	"github.com/stakevault/staking-engine/internal/store"
	"github.com/stakevault/staking-engine/internal/token"
)

// --- Request types ---

// InitializePoolRequest is the JSON body for POST /api/v1/pool.
type InitializePoolRequest struct {
	Owner        string          `json:"owner"`
	AssetID      string          `json:"asset_id"`
	StartTime    int64           `json:"start_time"`
	EndTime      int64           `json:"end_time"`
	LockDuration int64           `json:"lock_duration"`
	AnnualRate   uint64          `json:"annual_rate"`
	Funding      decimal.Decimal `json:"funding"`
}

// UpdatePoolRequest is the JSON body for PUT /api/v1/pool.
type UpdatePoolRequest struct {
	Caller       string `json:"caller"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	LockDuration int64  `json:"lock_duration"`
	AnnualRate   uint64 `json:"annual_rate"`
}

// StakeRequest is the JSON body for POST /api/v1/stake.
type StakeRequest struct {
	Owner  string          `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

// OwnerRequest is the JSON body for claim and unstake calls.
type OwnerRequest struct {
	Owner string `json:"owner"`
}

// UnstakeResponse is the JSON body returned from POST /api/v1/unstake.
type UnstakeResponse struct {
	Owner    string          `json:"owner"`
	Returned decimal.Decimal `json:"returned"`
}

// --- HTTP handlers ---

// HandleInitializePool handles POST /api/v1/pool.
func (s *Service) HandleInitializePool(w http.ResponseWriter, r *http.Request) {
	var req InitializePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	pool, err := s.InitializePool(r.Context(), InitPoolParams{
		Owner:        req.Owner,
		AssetID:      req.AssetID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		LockDuration: req.LockDuration,
		AnnualRate:   req.AnnualRate,
		Funding:      req.Funding,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pool)
}

// HandleUpdatePool handles PUT /api/v1/pool.
func (s *Service) HandleUpdatePool(w http.ResponseWriter, r *http.Request) {
	var req UpdatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}

	pool, err := s.UpdatePool(r.Context(), req.Caller, req.StartTime, req.EndTime, req.LockDuration, req.AnnualRate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// HandleGetPool handles GET /api/v1/pool.
func (s *Service) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.store.GetPool(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// HandleStake handles POST /api/v1/stake.
func (s *Service) HandleStake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	rec, err := s.Stake(r.Context(), req.Owner, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// HandleClaimRewards handles POST /api/v1/claim.
func (s *Service) HandleClaimRewards(w http.ResponseWriter, r *http.Request) {
	var req OwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	result, err := s.ClaimRewards(r.Context(), req.Owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleUnstake handles POST /api/v1/unstake.
func (s *Service) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	var req OwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		writeError(w, "owner is required", http.StatusBadRequest)
		return
	}

	returned, err := s.Unstake(r.Context(), req.Owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UnstakeResponse{Owner: req.Owner, Returned: returned})
}

// HandleGetStakeRecord handles GET /api/v1/stakes/{owner}.
func (s *Service) HandleGetStakeRecord(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	rec, err := s.store.GetStakeRecord(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleGetTransfers handles GET /api/v1/stakes/{owner}/transfers.
func (s *Service) HandleGetTransfers(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	entries, err := s.store.ListTransfersByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, "failed to load transfers", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.TransferEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetBalance handles GET /api/v1/accounts/{account}/balance.
func (s *Service) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	balance, err := s.bank.Balance(r.Context(), account)
	if err != nil {
		writeError(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

// HandleFaucet handles POST /api/v1/accounts. Development helper backed by
// the in-memory bank: creates an account and mints an opening balance.
func (s *Service) HandleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string          `json:"id"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		writeError(w, "id is required", http.StatusBadRequest)
		return
	}

	bank, ok := s.bank.(*token.MemoryBank)
	if !ok {
		writeError(w, "account provisioning is not available", http.StatusNotImplemented)
		return
	}

	ctx := r.Context()
	if err := bank.CreateAccount(ctx, req.ID, req.ID); err != nil && !errors.Is(err, token.ErrAccountExists) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if req.Amount.IsPositive() {
		if err := bank.Mint(ctx, req.ID, req.Amount); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	balance, _ := bank.Balance(context.Background(), req.ID)
	writeJSON(w, http.StatusCreated, map[string]decimal.Decimal{"balance": balance})
}

// --- Error mapping ---

// writeDomainError maps domain sentinels to HTTP status codes so clients
// always see a specific reason.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrPoolNotFound), errors.Is(err, store.ErrRecordNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidWindow):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrPoolExists),
		errors.Is(err, ErrStakingNotStarted),
		errors.Is(err, ErrStakingEnded),
		errors.Is(err, ErrAlreadyStaked),
		errors.Is(err, ErrNoRewardsAvailable),
		errors.Is(err, ErrLockPeriodNotOver),
		errors.Is(err, ErrNoActiveStake),
		errors.Is(err, ErrTransferFailed):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
