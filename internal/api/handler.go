package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nqdhocai/ovira/internal/custody"
	"github.com/nqdhocai/ovira/internal/domain"
	"github.com/nqdhocai/ovira/internal/ledger"
)

// VaultService is the accounting engine surface the API exposes.
type VaultService interface {
	Initialize(ctx context.Context, caller, assetID string, performanceFeeBps, managementFeeBps uint32, pools []string) (domain.VaultState, error)
	Deposit(ctx context.Context, caller, assetID string, amount uint64) (domain.VaultState, error)
	Withdraw(ctx context.Context, caller, assetID string, amount uint64) (domain.VaultState, error)
	AccrueFees(ctx context.Context, caller, assetID string) (domain.VaultState, error)
	RebalancePools(ctx context.Context, caller, assetID string, weights map[string]uint32) (domain.VaultState, error)
	State(ctx context.Context, assetID string) (domain.VaultState, error)
	Position(ctx context.Context, assetID, owner string) (domain.UserPosition, error)
	Events(ctx context.Context, assetID string, limit int) ([]domain.Event, error)
}

// CustodyFunder settles external deposits into custody accounts.
type CustodyFunder interface {
	CreditCustody(ctx context.Context, account string, amount uint64) error
}

// Handler provides HTTP endpoints for vault operations.
type Handler struct {
	vaults VaultService
	funder CustodyFunder
}

// NewHandler creates a new API handler.
func NewHandler(vaults VaultService, funder CustodyFunder) *Handler {
	return &Handler{vaults: vaults, funder: funder}
}

// statusFor maps engine failures to HTTP status codes. Unknown errors are
// treated as internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidFeeRate),
		errors.Is(err, domain.ErrInvalidPoolSet),
		errors.Is(err, domain.ErrInvalidWeights):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrVaultNotInitialized),
		errors.Is(err, domain.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, custody.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrFeeAccrualTooSoon):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError translates an engine failure into the JSON error body.
// Internal errors are logged and masked.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("vault operation failed", "op", op, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

type initializeRequest struct {
	Caller            string   `json:"caller"`
	AssetID           string   `json:"assetId"`
	PerformanceFeeBps uint32   `json:"performanceFeeBps"`
	ManagementFeeBps  uint32   `json:"managementFeeBps"`
	Pools             []string `json:"pools"`
}

// Initialize handles POST /api/v1/vaults.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" || req.AssetID == "" {
		writeError(w, http.StatusBadRequest, "caller and assetId are required")
		return
	}

	state, err := h.vaults.Initialize(r.Context(), req.Caller, req.AssetID,
		req.PerformanceFeeBps, req.ManagementFeeBps, req.Pools)
	if err != nil {
		writeEngineError(w, "initialize", err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetVault handles GET /api/v1/vaults/{asset}.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	state, err := h.vaults.State(r.Context(), r.PathValue("asset"))
	if err != nil {
		writeEngineError(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type amountRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

// Deposit handles POST /api/v1/vaults/{asset}/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	state, err := h.vaults.Deposit(r.Context(), req.Caller, r.PathValue("asset"), req.Amount)
	if err != nil {
		writeEngineError(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Withdraw handles POST /api/v1/vaults/{asset}/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	state, err := h.vaults.Withdraw(r.Context(), req.Caller, r.PathValue("asset"), req.Amount)
	if err != nil {
		writeEngineError(w, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type callerRequest struct {
	Caller string `json:"caller"`
}

// AccrueFees handles POST /api/v1/vaults/{asset}/accrue.
func (h *Handler) AccrueFees(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	state, err := h.vaults.AccrueFees(r.Context(), req.Caller, r.PathValue("asset"))
	if err != nil {
		writeEngineError(w, "accrue", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type rebalanceRequest struct {
	Caller  string            `json:"caller"`
	Weights map[string]uint32 `json:"weights"`
}

// Rebalance handles POST /api/v1/vaults/{asset}/rebalance.
func (h *Handler) Rebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	state, err := h.vaults.RebalancePools(r.Context(), req.Caller, r.PathValue("asset"), req.Weights)
	if err != nil {
		writeEngineError(w, "rebalance", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetPosition handles GET /api/v1/vaults/{asset}/positions/{owner}.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.vaults.Position(r.Context(), r.PathValue("asset"), r.PathValue("owner"))
	if err != nil {
		writeEngineError(w, "position", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ListEvents handles GET /api/v1/vaults/{asset}/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 500
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	events, err := h.vaults.Events(r.Context(), r.PathValue("asset"), limit)
	if err != nil {
		writeEngineError(w, "events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type fundRequest struct {
	AssetID string `json:"assetId"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

// FundCustody handles POST /api/v1/custody/credit, the on-ramp settlement
// hook crediting a user's custody account.
func (h *Handler) FundCustody(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AssetID == "" || req.Owner == "" || req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "assetId, owner and a positive amount are required")
		return
	}

	account := custody.UserAccount(req.AssetID, req.Owner)
	if err := h.funder.CreditCustody(r.Context(), account, req.Amount); err != nil {
		slog.Error("custody credit failed", "account", account, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "credited": req.Amount})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
