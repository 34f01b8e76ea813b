package gate

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lingora-app/lingora/internal/api"
	"github.com/lingora-app/lingora/internal/quota"
)

// Handler exposes the facade over HTTP. Routing lives in the api package;
// these are the leaf handlers wired in from main.
type Handler struct {
	facade   *Facade
	validate *validator.Validate
}

func NewHandler(facade *Facade) *Handler {
	return &Handler{
		facade:   facade,
		validate: validator.New(),
	}
}

type quotaResponse struct {
	Remaining      int   `json:"remaining"`
	ResetInSeconds int64 `json:"reset_in_seconds"`
	Unlimited      bool  `json:"unlimited"`
}

type consumeResponse struct {
	Allowed        bool  `json:"allowed"`
	Remaining      int   `json:"remaining"`
	ResetInSeconds int64 `json:"reset_in_seconds"`
	Unlimited      bool  `json:"unlimited"`
}

type bonusRequest struct {
	Amount int `json:"amount" validate:"required,gt=0,lte=100"`
}

type bonusResponse struct {
	Success      bool `json:"success"`
	BonusTotal   int  `json:"bonus_total"`
	NewRemaining int  `json:"new_remaining"`
}

type rateCheckRequest struct {
	Identity string `json:"identity" validate:"required,max=128"`
	Route    string `json:"route" validate:"required,max=128"`
}

type rateCheckResponse struct {
	Allowed           bool  `json:"allowed"`
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
	Remaining         []int `json:"remaining_per_window"`
}

// GetQuota returns the user's remaining daily allowance.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	st, err := h.facade.Remaining(r.Context(), userID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, quotaResponse{
		Remaining:      st.Remaining,
		ResetInSeconds: int64(st.ResetIn.Seconds()),
		Unlimited:      st.Unlimited,
	})
}

// Consume spends one message of the user's allowance.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	d, err := h.facade.Consume(r.Context(), userID)
	switch {
	case errors.Is(err, quota.ErrQuotaExceeded):
		api.HandleError(w, api.NewTooManyRequestsError("daily message quota exceeded", d.RetryAfter))
		return
	case errors.Is(err, ErrStoreUnavailable):
		api.HandleError(w, api.NewServiceUnavailableError("quota store unavailable, try again shortly", d.RetryAfter))
		return
	case err != nil:
		h.handleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, consumeResponse{
		Allowed:        true,
		Remaining:      d.Remaining,
		ResetInSeconds: int64(d.ResetIn.Seconds()),
		Unlimited:      d.Unlimited,
	})
}

// GrantBonus credits a rewarded-ad bonus to the user's allowance.
func (h *Handler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req bonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewBadRequestError("amount must be between 1 and 100"))
		return
	}

	g, err := h.facade.GrantBonus(r.Context(), userID, req.Amount)
	if errors.Is(err, quota.ErrBonusCapReached) {
		api.JSON(w, http.StatusBadRequest, bonusResponse{
			Success:      false,
			BonusTotal:   g.BonusTotal,
			NewRemaining: g.Remaining,
		})
		return
	}
	if err != nil {
		h.handleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, bonusResponse{
		Success:      true,
		BonusTotal:   g.BonusTotal,
		NewRemaining: g.Remaining,
	})
}

// RateCheck runs the abuse windows for an (identity, route) pair.
func (h *Handler) RateCheck(w http.ResponseWriter, r *http.Request) {
	var req rateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrInvalidIdentity)
		return
	}

	res, err := h.facade.RateCheck(r.Context(), req.Identity, req.Route)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(res.RetryAfter.Seconds())+1, 10))
		api.JSON(w, http.StatusTooManyRequests, rateCheckResponse{
			Allowed:           false,
			RetryAfterSeconds: int64(res.RetryAfter.Seconds()),
			Remaining:         res.Remaining,
		})
		return
	}

	api.JSON(w, http.StatusOK, rateCheckResponse{
		Allowed:   true,
		Remaining: res.Remaining,
	})
}

// ListViolations returns the user's recent quota/rate-limit violations.
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	violations, err := h.facade.Violations(r.Context(), userID, limit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, violations)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidIdentity):
		api.HandleError(w, api.ErrInvalidIdentity)
	case errors.Is(err, ErrStoreUnavailable):
		api.HandleError(w, api.NewServiceUnavailableError("quota store unavailable, try again shortly", 0))
	default:
		api.HandleError(w, api.ErrInternalServer)
	}
}
