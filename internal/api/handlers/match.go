package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/matching"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
	"github.com/wonny/p2pex/backend/pkg/redis"
)

var errNoLiquidity = errors.New("no matching order available")

// RateLimiter is the shared per-requester limiter (redis.RateLimiter)
type RateLimiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// MatchHandler serves match and estimate requests against the live snapshot
// ⭐ SSOT: 매칭 API 핸들러는 이 구조체에서만
type MatchHandler struct {
	store     *orderbook.Store
	engine    *matching.Engine
	validator *Validator
	limiter   RateLimiter
	perMinute int
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewMatchHandler creates a match handler
func NewMatchHandler(store *orderbook.Store, engine *matching.Engine, m *metrics.Metrics, log *logger.Logger) *MatchHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &MatchHandler{
		store:     store,
		engine:    engine,
		validator: NewValidator(),
		metrics:   m,
		logger:    log,
	}
}

// WithRateLimit limits match requests to perMinute per requester
func (h *MatchHandler) WithRateLimit(limiter RateLimiter, perMinute int) *MatchHandler {
	h.limiter = limiter
	h.perMinute = perMinute
	return h
}

// MatchRequest is the body of POST /api/match
type MatchRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Side        string          `json:"side" validate:"required,oneof=buy sell"`
	RequesterID string          `json:"requester_id" validate:"required,max=128"`
}

// EstimateRequest is the body of POST /api/estimate and of websocket frames
type EstimateRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Side   string          `json:"side" validate:"required,oneof=buy sell"`
}

// Match returns the best counter-order for the requester
// POST /api/match
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req MatchRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		h.metrics.ObserveMatch(sideLabel(req.Side), metrics.OutcomeInvalid, time.Since(start))
		return
	}
	side, _ := contracts.ParseSide(req.Side)

	if h.limiter != nil && h.perMinute > 0 {
		allowed, remaining, err := h.limiter.Allow(r.Context(), redis.MatchRateLimit(req.RequesterID, h.perMinute))
		if err != nil {
			// Redis trouble must not take matching down
			h.logger.WithError(err).Warn("Match rate limit check failed")
		} else {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				h.metrics.ObserveMatch(sideLabel(req.Side), metrics.OutcomeLimited, time.Since(start))
				w.Header().Set("Retry-After", "60")
				respondError(w, http.StatusTooManyRequests, "Too many match requests")
				return
			}
		}
	}

	result, err := h.engine.FindBestMatch(h.store.Current().Orders(), req.Amount, side, req.RequesterID)
	if err != nil {
		h.metrics.ObserveMatch(sideLabel(req.Side), metrics.OutcomeInvalid, time.Since(start))
		respondError(w, statusFor(err), err.Error())
		return
	}
	if result == nil {
		h.metrics.ObserveMatch(sideLabel(req.Side), metrics.OutcomeNoLiquidity, time.Since(start))
		respondError(w, http.StatusNotFound, errNoLiquidity.Error())
		return
	}

	h.metrics.ObserveMatch(sideLabel(req.Side), metrics.OutcomeMatched, time.Since(start))
	h.logger.WithFields(map[string]interface{}{
		"requester": req.RequesterID,
		"order_id":  result.Order.ID,
		"side":      req.Side,
		"amount":    req.Amount.String(),
	}).Debug("Match found")

	respondJSON(w, http.StatusOK, result)
}

// Estimate quotes the best available rate
// POST /api/estimate
func (h *MatchHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		h.metrics.ObserveEstimate(sideLabel(req.Side), metrics.OutcomeInvalid)
		return
	}

	estimate, status, err := h.estimate(req)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, estimate)
}

// estimate is shared by the HTTP and websocket paths
func (h *MatchHandler) estimate(req EstimateRequest) (*contracts.Estimate, int, error) {
	side, err := contracts.ParseSide(req.Side)
	if err != nil {
		h.metrics.ObserveEstimate(sideLabel(req.Side), metrics.OutcomeInvalid)
		return nil, http.StatusBadRequest, matching.ErrInvalidSide
	}

	estimate, err := h.engine.EstimateQuickTrade(h.store.Current().Orders(), req.Amount, side)
	if err != nil {
		h.metrics.ObserveEstimate(sideLabel(req.Side), metrics.OutcomeInvalid)
		return nil, statusFor(err), err
	}
	if estimate == nil {
		h.metrics.ObserveEstimate(sideLabel(req.Side), metrics.OutcomeNoLiquidity)
		return nil, http.StatusNotFound, errNoLiquidity
	}

	h.metrics.ObserveEstimate(sideLabel(req.Side), metrics.OutcomeMatched)
	return estimate, http.StatusOK, nil
}

// sideLabel keeps metric label values bounded
func sideLabel(s string) string {
	side, err := contracts.ParseSide(s)
	if err != nil {
		return "unknown"
	}
	return side.String()
}
