package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

// Settlement records lifecycle transitions
type Settlement interface {
	Create(ctx context.Context, order contracts.Order, actor string) (contracts.Order, error)
	Apply(ctx context.Context, orderID string, req lifecycle.Request) (contracts.Order, error)
}

// OrderHandler handles order book and lifecycle endpoints
// ⭐ SSOT: 주문 API 핸들러는 이 구조체에서만
type OrderHandler struct {
	store      *orderbook.Store
	settlement Settlement
	validator  *Validator
	now        func() time.Time
	logger     *logger.Logger
}

// NewOrderHandler creates an order handler. settlement may be nil,
// in which case write endpoints answer 503.
func NewOrderHandler(store *orderbook.Store, settlement Settlement, log *logger.Logger) *OrderHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OrderHandler{
		store:      store,
		settlement: settlement,
		validator:  NewValidator(),
		now:        time.Now,
		logger:     log,
	}
}

// OrderView is an order with its display labels
type OrderView struct {
	contracts.Order
	Currency      string `json:"fiat_currency"`
	PaymentMethod string `json:"payment_method"`
	Duration      string `json:"duration"`
	Remaining     string `json:"remaining"`
}

// OrderListResponse is the body of GET /api/orders
type OrderListResponse struct {
	Orders    []OrderView `json:"orders"`
	Count     int         `json:"count"`
	View      string      `json:"view,omitempty"`
	Source    string      `json:"source"`
	FetchedAt time.Time   `json:"fetched_at"`
}

func (h *OrderHandler) toView(o contracts.Order, now time.Time) OrderView {
	return OrderView{
		Order:         o,
		Currency:      o.FiatCurrency.Label(),
		PaymentMethod: o.PaymentMethod.Label(),
		Duration:      o.DurationLabel(),
		Remaining:     o.RemainingLifetime(now).Truncate(time.Second).String(),
	}
}

// List returns the snapshot, optionally filtered by view
// GET /api/orders?view=active|completed|disputed
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Current()
	orders := snapshot.Orders()

	viewParam := r.URL.Query().Get("view")
	if viewParam != "" {
		view, ok := contracts.ParseView(viewParam)
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid view (valid: active, completed, disputed)")
			return
		}
		orders = contracts.Filter(orders, view)
	}

	now := h.now()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, h.toView(o, now))
	}

	respondJSON(w, http.StatusOK, OrderListResponse{
		Orders:    views,
		Count:     len(views),
		View:      viewParam,
		Source:    snapshot.Source(),
		FetchedAt: snapshot.FetchedAt(),
	})
}

// Get returns one order from the snapshot
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, ok := h.store.Current().Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	respondJSON(w, http.StatusOK, h.toView(order, h.now()))
}

// CreateOrderRequest is the body of POST /api/orders
type CreateOrderRequest struct {
	ID            string          `json:"id" validate:"required,max=78"`
	Creator       string          `json:"created_by" validate:"required,max=128"`
	Side          string          `json:"type" validate:"required,oneof=buy sell"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Rate          decimal.Decimal `json:"rate" validate:"gt=0"`
	FiatCurrency  uint32          `json:"fiat_currency_code"`
	PaymentMethod uint32          `json:"payment_method_code"`
	DurationSecs  int64           `json:"duration_secs" validate:"gt=0"`
	DisplayName   string          `json:"display_name" validate:"max=64"`
}

// Create records a new order awaiting a filler
// POST /api/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.settlement == nil {
		respondError(w, http.StatusServiceUnavailable, "Settlement mirror not configured")
		return
	}

	var req CreateOrderRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	side, _ := contracts.ParseSide(req.Side)

	order := contracts.Order{
		ID:            req.ID,
		Creator:       req.Creator,
		Type:          side,
		Amount:        req.Amount,
		Rate:          req.Rate,
		FiatCurrency:  contracts.FiatCurrency(req.FiatCurrency),
		PaymentMethod: contracts.PaymentMethod(req.PaymentMethod),
		DurationSecs:  req.DurationSecs,
		CreatedAt:     h.now().UTC(),
		DisplayName:   req.DisplayName,
	}

	created, err := h.settlement.Create(r.Context(), order, req.Creator)
	if err != nil {
		h.respondTransitionError(w, req.ID, lifecycle.ActionCreate, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toView(created, h.now()))
}

// TransitionRequest is the body of POST /api/orders/{id}/transitions
type TransitionRequest struct {
	Action                string `json:"action" validate:"required"`
	ActorID               string `json:"actor_id" validate:"max=128"`
	FiatTransferConfirmed bool   `json:"fiat_transfer_confirmed"`
}

// Transition applies a lifecycle action to an order
// POST /api/orders/{id}/transitions
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if h.settlement == nil {
		respondError(w, http.StatusServiceUnavailable, "Settlement mirror not configured")
		return
	}

	id := mux.Vars(r)["id"]

	var req TransitionRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	action, err := lifecycle.ParseAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action == lifecycle.ActionCreate {
		respondError(w, http.StatusBadRequest, "Use POST /api/orders to create orders")
		return
	}

	order, err := h.settlement.Apply(r.Context(), id, lifecycle.Request{
		Action:                action,
		Actor:                 req.ActorID,
		FiatTransferConfirmed: req.FiatTransferConfirmed,
	})
	if err != nil {
		h.respondTransitionError(w, id, action, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toView(order, h.now()))
}

func (h *OrderHandler) respondTransitionError(w http.ResponseWriter, id string, action lifecycle.Action, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithFields(map[string]interface{}{
			"order_id": id,
			"action":   string(action),
			"error":    err.Error(),
		}).Error("Order transition failed")
		respondError(w, status, "Failed to apply transition")
		return
	}
	respondError(w, status, err.Error())
}

// TransitionTable lists the lifecycle rules
// GET /api/lifecycle/transitions
func (h *OrderHandler) TransitionTable(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, lifecycle.Table())
}
