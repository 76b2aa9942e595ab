package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

var (
	// ErrStaleOrder is returned when the stored order changed between read and write
	ErrStaleOrder = errors.New("order changed concurrently")

	// ErrOrderNotFound is returned for unknown order ids
	ErrOrderNotFound = orderbook.ErrOrderNotFound
)

// Repository is the settlement mirror storage
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (contracts.Order, error)
	InsertOrder(ctx context.Context, order contracts.Order, actor string) (bool, error)
	CompareAndSwap(ctx context.Context, prev, next contracts.Order, action, actor string) (bool, error)
	ListTimedOut(ctx context.Context, now time.Time) ([]contracts.Order, error)
}

// Service applies lifecycle transitions to the mirror
// ⭐ SSOT: 주문 상태 변경은 이 서비스를 통해서만 기록
type Service struct {
	repo    Repository
	machine *lifecycle.Machine
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a settlement service
func NewService(repo Repository, machine *lifecycle.Machine, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		machine: machine,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// WithClock overrides the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Machine returns the lifecycle machine used for validation
func (s *Service) Machine() *lifecycle.Machine {
	return s.machine
}

// Create validates a new order and records it as awaiting a filler.
// An id that is already mirrored is rejected; existing orders only move through Apply.
func (s *Service) Create(ctx context.Context, order contracts.Order, actor string) (contracts.Order, error) {
	order.Status = contracts.StatusCreated
	req := lifecycle.Request{Action: lifecycle.ActionCreate, Actor: actor}
	action := string(req.Action)

	next, err := s.machine.Transition(order, req, s.now())
	if err != nil {
		s.metrics.ObserveTransition(action, metrics.OutcomeRejected)
		return order, err
	}

	inserted, err := s.repo.InsertOrder(ctx, next, actor)
	if err != nil {
		s.metrics.ObserveTransition(action, metrics.OutcomeError)
		return order, fmt.Errorf("failed to record order %s: %w", order.ID, err)
	}
	if !inserted {
		s.metrics.ObserveTransition(action, metrics.OutcomeRejected)
		return order, s.duplicateError(ctx, order.ID)
	}

	s.metrics.ObserveTransition(action, metrics.OutcomeApplied)
	s.logger.WithFields(map[string]interface{}{
		"order_id": next.ID,
		"creator":  next.Creator,
		"side":     next.Type.String(),
	}).Info("Order created")

	return next, nil
}

// duplicateError reports create on an existing id as an illegal transition from its current status
func (s *Service) duplicateError(ctx context.Context, orderID string) error {
	from := contracts.StatusAwaitingFiller
	if existing, err := s.repo.GetOrder(ctx, orderID); err == nil {
		from = existing.Status
	}
	s.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"status":   from.String(),
	}).Debug("Create rejected, order already exists")

	return &lifecycle.TransitionError{
		Action: lifecycle.ActionCreate,
		From:   from,
		Err:    lifecycle.ErrInvalidTransition,
	}
}

// Apply loads the order, validates req and writes the result with compare-and-swap
func (s *Service) Apply(ctx context.Context, orderID string, req lifecycle.Request) (contracts.Order, error) {
	action := string(req.Action)

	current, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderbook.ErrOrderNotFound) {
			s.metrics.ObserveTransition(action, metrics.OutcomeRejected)
			return contracts.Order{}, err
		}
		s.metrics.ObserveTransition(action, metrics.OutcomeError)
		return contracts.Order{}, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	next, err := s.machine.Transition(current, req, s.now())
	if err != nil {
		s.metrics.ObserveTransition(action, metrics.OutcomeRejected)
		s.logger.WithFields(map[string]interface{}{
			"order_id": orderID,
			"action":   action,
			"status":   current.Status.String(),
			"error":    err.Error(),
		}).Debug("Transition rejected")
		return current, err
	}

	applied, err := s.repo.CompareAndSwap(ctx, current, next, action, req.Actor)
	if err != nil {
		s.metrics.ObserveTransition(action, metrics.OutcomeError)
		return current, fmt.Errorf("failed to apply %s to order %s: %w", action, orderID, err)
	}
	if !applied {
		s.metrics.ObserveTransition(action, metrics.OutcomeStale)
		return current, fmt.Errorf("%s on order %s: %w", action, orderID, ErrStaleOrder)
	}

	s.metrics.ObserveTransition(action, metrics.OutcomeApplied)
	s.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"action":   action,
		"actor":    req.Actor,
		"from":     current.Status.String(),
		"to":       next.Status.String(),
	}).Info("Order transition applied")

	return next, nil
}

// SweepResult summarizes one timeout sweep
type SweepResult struct {
	Checked  int `json:"checked"`
	Refunded int `json:"refunded"`
	Skipped  int `json:"skipped"`
}

// SweepTimeouts refunds every order whose fiat transfer deadline has passed.
// Orders that changed concurrently are skipped and picked up by the next sweep.
func (s *Service) SweepTimeouts(ctx context.Context, actor string) (SweepResult, error) {
	var result SweepResult

	orders, err := s.repo.ListTimedOut(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("failed to list timed out orders: %w", err)
	}
	result.Checked = len(orders)

	req := lifecycle.Request{Action: lifecycle.ActionTimeoutFiatTransfer, Actor: actor}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := s.Apply(ctx, o.ID, req)
		switch {
		case err == nil:
			result.Refunded++
		case errors.Is(err, ErrStaleOrder),
			errors.Is(err, lifecycle.ErrInvalidTransition),
			errors.Is(err, lifecycle.ErrDeadlineNotElapsed),
			errors.Is(err, orderbook.ErrOrderNotFound):
			result.Skipped++
		default:
			return result, err
		}
	}

	if result.Checked > 0 {
		s.logger.WithFields(map[string]interface{}{
			"checked":  result.Checked,
			"refunded": result.Refunded,
			"skipped":  result.Skipped,
		}).Info("Fiat transfer timeout sweep completed")
	}

	return result, nil
}
