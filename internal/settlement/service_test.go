package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/metrics"
	"github.com/wonny/p2pex/backend/internal/orderbook"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory Repository with the same CAS rule as Postgres
type memRepo struct {
	mu          sync.Mutex
	orders      map[string]contracts.Order
	transitions []string
	casErr      error
	listErr     error
	// mutate runs between read and CAS to simulate a concurrent writer
	mutate func(o *contracts.Order)
}

func newMemRepo(orders ...contracts.Order) *memRepo {
	r := &memRepo{orders: make(map[string]contracts.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) GetOrder(ctx context.Context, orderID string) (contracts.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return contracts.Order{}, fmt.Errorf("%w: %s", orderbook.ErrOrderNotFound, orderID)
	}
	if r.mutate != nil {
		stored := o
		r.mutate(&stored)
		r.orders[orderID] = stored
	}
	return o, nil
}

func (r *memRepo) InsertOrder(ctx context.Context, o contracts.Order, actor string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return false, nil
	}
	r.orders[o.ID] = o
	r.transitions = append(r.transitions, o.ID+":create")
	return true, nil
}

func (r *memRepo) CompareAndSwap(ctx context.Context, prev, next contracts.Order, action, actor string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.casErr != nil {
		return false, r.casErr
	}
	stored, ok := r.orders[prev.ID]
	if !ok || stored.Status != prev.Status || stored.Filler != prev.Filler {
		return false, nil
	}
	r.orders[prev.ID] = next
	r.transitions = append(r.transitions, prev.ID+":"+action)
	return true, nil
}

func (r *memRepo) ListTimedOut(ctx context.Context, at time.Time) ([]contracts.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]contracts.Order, 0)
	for _, o := range r.orders {
		if o.Status == contracts.StatusAwaitingPayment && o.FiatTransferDeadline != nil && o.FiatTransferDeadline.Before(at) {
			out = append(out, o)
		}
	}
	return out, nil
}

func newService(repo Repository) *Service {
	cfg := lifecycle.DefaultConfig()
	cfg.DisputeResolver = "R"
	return NewService(repo, lifecycle.NewMachine(cfg), metrics.New(), nil).
		WithClock(func() time.Time { return now })
}

func sellOrder(id string, status contracts.Status) contracts.Order {
	return contracts.Order{
		ID:           id,
		Creator:      "A",
		Type:         contracts.SideSell,
		Amount:       decimal.NewFromInt(100),
		Rate:         decimal.NewFromInt(950),
		DurationSecs: 3600,
		Status:       status,
		CreatedAt:    now.Add(-10 * time.Minute),
	}
}

func TestService_Create(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	created, err := svc.Create(context.Background(), sellOrder("1", contracts.StatusCreated), "A")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAwaitingFiller, created.Status)
	assert.Equal(t, contracts.StatusAwaitingFiller, repo.orders["1"].Status)

	_, err = svc.Create(context.Background(), sellOrder("2", contracts.StatusCreated), "B")
	assert.ErrorIs(t, err, lifecycle.ErrUnauthorized)
	assert.NotContains(t, repo.orders, "2")

	bad := sellOrder("3", contracts.StatusCreated)
	bad.Amount = decimal.Zero
	_, err = svc.Create(context.Background(), bad, "A")
	assert.Error(t, err)
}

func TestService_CreateRejectsExistingOrder(t *testing.T) {
	ctx := context.Background()

	for _, status := range []contracts.Status{
		contracts.StatusAwaitingFiller,
		contracts.StatusAwaitingPayment,
		contracts.StatusDisputed,
		contracts.StatusCompleted,
		contracts.StatusRefunded,
	} {
		t.Run(status.String(), func(t *testing.T) {
			stored := sellOrder("1", status)
			if status != contracts.StatusAwaitingFiller {
				stored.Filler = "B"
			}
			repo := newMemRepo(stored)
			svc := newService(repo)

			again := sellOrder("1", contracts.StatusCreated)
			again.Creator = "X"
			_, err := svc.Create(ctx, again, "X")

			assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
			var te *lifecycle.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, lifecycle.ActionCreate, te.Action)
			assert.Equal(t, status, te.From)

			assert.Equal(t, stored, repo.orders["1"], "stored order untouched")
			assert.Empty(t, repo.transitions)
		})
	}
}

func TestService_ApplyFullLifecycle(t *testing.T) {
	repo := newMemRepo(sellOrder("1", contracts.StatusAwaitingFiller))
	svc := newService(repo)
	ctx := context.Background()

	steps := []struct {
		action lifecycle.Action
		actor  string
		want   contracts.Status
	}{
		{lifecycle.ActionTake, "B", contracts.StatusAwaitingPayment},
		{lifecycle.ActionSubmitPayment, "B", contracts.StatusAwaitingConfirmation},
		{lifecycle.ActionConfirmPayment, "A", contracts.StatusCompleted},
	}

	for _, step := range steps {
		got, err := svc.Apply(ctx, "1", lifecycle.Request{Action: step.action, Actor: step.actor})
		require.NoError(t, err, step.action)
		assert.Equal(t, step.want, got.Status)
	}

	assert.Equal(t, "B", repo.orders["1"].Filler)
	assert.Equal(t, []string{"1:take", "1:submit_payment", "1:confirm_payment"}, repo.transitions)
}

func TestService_ApplyErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		svc := newService(newMemRepo())
		_, err := svc.Apply(ctx, "404", lifecycle.Request{Action: lifecycle.ActionTake, Actor: "B"})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("invalid transition", func(t *testing.T) {
		repo := newMemRepo(sellOrder("1", contracts.StatusCompleted))
		svc := newService(repo)
		_, err := svc.Apply(ctx, "1", lifecycle.Request{Action: lifecycle.ActionCancel, Actor: "A"})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
		assert.Empty(t, repo.transitions)
	})

	t.Run("concurrent take", func(t *testing.T) {
		repo := newMemRepo(sellOrder("1", contracts.StatusAwaitingFiller))
		repo.mutate = func(o *contracts.Order) {
			o.Filler = "C"
			o.Status = contracts.StatusAwaitingPayment
		}
		svc := newService(repo)
		_, err := svc.Apply(ctx, "1", lifecycle.Request{Action: lifecycle.ActionTake, Actor: "B"})
		assert.ErrorIs(t, err, ErrStaleOrder)
		assert.Equal(t, "C", repo.orders["1"].Filler)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := newMemRepo(sellOrder("1", contracts.StatusAwaitingFiller))
		repo.casErr = errors.New("connection reset")
		svc := newService(repo)
		_, err := svc.Apply(ctx, "1", lifecycle.Request{Action: lifecycle.ActionTake, Actor: "B"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrStaleOrder)
	})
}

func TestService_SweepTimeouts(t *testing.T) {
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	overdue := sellOrder("1", contracts.StatusAwaitingPayment)
	overdue.Filler = "B"
	overdue.FiatTransferDeadline = &past

	pending := sellOrder("2", contracts.StatusAwaitingPayment)
	pending.Filler = "B"
	pending.FiatTransferDeadline = &future

	repo := newMemRepo(overdue, pending, sellOrder("3", contracts.StatusAwaitingFiller))
	svc := newService(repo)

	result, err := svc.SweepTimeouts(context.Background(), "sweeper")
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 1, Refunded: 1}, result)
	assert.Equal(t, contracts.StatusRefunded, repo.orders["1"].Status)
	assert.Equal(t, contracts.StatusAwaitingPayment, repo.orders["2"].Status)
}

func TestService_SweepSkipsRaces(t *testing.T) {
	past := now.Add(-time.Minute)
	overdue := sellOrder("1", contracts.StatusAwaitingPayment)
	overdue.Filler = "B"
	overdue.FiatTransferDeadline = &past

	repo := newMemRepo(overdue)
	repo.mutate = func(o *contracts.Order) { o.Status = contracts.StatusAwaitingConfirmation }
	svc := newService(repo)

	result, err := svc.SweepTimeouts(context.Background(), "sweeper")
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 1, Skipped: 1}, result)
}

func TestService_SweepListError(t *testing.T) {
	repo := newMemRepo()
	repo.listErr = errors.New("db down")

	_, err := newService(repo).SweepTimeouts(context.Background(), "sweeper")
	assert.Error(t, err)
}
