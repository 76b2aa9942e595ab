package orderbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// ErrOrderNotFound is returned when the mirror has no such order
var ErrOrderNotFound = errors.New("order not found")

// Repository is the Postgres mirror of the escrow contract's orders
// ⭐ SSOT: p2p.orders 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new order repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Name implements Source
func (r *Repository) Name() string {
	return "postgres"
}

const orderColumns = `
	order_id, creator, filler, side, amount::text, rate::text,
	fiat_currency_code, payment_method_code, duration_secs, status,
	created_at, fiat_transfer_deadline,
	display_name, is_verified, reputation_score, completion_rate`

// LoadOrders implements Source: every mirrored order, newest first
func (r *Repository) LoadOrders(ctx context.Context) ([]contracts.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM p2p.orders
		ORDER BY created_at DESC, order_id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]contracts.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// GetOrder retrieves an order by ID
func (r *Repository) GetOrder(ctx context.Context, orderID string) (contracts.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM p2p.orders
		WHERE order_id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return contracts.Order{}, err
	}

	return order, nil
}

// ListTimedOut returns orders awaiting payment whose fiat deadline is before now
func (r *Repository) ListTimedOut(ctx context.Context, now time.Time) ([]contracts.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM p2p.orders
		WHERE status = $1 AND fiat_transfer_deadline < $2
		ORDER BY fiat_transfer_deadline ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.StatusAwaitingPayment.String(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query timed out orders: %w", err)
	}
	defer rows.Close()

	orders := make([]contracts.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// UpsertOrders mirrors chain orders. The chain is authoritative: every field is overwritten.
func (r *Repository) UpsertOrders(ctx context.Context, orders []contracts.Order) error {
	if len(orders) == 0 {
		return nil
	}

	query := `
		INSERT INTO p2p.orders (
			order_id, creator, filler, side, amount, rate,
			fiat_currency_code, payment_method_code, duration_secs, status,
			created_at, fiat_transfer_deadline,
			display_name, is_verified, reputation_score, completion_rate, updated_at
		) VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			filler = EXCLUDED.filler,
			status = EXCLUDED.status,
			fiat_transfer_deadline = EXCLUDED.fiat_transfer_deadline,
			display_name = EXCLUDED.display_name,
			is_verified = EXCLUDED.is_verified,
			reputation_score = EXCLUDED.reputation_score,
			completion_rate = EXCLUDED.completion_rate,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(query,
			o.ID, o.Creator, o.Filler, o.Type.String(), o.Amount.String(), o.Rate.String(),
			int64(o.FiatCurrency), int64(o.PaymentMethod), o.DurationSecs, o.Status.String(),
			o.CreatedAt, o.FiatTransferDeadline,
			o.DisplayName, o.IsVerified, o.ReputationScore, o.CompletionRate,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range orders {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert order %s: %w", orders[i].ID, err)
		}
	}

	return nil
}

// InsertOrder records a newly created order and its create transition.
// It never overwrites: it reports false when the id is already mirrored.
func (r *Repository) InsertOrder(ctx context.Context, o contracts.Order, actor string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		INSERT INTO p2p.orders (
			order_id, creator, filler, side, amount, rate,
			fiat_currency_code, payment_method_code, duration_secs, status,
			created_at, fiat_transfer_deadline,
			display_name, is_verified, reputation_score, completion_rate, updated_at
		) VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (order_id) DO NOTHING
	`,
		o.ID, o.Creator, o.Filler, o.Type.String(), o.Amount.String(), o.Rate.String(),
		int64(o.FiatCurrency), int64(o.PaymentMethod), o.DurationSecs, o.Status.String(),
		o.CreatedAt, o.FiatTransferDeadline,
		o.DisplayName, o.IsVerified, o.ReputationScore, o.CompletionRate,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO p2p.order_transitions (order_id, action, actor, from_status, to_status)
		VALUES ($1, 'create', $2, $3, $4)
	`, o.ID, actor, contracts.StatusCreated.String(), o.Status.String())
	if err != nil {
		return false, fmt.Errorf("failed to record transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit order %s: %w", o.ID, err)
	}

	return true, nil
}

// CompareAndSwap writes next only if the stored order still matches prev's
// status and filler, and records the transition. It reports whether it applied.
func (r *Repository) CompareAndSwap(ctx context.Context, prev, next contracts.Order, action, actor string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE p2p.orders
		SET status = $1, filler = $2, fiat_transfer_deadline = $3, updated_at = NOW()
		WHERE order_id = $4 AND status = $5 AND filler = $6
	`,
		next.Status.String(), next.Filler, next.FiatTransferDeadline,
		prev.ID, prev.Status.String(), prev.Filler,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order %s: %w", prev.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO p2p.order_transitions (order_id, action, actor, from_status, to_status)
		VALUES ($1, $2, $3, $4, $5)
	`, prev.ID, action, actor, prev.Status.String(), next.Status.String())
	if err != nil {
		return false, fmt.Errorf("failed to record transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transition: %w", err)
	}

	return true, nil
}

// scanOrder reads one row selected with orderColumns
func scanOrder(row pgx.Row) (contracts.Order, error) {
	var (
		o                     contracts.Order
		side, status          string
		amount, rate          string
		fiatCode, paymentCode int64
		deadline              *time.Time
	)

	err := row.Scan(
		&o.ID, &o.Creator, &o.Filler, &side, &amount, &rate,
		&fiatCode, &paymentCode, &o.DurationSecs, &status,
		&o.CreatedAt, &deadline,
		&o.DisplayName, &o.IsVerified, &o.ReputationScore, &o.CompletionRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("failed to scan order: %w", err)
	}

	if o.Type, err = contracts.ParseSide(side); err != nil {
		return o, fmt.Errorf("order %s: %w", o.ID, err)
	}
	if o.Status, err = contracts.ParseStatus(status); err != nil {
		return o, fmt.Errorf("order %s: %w", o.ID, err)
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return o, fmt.Errorf("order %s amount: %w", o.ID, err)
	}
	if o.Rate, err = decimal.NewFromString(rate); err != nil {
		return o, fmt.Errorf("order %s rate: %w", o.ID, err)
	}
	o.FiatCurrency = contracts.FiatCurrency(fiatCode)
	o.PaymentMethod = contracts.PaymentMethod(paymentCode)
	o.FiatTransferDeadline = deadline

	return o, nil
}
