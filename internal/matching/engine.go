package matching

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/pkg/logger"
)

var (
	// ErrInvalidAmount means the requested amount is not positive
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidSide means the side is neither buy nor sell
	ErrInvalidSide = errors.New("side must be buy or sell")
)

// Engine selects counter-orders from a snapshot.
// It holds no order state: every call reads only the slice it is given,
// so one Engine is safe for concurrent use.
// ⭐ SSOT: 매칭 결정 로직은 여기서만
type Engine struct {
	policy Policy
	now    func() time.Time
	logger *logger.Logger
}

// NewEngine creates a matching engine
func NewEngine(policy Policy, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		policy: policy,
		now:    time.Now,
		logger: log,
	}
}

// WithClock replaces the clock used for expiry checks
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Candidates returns the eligible orders for a request with exclusion counts.
// requesterID == "" disables self exclusion.
func (e *Engine) Candidates(orders []contracts.Order, amount decimal.Decimal, side contracts.Side, requesterID string) (Screening, error) {
	if err := validateRequest(amount, side); err != nil {
		return Screening{}, err
	}
	return screen(orders, amount, side, requesterID, e.now(), e.policy.ExpiryBuffer), nil
}

// Rank returns the eligible orders scored and sorted best first
func (e *Engine) Rank(orders []contracts.Order, amount decimal.Decimal, side contracts.Side, requesterID string) ([]Ranked, error) {
	screening, err := e.Candidates(orders, amount, side, requesterID)
	if err != nil {
		return nil, err
	}

	ranked := rank(screening.Eligible, amount, side, e.policy)

	e.logger.WithFields(map[string]interface{}{
		"side":       side.String(),
		"amount":     amount.String(),
		"candidates": len(orders),
		"eligible":   len(ranked),
		"excluded":   screening.Excluded,
	}).Debug("Ranked counter-orders")

	return ranked, nil
}

// FindBestMatch picks the best counter-order for a trade request.
// A nil result with a nil error means no liquidity.
func (e *Engine) FindBestMatch(orders []contracts.Order, amount decimal.Decimal, side contracts.Side, requesterID string) (*contracts.MatchResult, error) {
	ranked, err := e.Rank(orders, amount, side, requesterID)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	best := ranked[0].Order
	notional, fee, total := e.price(amount, best.Rate, side)

	return &contracts.MatchResult{
		Order:    best,
		Maker:    contracts.MakerOf(best),
		Side:     side,
		Amount:   amount,
		Rate:     best.Rate,
		Notional: notional,
		Fee:      fee,
		Total:    total,
	}, nil
}

// EstimateQuickTrade quotes the best available rate without excluding any requester.
// A nil result with a nil error means no liquidity.
func (e *Engine) EstimateQuickTrade(orders []contracts.Order, amount decimal.Decimal, side contracts.Side) (*contracts.Estimate, error) {
	ranked, err := e.Rank(orders, amount, side, "")
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	best := ranked[0].Order
	notional, fee, total := e.price(amount, best.Rate, side)

	return &contracts.Estimate{
		Amount:        amount,
		Rate:          best.Rate,
		FiatAmount:    notional,
		Fee:           fee,
		Total:         total,
		FiatCurrency:  best.FiatCurrency,
		CurrencyLabel: best.FiatCurrency.Label(),
	}, nil
}

// price computes notional, fee and total on the requested amount.
// Buyers pay the fee on top, sellers receive the notional net of it.
func (e *Engine) price(amount, rate decimal.Decimal, side contracts.Side) (notional, fee, total decimal.Decimal) {
	notional = amount.Mul(rate)
	fee = notional.Mul(e.policy.FeeRate)
	if side == contracts.SideBuy {
		total = notional.Add(fee)
	} else {
		total = notional.Sub(fee)
	}
	return notional, fee, total
}

func validateRequest(amount decimal.Decimal, side contracts.Side) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !side.Valid() {
		return ErrInvalidSide
	}
	return nil
}
