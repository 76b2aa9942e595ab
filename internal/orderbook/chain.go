package orderbook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// ChainOrder is an order as exposed by the escrow contract indexer.
// Timestamps are unix seconds; amounts are integer token units.
type ChainOrder struct {
	OrderID              json.Number     `json:"order_id"`
	Creator              string          `json:"creator"`
	Filler               string          `json:"filler,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	ExchangeRate         decimal.Decimal `json:"exchange_rate"`
	FromCrypto           bool            `json:"from_crypto"`
	FiatCurrencyCode     uint32          `json:"fiat_currency_code"`
	PaymentMethodCode    uint32          `json:"payment_method_code"`
	Status               string          `json:"status"`
	CreatedAt            int64           `json:"created_at"`
	Deadline             int64           `json:"deadline"`
	FiatTransferDeadline *int64          `json:"fiat_transfer_deadline,omitempty"`

	// Off-chain maker profile, when the indexer has one
	DisplayName     string  `json:"display_name,omitempty"`
	IsVerified      bool    `json:"is_verified,omitempty"`
	ReputationScore int     `json:"reputation_score,omitempty"`
	CompletionRate  float64 `json:"completion_rate,omitempty"`
}

// ToOrder maps a chain order to the domain order.
// Rows with a non-positive amount or rate are rejected.
// from_crypto means the creator sells tokens; duration is deadline - created_at.
func (c ChainOrder) ToOrder() (contracts.Order, error) {
	if c.OrderID == "" {
		return contracts.Order{}, fmt.Errorf("order_id missing")
	}

	if !c.Amount.IsPositive() {
		return contracts.Order{}, fmt.Errorf("order %s: %w", c.OrderID, contracts.ValidationError{Field: "amount", Message: "must be > 0"})
	}
	if !c.ExchangeRate.IsPositive() {
		return contracts.Order{}, fmt.Errorf("order %s: %w", c.OrderID, contracts.ValidationError{Field: "exchange_rate", Message: "must be > 0"})
	}

	status, err := contracts.ParseStatus(c.Status)
	if err != nil {
		return contracts.Order{}, fmt.Errorf("order %s: %w", c.OrderID, err)
	}

	side := contracts.SideBuy
	if c.FromCrypto {
		side = contracts.SideSell
	}

	duration := c.Deadline - c.CreatedAt
	if duration < 0 {
		duration = 0
	}

	o := contracts.Order{
		ID:              c.OrderID.String(),
		Creator:         c.Creator,
		Filler:          c.Filler,
		Type:            side,
		Amount:          c.Amount,
		Rate:            c.ExchangeRate,
		FiatCurrency:    contracts.FiatCurrency(c.FiatCurrencyCode),
		PaymentMethod:   contracts.PaymentMethod(c.PaymentMethodCode),
		DurationSecs:    duration,
		Status:          status,
		CreatedAt:       time.Unix(c.CreatedAt, 0).UTC(),
		DisplayName:     c.DisplayName,
		IsVerified:      c.IsVerified,
		ReputationScore: c.ReputationScore,
		CompletionRate:  c.CompletionRate,
	}
	if c.FiatTransferDeadline != nil {
		deadline := time.Unix(*c.FiatTransferDeadline, 0).UTC()
		o.FiatTransferDeadline = &deadline
	}

	return o, nil
}
