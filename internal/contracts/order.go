package contracts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is an escrow order as observed from the settlement contract
// ⭐ SSOT: 컨트랙트 주문 정보는 이 구조체로만 전달
type Order struct {
	ID      string `json:"id"`
	Creator string `json:"created_by"`
	Filler  string `json:"filler,omitempty"` // empty until a counterparty takes the order

	Type          Side            `json:"type"` // from the creator's perspective
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"` // fiat per token unit
	FiatCurrency  FiatCurrency    `json:"fiat_currency_code"`
	PaymentMethod PaymentMethod   `json:"payment_method_code"`
	DurationSecs  int64           `json:"duration_secs"`

	Status               Status     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	FiatTransferDeadline *time.Time `json:"fiat_transfer_deadline,omitempty"`

	// Maker reputation. Supplied by the caller and untrusted: used for
	// tie-breaking and display only, never for eligibility.
	DisplayName     string  `json:"display_name,omitempty"`
	IsVerified      bool    `json:"is_verified"`
	ReputationScore int     `json:"reputation_score"`
	CompletionRate  float64 `json:"completion_rate"`
}

// ExpiresAt returns the end of the order's validity window
func (o *Order) ExpiresAt() time.Time {
	return o.CreatedAt.Add(time.Duration(o.DurationSecs) * time.Second)
}

// RemainingLifetime returns how long the order stays valid after now
func (o *Order) RemainingLifetime(now time.Time) time.Duration {
	return o.ExpiresAt().Sub(now)
}

// IsExpired reports whether the validity window has closed
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiresAt().After(now)
}

// IsMatchable reports whether the order can be offered as a counter-order:
// open for fills and not expiring within buffer.
func (o *Order) IsMatchable(now time.Time, buffer time.Duration) bool {
	if o.Status != StatusAwaitingFiller || o.DurationSecs <= 0 {
		return false
	}
	return o.RemainingLifetime(now) > buffer
}

// Notional returns amount × rate in fiat
func (o *Order) Notional() decimal.Decimal {
	return o.Amount.Mul(o.Rate)
}

// IsParty reports whether actor is the creator or the filler
func (o *Order) IsParty(actor string) bool {
	return actor != "" && (actor == o.Creator || actor == o.Filler)
}

// PayingParty returns who sends fiat.
// A sell order locks the creator's tokens, so the filler pays fiat;
// a buy order locks the filler's tokens, so the creator pays.
func (o *Order) PayingParty() string {
	if o.Type == SideSell {
		return o.Filler
	}
	return o.Creator
}

// ReceivingParty returns who receives fiat and confirms the payment
func (o *Order) ReceivingParty() string {
	if o.Type == SideSell {
		return o.Creator
	}
	return o.Filler
}

// DurationLabel returns the display label of the order's duration
func (o *Order) DurationLabel() string {
	return DurationLabel(o.DurationSecs)
}

// Validate checks the creation invariants.
// maxDuration <= 0 disables the upper bound.
func (o *Order) Validate(maxDuration time.Duration) error {
	if o.ID == "" {
		return ValidationError{Field: "id", Message: "required"}
	}
	if o.Creator == "" {
		return ValidationError{Field: "created_by", Message: "required"}
	}
	if !o.Type.Valid() {
		return ValidationError{Field: "type", Message: "must be buy or sell"}
	}
	if !o.Amount.IsPositive() {
		return ValidationError{Field: "amount", Message: "must be > 0"}
	}
	if !o.Rate.IsPositive() {
		return ValidationError{Field: "rate", Message: "must be > 0"}
	}
	if o.DurationSecs <= 0 {
		return ValidationError{Field: "duration_secs", Message: "must be > 0"}
	}
	if maxDuration > 0 && time.Duration(o.DurationSecs)*time.Second > maxDuration {
		return ValidationError{Field: "duration_secs", Message: fmt.Sprintf("must be <= %d", int64(maxDuration.Seconds()))}
	}
	return nil
}

// ValidationError describes an order field that breaks an invariant
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var durationLabels = map[int64]string{
	900:    "15 min",
	1800:   "30 min",
	3600:   "1 hour",
	86400:  "1 day",
	259200: "3 days",
	604800: "7 days",
}

// DurationLabel maps well-known durations to labels, others to "<n>s"
func DurationLabel(durationSecs int64) string {
	if label, ok := durationLabels[durationSecs]; ok {
		return label
	}
	return fmt.Sprintf("%ds", durationSecs)
}
