package contracts

import "github.com/shopspring/decimal"

// MatchRequest is a trade request from the UI
type MatchRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Side        Side            `json:"side"`
	RequesterID string          `json:"requester_id"`
}

// Maker summarizes the matched order's creator
type Maker struct {
	Address         string  `json:"address"`
	DisplayName     string  `json:"display_name,omitempty"`
	ReputationScore int     `json:"reputation_score"`
	CompletionRate  float64 `json:"completion_rate"`
	IsVerified      bool    `json:"is_verified"`
}

// MakerOf builds the maker summary from an order
func MakerOf(o Order) Maker {
	return Maker{
		Address:         o.Creator,
		DisplayName:     o.DisplayName,
		ReputationScore: o.ReputationScore,
		CompletionRate:  o.CompletionRate,
		IsVerified:      o.IsVerified,
	}
}

// MatchResult is the best counter-order for a request, as of one snapshot.
// It reserves nothing: the order may be taken by someone else before the
// caller acts on it.
type MatchResult struct {
	Order    Order           `json:"matched_order"`
	Maker    Maker           `json:"maker"`
	Side     Side            `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Rate     decimal.Decimal `json:"rate"`
	Notional decimal.Decimal `json:"estimated_amount"`
	Fee      decimal.Decimal `json:"fee"`
	Total    decimal.Decimal `json:"total"`
}

// Estimate is a non-binding quote for live rate display
type Estimate struct {
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`
	FiatAmount    decimal.Decimal `json:"fiat_amount"`
	Fee           decimal.Decimal `json:"fee"`
	Total         decimal.Decimal `json:"total"`
	FiatCurrency  FiatCurrency    `json:"fiat_currency_code"`
	CurrencyLabel string          `json:"fiat_currency"`
}
