package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// Exclusion reasons reported by Candidates
const (
	ReasonSide     = "side"     // same side as the request
	ReasonStatus   = "status"   // not AwaitingFiller
	ReasonExpiring = "expiring" // expires within the buffer
	ReasonOversize = "oversize" // larger than the request, partial fills unsupported
	ReasonSelf     = "self"     // requester's own order
	ReasonInvalid  = "invalid"  // non-positive amount or rate
)

// Screening is the eligible set for one request
type Screening struct {
	Eligible []contracts.Order
	Excluded map[string]int // reason -> count
}

// screen applies the hard filters. requesterID == "" disables self exclusion.
// ⭐ SSOT: 매칭 후보 필터는 여기서만
func screen(orders []contracts.Order, amount decimal.Decimal, side contracts.Side, requesterID string, now time.Time, buffer time.Duration) Screening {
	result := Screening{
		Eligible: make([]contracts.Order, 0, len(orders)),
		Excluded: make(map[string]int),
	}

	want := side.Opposite()
	for i := range orders {
		o := &orders[i]
		if reason := checkOrder(o, amount, want, requesterID, now, buffer); reason != "" {
			result.Excluded[reason]++
			continue
		}
		result.Eligible = append(result.Eligible, *o)
	}

	return result
}

func checkOrder(o *contracts.Order, amount decimal.Decimal, want contracts.Side, requesterID string, now time.Time, buffer time.Duration) string {
	if !o.Amount.IsPositive() || !o.Rate.IsPositive() {
		return ReasonInvalid
	}
	if o.Type != want {
		return ReasonSide
	}
	if o.Status != contracts.StatusAwaitingFiller {
		return ReasonStatus
	}
	if !o.IsMatchable(now, buffer) {
		return ReasonExpiring
	}
	if o.Amount.GreaterThan(amount) {
		return ReasonOversize
	}
	if requesterID != "" && o.Creator == requesterID {
		return ReasonSelf
	}
	return ""
}
