package matching

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// Ranked is a candidate with its scores
type Ranked struct {
	Order      contracts.Order `json:"order"`
	PriceScore float64         `json:"price_score"`
	SizeScore  float64         `json:"size_score"`
	TotalScore float64         `json:"total_score"`
	Rank       int             `json:"rank"`
}

// rank scores candidates and sorts them best first.
// Ties keep reputation descending, then input order.
func rank(candidates []contracts.Order, amount decimal.Decimal, side contracts.Side, p Policy) []Ranked {
	if len(candidates) == 0 {
		return nil
	}

	minRate, maxRate := candidates[0].Rate, candidates[0].Rate
	for _, o := range candidates[1:] {
		minRate = decimal.Min(minRate, o.Rate)
		maxRate = decimal.Max(maxRate, o.Rate)
	}
	span := maxRate.Sub(minRate)

	ranked := make([]Ranked, 0, len(candidates))
	for _, o := range candidates {
		price := priceScore(o.Rate, minRate, maxRate, span, side)
		size := sizeScore(o.Amount, amount)
		ranked = append(ranked, Ranked{
			Order:      o,
			PriceScore: price,
			SizeScore:  size,
			TotalScore: p.PriceWeight*price + p.SizeWeight*size,
		})
	}

	// Sort by total score (descending)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].Order.ReputationScore > ranked[j].Order.ReputationScore
	})

	// Assign ranks
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}

// priceScore is 1 for the best rate and 0 for the worst.
// A buyer wants the lowest rate, a seller the highest.
func priceScore(rate, minRate, maxRate, span decimal.Decimal, side contracts.Side) float64 {
	if span.IsZero() {
		return 1
	}
	if side == contracts.SideBuy {
		return maxRate.Sub(rate).Div(span).InexactFloat64()
	}
	return rate.Sub(minRate).Div(span).InexactFloat64()
}

// sizeScore rewards orders that fill more of the request
func sizeScore(orderAmount, requested decimal.Decimal) float64 {
	ratio := orderAmount.Div(requested).InexactFloat64()
	return math.Min(1, math.Max(0, ratio))
}
