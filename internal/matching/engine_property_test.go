package matching

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// drawPool generates a mixed order pool around now, including malformed
// rows with a non-positive amount or rate
func drawPool(t *rapid.T) []contracts.Order {
	n := rapid.IntRange(0, 12).Draw(t, "n")
	creators := []string{"A", "B", "C", "D"}
	statuses := contracts.AllStatuses

	orders := make([]contracts.Order, 0, n)
	for i := 0; i < n; i++ {
		side := contracts.SideSell
		if rapid.Bool().Draw(t, fmt.Sprintf("buy-%d", i)) {
			side = contracts.SideBuy
		}
		orders = append(orders, contracts.Order{
			ID:              fmt.Sprintf("%d", i),
			Creator:         rapid.SampledFrom(creators).Draw(t, fmt.Sprintf("creator-%d", i)),
			Type:            side,
			Amount:          decimal.NewFromInt(rapid.Int64Range(1, 200).Draw(t, fmt.Sprintf("amount-%d", i))),
			Rate:            decimal.NewFromInt(rapid.Int64Range(900, 1000).Draw(t, fmt.Sprintf("rate-%d", i))),
			DurationSecs:    3600,
			Status:          rapid.SampledFrom(statuses).Draw(t, fmt.Sprintf("status-%d", i)),
			CreatedAt:       now.Add(-time.Duration(rapid.IntRange(0, 3700).Draw(t, fmt.Sprintf("age-%d", i))) * time.Second),
			ReputationScore: rapid.IntRange(0, 50).Draw(t, fmt.Sprintf("rep-%d", i)),
		})

		switch rapid.IntRange(0, 5).Draw(t, fmt.Sprintf("malformed-%d", i)) {
		case 0:
			orders[i].Rate = decimal.NewFromInt(rapid.Int64Range(-10, 0).Draw(t, fmt.Sprintf("bad-rate-%d", i)))
		case 1:
			orders[i].Amount = decimal.NewFromInt(rapid.Int64Range(-10, 0).Draw(t, fmt.Sprintf("bad-amount-%d", i)))
		}
	}
	return orders
}

func drawSide(t *rapid.T) contracts.Side {
	return rapid.SampledFrom([]contracts.Side{contracts.SideBuy, contracts.SideSell}).Draw(t, "side")
}

func TestProperty_MatchRespectsFilters(t *testing.T) {
	e := newTestEngine()

	rapid.Check(t, func(t *rapid.T) {
		orders := drawPool(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 200).Draw(t, "amount"))
		side := drawSide(t)
		requester := rapid.SampledFrom([]string{"A", "B", "Z"}).Draw(t, "requester")

		result, err := e.FindBestMatch(orders, amount, side, requester)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			return
		}

		o := result.Order
		if !o.Amount.IsPositive() || !o.Rate.IsPositive() {
			t.Fatalf("matched malformed order %s: amount %s rate %s", o.ID, o.Amount, o.Rate)
		}
		if o.Type == side {
			t.Fatalf("matched same side %s", side)
		}
		if o.Creator == requester {
			t.Fatalf("matched requester's own order %s", o.ID)
		}
		if o.Amount.GreaterThan(amount) {
			t.Fatalf("matched order %s larger than request: %s > %s", o.ID, o.Amount, amount)
		}
		if o.Status != contracts.StatusAwaitingFiller {
			t.Fatalf("matched order %s in status %s", o.ID, o.Status)
		}
		if o.RemainingLifetime(now) <= 120*time.Second {
			t.Fatalf("matched order %s within expiry buffer", o.ID)
		}
	})
}

func TestProperty_FeeAndTotalExact(t *testing.T) {
	e := newTestEngine()
	feeRate := decimal.RequireFromString("0.005")

	rapid.Check(t, func(t *rapid.T) {
		// Cents-precision amounts and rates
		amount := decimal.New(rapid.Int64Range(1, 10_000_000).Draw(t, "amountCents"), -2)
		rate := decimal.New(rapid.Int64Range(1, 10_000_000).Draw(t, "rateCents"), -2)
		side := drawSide(t)

		o := sellOrder("1", "B", "1", "1")
		o.Type = side.Opposite()
		o.Amount = amount
		o.Rate = rate

		result, err := e.FindBestMatch([]contracts.Order{o}, amount, side, "A")
		if err != nil || result == nil {
			t.Fatalf("expected a match, got %v, %v", result, err)
		}

		notional := amount.Mul(rate)
		fee := notional.Mul(feeRate)
		if !result.Fee.Equal(fee) {
			t.Fatalf("fee %s != %s", result.Fee, fee)
		}
		want := notional.Sub(fee)
		if side == contracts.SideBuy {
			want = notional.Add(fee)
		}
		if !result.Total.Equal(want) {
			t.Fatalf("total %s != %s", result.Total, want)
		}
	})
}

func TestProperty_FullFillBeatsBestPrice(t *testing.T) {
	e := newTestEngine()

	rapid.Check(t, func(t *rapid.T) {
		amount := rapid.Int64Range(2, 1000).Draw(t, "amount")
		bestRate := rapid.Int64Range(100, 1000).Draw(t, "bestRate")
		worse := rapid.Int64Range(1, 100).Draw(t, "worse")

		half := sellOrder("1", "B", "1", "1")
		half.Amount = decimal.NewFromInt(amount / 2)
		half.Rate = decimal.NewFromInt(bestRate)

		full := sellOrder("2", "C", "1", "1")
		full.Amount = decimal.NewFromInt(amount)
		full.Rate = decimal.NewFromInt(bestRate + worse)

		result, err := e.FindBestMatch([]contracts.Order{half, full}, decimal.NewFromInt(amount), contracts.SideBuy, "A")
		if err != nil || result == nil {
			t.Fatalf("expected a match, got %v, %v", result, err)
		}
		if result.Order.ID != "2" {
			t.Fatalf("expected the full-fill order, got %s", result.Order.ID)
		}
	})
}

func TestProperty_Idempotent(t *testing.T) {
	e := newTestEngine()

	rapid.Check(t, func(t *rapid.T) {
		orders := drawPool(t)
		amount := decimal.NewFromInt(rapid.Int64Range(1, 200).Draw(t, "amount"))
		side := drawSide(t)

		first, err1 := e.FindBestMatch(orders, amount, side, "A")
		second, err2 := e.FindBestMatch(orders, amount, side, "A")
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if (first == nil) != (second == nil) {
			t.Fatalf("results differ: %v vs %v", first, second)
		}
		if first != nil && first.Order.ID != second.Order.ID {
			t.Fatalf("matched %s then %s", first.Order.ID, second.Order.ID)
		}
	})
}
