package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the ranking weights and trade economics
type Policy struct {
	PriceWeight  float64         // 가격 점수 가중치 (기본: 0.2)
	SizeWeight   float64         // 수량 점수 가중치 (기본: 0.8)
	FeeRate      decimal.Decimal // 거래 수수료율 (기본: 0.005)
	ExpiryBuffer time.Duration   // 만료 임박 주문 제외 (기본: 120s)
}

// DefaultPolicy returns the production matching policy
func DefaultPolicy() Policy {
	return Policy{
		PriceWeight:  0.2,
		SizeWeight:   0.8,
		FeeRate:      decimal.RequireFromString("0.005"),
		ExpiryBuffer: 120 * time.Second,
	}
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.PriceWeight < 0 || p.SizeWeight < 0 {
		return fmt.Errorf("weights must be >= 0")
	}
	// Allow small floating point error
	if math.Abs(p.PriceWeight+p.SizeWeight-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %.4f", p.PriceWeight+p.SizeWeight)
	}
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate must be in [0, 1), got %s", p.FeeRate)
	}
	if p.ExpiryBuffer < 0 {
		return fmt.Errorf("expiry buffer must be >= 0")
	}
	return nil
}
