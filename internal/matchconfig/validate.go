package matchconfig

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Ranking ===
	w := cfg.Ranking.WeightsPct
	if w.Price < 0 || w.Size < 0 {
		return ValidationError{"ranking.weights_pct", "must be >= 0"}
	}
	if w.Sum() != 100 {
		return ValidationError{"ranking.weights_pct", fmt.Sprintf("must sum to 100, got %d", w.Sum())}
	}

	// === Economics ===
	fee, err := decimal.NewFromString(cfg.Economics.FeeRate)
	if err != nil {
		return ValidationError{"economics.fee_rate", "must be a decimal"}
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ValidationError{"economics.fee_rate", "must be in [0, 1)"}
	}
	if cfg.Economics.ExpiryBufferSecs < 0 {
		return ValidationError{"economics.expiry_buffer_secs", "must be >= 0"}
	}

	// === Settlement ===
	s := cfg.Settlement
	if s.PaymentTimeoutSecs <= 0 {
		return ValidationError{"settlement.payment_timeout_secs", "must be > 0"}
	}
	if s.MaxOrderDurationSecs <= 0 {
		return ValidationError{"settlement.max_order_duration_secs", "must be > 0"}
	}
	if s.MaxOrderDurationSecs <= cfg.Economics.ExpiryBufferSecs {
		return ValidationError{"settlement.max_order_duration_secs", "must exceed economics.expiry_buffer_secs"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Settlement.DisputeResolver == "" {
		warnings = append(warnings, Warning{
			Code:    "NO_RESOLVER",
			Message: "dispute_resolver empty: disputes cannot be resolved until DISPUTE_RESOLVER is set",
		})
	}

	if cfg.Ranking.WeightsPct.Price > cfg.Ranking.WeightsPct.Size {
		warnings = append(warnings, Warning{
			Code:    "PRICE_OVER_SIZE",
			Message: "price weight above size weight: small orders at the best rate will beat full fills",
		})
	}

	if cfg.Settlement.PaymentTimeoutSecs < 600 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_PAYMENT_WINDOW",
			Message: "payment window under 10 min: bank transfers may not clear in time",
		})
	}

	return warnings
}
