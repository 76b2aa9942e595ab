package matchconfig

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/p2pex/backend/internal/matching"
)

func TestLoad(t *testing.T) {
	path := "../../config/matching/p2pex_default.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	// 파일과 내장 기본값이 동일해야 함
	assert.Equal(t, Default(), cfg)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	hash2, _ := Hash(Default())
	assert.Equal(t, hash, hash2, "hash not deterministic")
}

func TestDefault_MatchesEngineDefaults(t *testing.T) {
	policy, err := Default().MatchingPolicy()
	require.NoError(t, err)

	want := matching.DefaultPolicy()
	assert.InDelta(t, want.PriceWeight, policy.PriceWeight, 1e-12)
	assert.InDelta(t, want.SizeWeight, policy.SizeWeight, 1e-12)
	assert.True(t, want.FeeRate.Equal(policy.FeeRate))
	assert.Equal(t, want.ExpiryBuffer, policy.ExpiryBuffer)
	assert.NoError(t, policy.Validate())
}

func TestLifecycleConfig(t *testing.T) {
	cfg := Default()
	cfg.Settlement.DisputeResolver = "file-resolver"

	lc := cfg.LifecycleConfig("")
	assert.Equal(t, "file-resolver", lc.DisputeResolver)
	assert.Equal(t, 30*time.Minute, lc.PaymentTimeout)
	assert.Equal(t, 7*24*time.Hour, lc.MaxDuration)

	assert.Equal(t, "env-resolver", cfg.LifecycleConfig("env-resolver").DisputeResolver)
}

func TestParse_UnknownField(t *testing.T) {
	doc := []byte(`
meta:
  policy_id: x
ranking:
  weights_pct: {price: 20, size: 80, reputation: 0}
`)
	_, err := Parse(doc)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"default", func(c *Config) {}, ""},
		{"missing id", func(c *Config) { c.Meta.PolicyID = "" }, "meta.policy_id"},
		{"weights sum", func(c *Config) { c.Ranking.WeightsPct.Size = 70 }, "ranking.weights_pct"},
		{"negative weight", func(c *Config) { c.Ranking.WeightsPct = RankingWeights{Price: -10, Size: 110} }, "ranking.weights_pct"},
		{"bad fee", func(c *Config) { c.Economics.FeeRate = "half" }, "economics.fee_rate"},
		{"fee too high", func(c *Config) { c.Economics.FeeRate = "1.5" }, "economics.fee_rate"},
		{"no payment window", func(c *Config) { c.Settlement.PaymentTimeoutSecs = 0 }, "settlement.payment_timeout_secs"},
		{"duration under buffer", func(c *Config) { c.Settlement.MaxOrderDurationSecs = 60 }, "settlement.max_order_duration_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Ranking.WeightsPct = RankingWeights{Price: 60, Size: 40}
	cfg.Settlement.PaymentTimeoutSecs = 300

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"NO_RESOLVER", "PRICE_OVER_SIZE", "SHORT_PAYMENT_WINDOW"}, codes)
}

func TestPolicySnapshot(t *testing.T) {
	snapshot, err := NewPolicySnapshot(Default(), []byte("yaml"))
	require.NoError(t, err)
	assert.Equal(t, "p2pex_default", snapshot.PolicyID)
	assert.Len(t, snapshot.PolicyHash, 64)
}

func TestMatchingPolicy_BadFee(t *testing.T) {
	cfg := Default()
	cfg.Economics.FeeRate = "x"
	_, err := cfg.MatchingPolicy()
	assert.Error(t, err)

	cfg.Economics.FeeRate = "0.01"
	p, err := cfg.MatchingPolicy()
	require.NoError(t, err)
	assert.True(t, p.FeeRate.Equal(decimal.RequireFromString("0.01")))
}
