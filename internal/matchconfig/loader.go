package matchconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wonny/p2pex/backend/internal/lifecycle"
	"github.com/wonny/p2pex/backend/internal/matching"
)

// Load reads the YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

// Parse decodes and validates a policy document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in policy, identical to config/matching/p2pex_default.yaml
func Default() *Config {
	return &Config{
		Meta:    Meta{PolicyID: "p2pex_default", Version: "1.0.0"},
		Ranking: Ranking{WeightsPct: RankingWeights{Price: 20, Size: 80}},
		Economics: Economics{
			FeeRate:          "0.005",
			ExpiryBufferSecs: 120,
		},
		Settlement: Settlement{
			PaymentTimeoutSecs:   1800,
			MaxOrderDurationSecs: 604800,
		},
	}
}

// MatchingPolicy converts the file to the engine policy
func (c *Config) MatchingPolicy() (matching.Policy, error) {
	fee, err := decimal.NewFromString(c.Economics.FeeRate)
	if err != nil {
		return matching.Policy{}, fmt.Errorf("economics.fee_rate: %w", err)
	}

	return matching.Policy{
		PriceWeight:  float64(c.Ranking.WeightsPct.Price) / 100,
		SizeWeight:   float64(c.Ranking.WeightsPct.Size) / 100,
		FeeRate:      fee,
		ExpiryBuffer: time.Duration(c.Economics.ExpiryBufferSecs) * time.Second,
	}, nil
}

// LifecycleConfig converts the file to the state machine config.
// A non-empty resolver overrides the file's dispute_resolver.
func (c *Config) LifecycleConfig(resolver string) lifecycle.Config {
	if resolver == "" {
		resolver = c.Settlement.DisputeResolver
	}
	return lifecycle.Config{
		DisputeResolver: resolver,
		PaymentTimeout:  time.Duration(c.Settlement.PaymentTimeoutSecs) * time.Second,
		MaxDuration:     time.Duration(c.Settlement.MaxOrderDurationSecs) * time.Second,
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewPolicySnapshot creates a snapshot for audit logs
func NewPolicySnapshot(cfg *Config, yamlData []byte) (*PolicySnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &PolicySnapshot{
		PolicyHash: hash,
		PolicyYAML: string(yamlData),
		PolicyID:   cfg.Meta.PolicyID,
		CreatedAt:  time.Now(),
	}, nil
}
