package matchconfig

import "time"

// Config는 매칭/정산 정책 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Ranking    Ranking    `yaml:"ranking" json:"ranking"`
	Economics  Economics  `yaml:"economics" json:"economics"`
	Settlement Settlement `yaml:"settlement" json:"settlement"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// Ranking composite rank weights
type Ranking struct {
	WeightsPct RankingWeights `yaml:"weights_pct" json:"weights_pct"`
}

// RankingWeights in whole percent, must sum to 100
type RankingWeights struct {
	Price int `yaml:"price" json:"price"`
	Size  int `yaml:"size" json:"size"`
}

// Sum returns the total of all weights
func (w RankingWeights) Sum() int {
	return w.Price + w.Size
}

// Economics fee and candidate freshness
type Economics struct {
	FeeRate          string `yaml:"fee_rate" json:"fee_rate"` // decimal string, 예: "0.005"
	ExpiryBufferSecs int    `yaml:"expiry_buffer_secs" json:"expiry_buffer_secs"`
}

// Settlement escrow lifecycle settings
type Settlement struct {
	PaymentTimeoutSecs   int    `yaml:"payment_timeout_secs" json:"payment_timeout_secs"`
	MaxOrderDurationSecs int    `yaml:"max_order_duration_secs" json:"max_order_duration_secs"`
	DisputeResolver      string `yaml:"dispute_resolver" json:"dispute_resolver"`
}

// PolicySnapshot records which policy produced a decision
type PolicySnapshot struct {
	PolicyHash string    `json:"policy_hash"`
	PolicyYAML string    `json:"policy_yaml"`
	PolicyID   string    `json:"policy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
