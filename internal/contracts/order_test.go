package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOrder() Order {
	return Order{
		ID:           "1",
		Creator:      "A",
		Type:         SideSell,
		Amount:       decimal.NewFromInt(100),
		Rate:         decimal.NewFromFloat(0.95),
		FiatCurrency: FiatUSD,
		DurationSecs: 3600,
		Status:       StatusAwaitingFiller,
		CreatedAt:    baseTime,
	}
}

func TestOrder_IsMatchable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Order)
		now    time.Time
		want   bool
	}{
		{"fresh", func(o *Order) {}, baseTime, true},
		{"just outside buffer", func(o *Order) {}, baseTime.Add(3600*time.Second - 121*time.Second), true},
		{"exactly at buffer", func(o *Order) {}, baseTime.Add(3600*time.Second - 120*time.Second), false},
		{"expired", func(o *Order) {}, baseTime.Add(2 * time.Hour), false},
		{"taken", func(o *Order) { o.Status = StatusAwaitingPayment }, baseTime, false},
		{"zero duration", func(o *Order) { o.DurationSecs = 0 }, baseTime, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOrder()
			tt.mutate(&o)
			assert.Equal(t, tt.want, o.IsMatchable(tt.now, 120*time.Second))
		})
	}
}

func TestOrder_Parties(t *testing.T) {
	sell := sampleOrder()
	sell.Filler = "B"
	assert.Equal(t, "B", sell.PayingParty())
	assert.Equal(t, "A", sell.ReceivingParty())

	buy := sell
	buy.Type = SideBuy
	assert.Equal(t, "A", buy.PayingParty())
	assert.Equal(t, "B", buy.ReceivingParty())

	assert.True(t, sell.IsParty("A"))
	assert.True(t, sell.IsParty("B"))
	assert.False(t, sell.IsParty("C"))
	fresh := sampleOrder()
	assert.False(t, fresh.IsParty(""))
}

func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Order)
		field  string
	}{
		{"valid", func(o *Order) {}, ""},
		{"missing creator", func(o *Order) { o.Creator = "" }, "created_by"},
		{"zero amount", func(o *Order) { o.Amount = decimal.Zero }, "amount"},
		{"negative rate", func(o *Order) { o.Rate = decimal.NewFromInt(-1) }, "rate"},
		{"zero duration", func(o *Order) { o.DurationSecs = 0 }, "duration_secs"},
		{"too long", func(o *Order) { o.DurationSecs = 8 * 86400 }, "duration_secs"},
		{"bad side", func(o *Order) { o.Type = 0 }, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOrder()
			tt.mutate(&o)
			err := o.Validate(7 * 24 * time.Hour)
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

func TestOrder_Notional(t *testing.T) {
	o := sampleOrder()
	assert.True(t, o.Notional().Equal(decimal.NewFromInt(95)))
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "15 min", DurationLabel(900))
	assert.Equal(t, "1 hour", DurationLabel(3600))
	assert.Equal(t, "7 days", DurationLabel(604800))
	assert.Equal(t, "42s", DurationLabel(42))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "ARS", FiatARS.Label())
	assert.Equal(t, "FIAT-9", FiatCurrency(9).Label())
	assert.Equal(t, "Mobile Wallet", PaymentMobileWallet.Label())
	assert.Equal(t, "Method-7", PaymentMethod(7).Label())
}

func TestOrder_JSON(t *testing.T) {
	o := sampleOrder()
	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"sell"`)
	assert.Contains(t, string(data), `"status":"AwaitingFiller"`)

	var decoded Order
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, o.Status, decoded.Status)
	assert.True(t, o.Amount.Equal(decoded.Amount))

	err = json.Unmarshal([]byte(`{"status":"Pending"}`), &decoded)
	assert.Error(t, err)
}
