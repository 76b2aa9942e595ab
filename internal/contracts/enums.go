package contracts

import (
	"fmt"
	"strings"
)

// Side is buy or sell. The zero value is invalid.
type Side uint8

const (
	SideBuy Side = iota + 1
	SideSell
)

// ParseSide accepts "buy" / "sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// Valid reports whether s is buy or sell
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the counter side
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status mirrors the escrow contract's order status enum.
// It is a closed set: values outside the constants below are rejected
// when decoded.
type Status uint8

const (
	StatusCreated Status = iota + 1
	StatusAwaitingFiller
	StatusAwaitingPayment
	StatusAwaitingConfirmation
	StatusCompleted
	StatusDisputed
	StatusRefunded
	StatusCancelled
)

// AllStatuses lists every status in contract order
var AllStatuses = []Status{
	StatusCreated,
	StatusAwaitingFiller,
	StatusAwaitingPayment,
	StatusAwaitingConfirmation,
	StatusCompleted,
	StatusDisputed,
	StatusRefunded,
	StatusCancelled,
}

var statusNames = map[Status]string{
	StatusCreated:              "Created",
	StatusAwaitingFiller:       "AwaitingFiller",
	StatusAwaitingPayment:      "AwaitingPayment",
	StatusAwaitingConfirmation: "AwaitingConfirmation",
	StatusCompleted:            "Completed",
	StatusDisputed:             "Disputed",
	StatusRefunded:             "Refunded",
	StatusCancelled:            "Cancelled",
}

// ParseStatus parses the contract's status name
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if strings.EqualFold(name, s) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", s)
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FiatCurrency is the contract's fiat currency code.
// Codes beyond the named ones are the contract's Other(n) variant.
type FiatCurrency uint32

const (
	FiatUSD FiatCurrency = iota
	FiatEUR
	FiatARS
	FiatCOP
	FiatGBP
)

var fiatLabels = map[FiatCurrency]string{
	FiatUSD: "USD",
	FiatEUR: "EUR",
	FiatARS: "ARS",
	FiatCOP: "COP",
	FiatGBP: "GBP",
}

// Label returns the ISO code, or FIAT-<n> for unnamed codes
func (c FiatCurrency) Label() string {
	if label, ok := fiatLabels[c]; ok {
		return label
	}
	return fmt.Sprintf("FIAT-%d", uint32(c))
}

// PaymentMethod is the contract's payment method code
type PaymentMethod uint32

const (
	PaymentBankTransfer PaymentMethod = iota
	PaymentMobileWallet
	PaymentCash
)

var paymentLabels = map[PaymentMethod]string{
	PaymentBankTransfer: "Bank Transfer",
	PaymentMobileWallet: "Mobile Wallet",
	PaymentCash:         "Cash",
}

// Label returns the display name, or Method-<n> for unnamed codes
func (m PaymentMethod) Label() string {
	if label, ok := paymentLabels[m]; ok {
		return label
	}
	return fmt.Sprintf("Method-%d", uint32(m))
}
