package lifecycle

import (
	"fmt"
	"strings"
)

// Action is a lifecycle event submitted against an order
type Action string

const (
	ActionCreate              Action = "create"
	ActionTake                Action = "take"
	ActionSubmitPayment       Action = "submit_payment"
	ActionConfirmPayment      Action = "confirm_payment"
	ActionDispute             Action = "dispute"
	ActionResolveDispute      Action = "resolve_dispute"
	ActionTimeoutFiatTransfer Action = "timeout_fiat_transfer"
	ActionCancel              Action = "cancel"
)

// AllActions lists every action in table order
var AllActions = []Action{
	ActionCreate,
	ActionTake,
	ActionSubmitPayment,
	ActionConfirmPayment,
	ActionDispute,
	ActionResolveDispute,
	ActionTimeoutFiatTransfer,
	ActionCancel,
}

// ParseAction accepts the snake_case action name
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Request is one transition attempt
type Request struct {
	Action Action
	Actor  string

	// Resolver ruling for ActionResolveDispute:
	// true completes the trade, false refunds the creator.
	FiatTransferConfirmed bool
}
