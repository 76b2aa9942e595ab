package lifecycle

import (
	"time"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

// =============================================================================
// Transition table
// =============================================================================

// Role names who may perform an action
type Role string

const (
	RoleCreator  Role = "creator"
	RoleNonOwner Role = "non-creator"     // any address except the creator
	RolePayer    Role = "paying party"    // filler for sell orders, creator for buy orders
	RoleReceiver Role = "receiving party" // creator for sell orders, filler for buy orders
	RoleParty    Role = "creator or filler"
	RoleResolver Role = "dispute resolver"
	RoleAnyone   Role = "anyone"
)

// Rule is one row of the transition table
type Rule struct {
	Action Action             `json:"action"`
	From   []contracts.Status `json:"from"`
	To     []contracts.Status `json:"to"` // resolve has two outcomes
	Actor  Role               `json:"actor"`
}

// ⭐ SSOT: 주문 상태 전이 규칙은 이 테이블에만 정의
var rules = []Rule{
	{ActionCreate, []contracts.Status{contracts.StatusCreated}, []contracts.Status{contracts.StatusAwaitingFiller}, RoleCreator},
	{ActionTake, []contracts.Status{contracts.StatusAwaitingFiller}, []contracts.Status{contracts.StatusAwaitingPayment}, RoleNonOwner},
	{ActionSubmitPayment, []contracts.Status{contracts.StatusAwaitingPayment}, []contracts.Status{contracts.StatusAwaitingConfirmation}, RolePayer},
	{ActionConfirmPayment, []contracts.Status{contracts.StatusAwaitingConfirmation}, []contracts.Status{contracts.StatusCompleted}, RoleReceiver},
	{ActionDispute, []contracts.Status{contracts.StatusAwaitingPayment, contracts.StatusAwaitingConfirmation}, []contracts.Status{contracts.StatusDisputed}, RoleParty},
	{ActionResolveDispute, []contracts.Status{contracts.StatusDisputed}, []contracts.Status{contracts.StatusCompleted, contracts.StatusRefunded}, RoleResolver},
	{ActionTimeoutFiatTransfer, []contracts.Status{contracts.StatusAwaitingPayment}, []contracts.Status{contracts.StatusRefunded}, RoleAnyone},
	{ActionCancel, []contracts.Status{contracts.StatusAwaitingFiller}, []contracts.Status{contracts.StatusCancelled}, RoleCreator},
}

var rulesByAction = func() map[Action]Rule {
	m := make(map[Action]Rule, len(rules))
	for _, r := range rules {
		m[r.Action] = r
	}
	return m
}()

// Table returns a copy of the transition table
func Table() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func (r Rule) allows(s contracts.Status) bool {
	for _, from := range r.From {
		if from == s {
			return true
		}
	}
	return false
}

// =============================================================================
// Machine
// =============================================================================

// Config configures the state machine
type Config struct {
	DisputeResolver string        // only address allowed to resolve disputes
	PaymentTimeout  time.Duration // fiat transfer window granted on take
	MaxDuration     time.Duration // upper bound for order duration on create (0 = none)
}

// DefaultConfig returns the contract defaults
func DefaultConfig() Config {
	return Config{
		PaymentTimeout: 30 * time.Minute,
		MaxDuration:    7 * 24 * time.Hour,
	}
}

// Machine validates and applies lifecycle transitions.
// It is pure: the order passed in is never modified and nothing is persisted.
type Machine struct {
	cfg Config
}

// NewMachine creates a state machine
func NewMachine(cfg Config) *Machine {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = DefaultConfig().PaymentTimeout
	}
	return &Machine{cfg: cfg}
}

// Config returns the machine's configuration
func (m *Machine) Config() Config {
	return m.cfg
}

// Allowed lists the actions that are legal from status s, ignoring actor and time
func (m *Machine) Allowed(s contracts.Status) []Action {
	allowed := make([]Action, 0, 2)
	for _, r := range rules {
		if r.allows(s) {
			allowed = append(allowed, r.Action)
		}
	}
	return allowed
}

// Transition validates req against order at time now and returns the updated order.
// Checks run in order: status, actor, timing.
func (m *Machine) Transition(order contracts.Order, req Request, now time.Time) (contracts.Order, error) {
	rule, ok := rulesByAction[req.Action]
	if !ok || !rule.allows(order.Status) {
		return order, &TransitionError{Action: req.Action, From: order.Status, Err: ErrInvalidTransition}
	}

	if !m.authorized(order, rule.Actor, req.Actor) {
		return order, &TransitionError{Action: req.Action, From: order.Status, Err: ErrUnauthorized}
	}

	next := order
	switch req.Action {
	case ActionCreate:
		if err := order.Validate(m.cfg.MaxDuration); err != nil {
			return order, &TransitionError{Action: req.Action, From: order.Status, Err: err}
		}
		next.Status = contracts.StatusAwaitingFiller

	case ActionTake:
		if order.IsExpired(now) {
			return order, &TransitionError{Action: req.Action, From: order.Status, Err: ErrOrderExpired}
		}
		deadline := now.Add(m.cfg.PaymentTimeout)
		next.Filler = req.Actor
		next.FiatTransferDeadline = &deadline
		next.Status = contracts.StatusAwaitingPayment

	case ActionSubmitPayment:
		next.Status = contracts.StatusAwaitingConfirmation

	case ActionConfirmPayment:
		next.Status = contracts.StatusCompleted

	case ActionDispute:
		next.Status = contracts.StatusDisputed

	case ActionResolveDispute:
		if req.FiatTransferConfirmed {
			next.Status = contracts.StatusCompleted
		} else {
			next.Status = contracts.StatusRefunded
		}

	case ActionTimeoutFiatTransfer:
		if order.FiatTransferDeadline == nil || !order.FiatTransferDeadline.Before(now) {
			return order, &TransitionError{Action: req.Action, From: order.Status, Err: ErrDeadlineNotElapsed}
		}
		next.Status = contracts.StatusRefunded

	case ActionCancel:
		next.Status = contracts.StatusCancelled
	}

	return next, nil
}

func (m *Machine) authorized(order contracts.Order, role Role, actor string) bool {
	switch role {
	case RoleAnyone:
		return true
	case RoleCreator:
		return actor != "" && actor == order.Creator
	case RoleNonOwner:
		return actor != "" && actor != order.Creator
	case RolePayer:
		return actor != "" && actor == order.PayingParty()
	case RoleReceiver:
		return actor != "" && actor == order.ReceivingParty()
	case RoleParty:
		return order.IsParty(actor)
	case RoleResolver:
		return m.cfg.DisputeResolver != "" && actor == m.cfg.DisputeResolver
	default:
		return false
	}
}
