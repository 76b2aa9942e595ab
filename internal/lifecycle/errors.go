package lifecycle

import (
	"errors"
	"fmt"

	"github.com/wonny/p2pex/backend/internal/contracts"
)

var (
	// ErrInvalidTransition means the action is not legal from the order's status
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrUnauthorized means the actor may not perform the action
	ErrUnauthorized = errors.New("actor not authorized for transition")

	// ErrOrderExpired means the order's validity window closed before take
	ErrOrderExpired = errors.New("order expired")

	// ErrDeadlineNotElapsed means the fiat transfer deadline is still open
	ErrDeadlineNotElapsed = errors.New("fiat transfer deadline has not elapsed")
)

// TransitionError carries the rejected action and the pre-state
type TransitionError struct {
	Action Action
	From   contracts.Status
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Action, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
