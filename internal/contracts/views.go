package contracts

// View is a presentation grouping of order statuses.
// Views are always computed from Status; nothing stores them.
type View string

const (
	ViewActive    View = "active"
	ViewCompleted View = "completed"
	ViewDisputed  View = "disputed" // disputed or closed-adverse
)

// ParseView returns the view for a query value
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewActive, ViewCompleted, ViewDisputed:
		return View(s), true
	default:
		return "", false
	}
}

// IsActive reports whether the order is still in flight
func (s Status) IsActive() bool {
	switch s {
	case StatusCreated, StatusAwaitingFiller, StatusAwaitingPayment, StatusAwaitingConfirmation:
		return true
	default:
		return false
	}
}

// IsCompleted reports whether the trade settled
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}

// IsDisputedOrClosed reports the adverse outcomes: disputed, cancelled, refunded
func (s Status) IsDisputedOrClosed() bool {
	switch s {
	case StatusDisputed, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave s.
// Disputed is excluded: a resolver ruling still moves it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

// In reports whether the status belongs to view v
func (s Status) In(v View) bool {
	switch v {
	case ViewActive:
		return s.IsActive()
	case ViewCompleted:
		return s.IsCompleted()
	case ViewDisputed:
		return s.IsDisputedOrClosed()
	default:
		return false
	}
}

// Filter returns the orders in view v, preserving order
func Filter(orders []Order, v View) []Order {
	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Status.In(v) {
			result = append(result, o)
		}
	}
	return result
}

// Active returns the in-flight orders
func Active(orders []Order) []Order {
	return Filter(orders, ViewActive)
}

// Completed returns the settled orders
func Completed(orders []Order) []Order {
	return Filter(orders, ViewCompleted)
}

// DisputedOrClosed returns disputed, cancelled and refunded orders
func DisputedOrClosed(orders []Order) []Order {
	return Filter(orders, ViewDisputed)
}
