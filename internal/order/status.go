package order

import "errors"

type Status string

const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

var ErrInvalidTransition = errors.New("invalid payment status transition")

// CanTransition reports whether an order in s may move to next.
// Pending is the only non-terminal status.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusSuccess || next == StatusFailed)
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Display is the status label used in customer notifications.
func (s Status) Display() string {
	if s == StatusSuccess {
		return "Paid"
	}
	return "Pending"
}
