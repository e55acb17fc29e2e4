package core

// Status is an order's position in the fulfillment lifecycle.
type Status string

const (
	StatusReceived       Status = "received"
	StatusConfirmed      Status = "confirmed"
	StatusInKitchen      Status = "in_kitchen"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// allowedTransitions is the only legal forward path plus early cancellation.
// Anything not listed here (reverse moves, skips, moves out of a terminal
// state) is rejected.
var allowedTransitions = map[Status][]Status{
	StatusReceived:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusInKitchen, StatusCancelled},
	StatusInKitchen: {StatusReadyForPickup},

	StatusReadyForPickup: {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusConfirmed, StatusInKitchen,
		StatusReadyForPickup, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether an order in this status may still be cancelled.
// Once the kitchen has started the order it must run to completion.
func (s Status) Cancellable() bool {
	return s == StatusReceived || s == StatusConfirmed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
