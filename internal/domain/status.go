package domain

import "fmt"

// BookingStatus is the position of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusCheckedIn  BookingStatus = "CHECKED_IN"
	StatusCheckedOut BookingStatus = "CHECKED_OUT"
	StatusCancelled  BookingStatus = "CANCELLED"
	StatusRejected   BookingStatus = "REJECTED"
)

// PaymentStatus tracks the money side of a booking. It is coupled to the
// booking status (cancelling a paid booking refunds it) but moves on its
// own edges.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentFailed   PaymentStatus = "FAILED"
)

// statusTransitions is the booking state machine. A status maps to the set
// of statuses it may move to; anything not listed is an invalid transition.
// CANCELLED and REJECTED map to empty sets — they are terminal.
var statusTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:  {StatusCheckedOut},
	StatusCheckedOut: {},
	StatusCancelled:  {},
	StatusRejected:   {},
}

// IsValid reports whether s is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine allows moving from s
// to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status edges leave s. This is about
// the status graph only: CHECKED_OUT is terminal here yet still accepts
// payment events. Whether a booking is closed for date-blocking and payment
// purposes is IsActive's concern, and the two sets differ exactly at
// CHECKED_OUT. An unrecognized status is treated as terminal so that corrupt
// data can never be transitioned.
func (s BookingStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// IsActive reports whether a booking in this status blocks its dates and
// still accepts payment events. Cancelled and rejected bookings release
// their date range; every other status, including CHECKED_OUT, holds it.
func (s BookingStatus) IsActive() bool {
	return s != StatusCancelled && s != StatusRejected
}

// ParseBookingStatus converts a string into a BookingStatus.
// Returns ErrValidation for unrecognized values.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, raw)
	}
	return s, nil
}

// IsValid reports whether p is a recognized payment status.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}
