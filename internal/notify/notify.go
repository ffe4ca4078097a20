// Package notify defines the hook invoked after every successful booking
// state transition. Actual delivery (email, push, in-app) belongs to the
// notification subsystem; this package only carries the event across the
// boundary.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// StatusChange describes one observed booking transition. OldStatus is empty
// for the creation event.
type StatusChange struct {
	BookingID  uuid.UUID
	ListingID  uuid.UUID
	OldStatus  domain.BookingStatus
	NewStatus  domain.BookingStatus
	OldPayment domain.PaymentStatus
	NewPayment domain.PaymentStatus
	At         time.Time
}

// Notifier receives booking transitions. Implementations must be safe for
// concurrent use. Callers invoke it fire-and-forget after the transition has
// been persisted; a notifier can never fail a booking operation.
type Notifier interface {
	BookingChanged(ctx context.Context, change StatusChange)
}

// LogNotifier writes each transition as a structured log line. It stands in
// for the real notification subsystem in development and doubles as an audit
// trail in production.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier constructs a LogNotifier writing to log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// BookingChanged logs the transition.
func (n *LogNotifier) BookingChanged(ctx context.Context, change StatusChange) {
	n.log.InfoContext(ctx, "booking changed",
		"booking_id", change.BookingID,
		"listing_id", change.ListingID,
		"old_status", string(change.OldStatus),
		"new_status", string(change.NewStatus),
		"old_payment", string(change.OldPayment),
		"new_payment", string(change.NewPayment),
	)
}
