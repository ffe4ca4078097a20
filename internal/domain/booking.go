// Package domain contains the core data types and business rules for the
// Staybook booking engine: date-interval math, pricing, and the booking
// lifecycle state machine. This package has no persistence or transport
// dependencies and is imported by every other internal package.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking is the aggregate this whole service exists to protect.
//
// All state changes go through the transition methods below; no caller may
// assign Status or Payment directly. Nights and TotalPrice are derived
// fields, recomputed by NewBooking and ApplyUpdate and never accepted from
// input. Version is the optimistic-lock counter bumped by every persisted
// write (see repo.BookingRepo).
type Booking struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	GuestID   uuid.UUID `json:"guest_id"`

	CheckIn  time.Time `json:"check_in"`  // date-resolution, inclusive
	CheckOut time.Time `json:"check_out"` // date-resolution, exclusive: the check-out night is free
	Guests   int       `json:"guests"`

	Nights     int             `json:"nights"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"` // copied from the listing at creation, frozen thereafter

	Status  BookingStatus `json:"status"`
	Payment PaymentStatus `json:"payment_status"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	Addons []Addon `json:"addons,omitempty"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBooking validates the request against the listing snapshot and builds
// a booking in its initial state (PENDING, payment PENDING) with derived
// nights and total price. The booking ID is assigned here and never reused.
func NewBooking(listing ListingSnapshot, guestID uuid.UUID, checkIn, checkOut time.Time, guests int, addons []Addon, now time.Time) (Booking, error) {
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return Booking{}, err
	}
	if err := listing.validateStay(nights, guests); err != nil {
		return Booking{}, err
	}
	total, err := ComputeTotal(nights, listing.PricePerNight, addons)
	if err != nil {
		return Booking{}, err
	}

	return Booking{
		ID:         uuid.New(),
		ListingID:  listing.ID,
		GuestID:    guestID,
		CheckIn:    DateOnly(checkIn),
		CheckOut:   DateOnly(checkOut),
		Guests:     guests,
		Nights:     nights,
		TotalPrice: total,
		Currency:   listing.Currency,
		Status:     StatusPending,
		Payment:    PaymentPending,
		Addons:     addons,
		Version:    1,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// SetStatus moves the booking along a plain status edge:
// PENDING→CONFIRMED, PENDING→REJECTED, CONFIRMED→CHECKED_IN,
// CHECKED_IN→CHECKED_OUT. Cancellation has its own method because it
// carries a reason and touches the payment state.
func (b *Booking) SetStatus(target BookingStatus, now time.Time) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: unknown booking status %q", ErrValidation, target)
	}
	if target == StatusCancelled {
		return fmt.Errorf("%w: use Cancel to cancel a booking", ErrInvalidTransition)
	}
	if !b.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot move booking from %s to %s", ErrInvalidTransition, b.Status, target)
	}
	b.Status = target
	b.UpdatedAt = now.UTC()
	return nil
}

// Cancel moves the booking to CANCELLED, recording the reason and the
// cancellation time. Only PENDING and CONFIRMED bookings can be cancelled;
// once the guest has checked in the stay can only run to completion. If the
// booking was already paid, the payment moves to REFUNDED so the coupled
// states stay consistent.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: cannot cancel booking in status %s", ErrInvalidTransition, b.Status)
	}
	ts := now.UTC()
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.CancelledAt = &ts
	if b.Payment == PaymentPaid {
		b.Payment = PaymentRefunded
	}
	b.UpdatedAt = ts
	return nil
}

// ConfirmPayment records a successful payment capture: payment moves
// PENDING→PAID. The booking must be CONFIRMED — a host has to accept the
// request before money is taken, and there is nothing to pay once the
// booking is terminal. The booking status itself does not change; check-in
// and check-out remain host-driven transitions.
func (b *Booking) ConfirmPayment(now time.Time) error {
	if b.Status != StatusConfirmed {
		return fmt.Errorf("%w: cannot capture payment for booking in status %s", ErrInvalidTransition, b.Status)
	}
	if b.Payment != PaymentPending {
		return fmt.Errorf("%w: payment already %s", ErrInvalidTransition, b.Payment)
	}
	b.Payment = PaymentPaid
	b.UpdatedAt = now.UTC()
	return nil
}

// FailPayment records a failed payment callback: payment moves to FAILED,
// the booking status is untouched. Allowed whenever the payment is still
// pending and the booking is not cancelled or rejected. A capture can fail
// after the guest has already checked in or out, and the callback must
// still be recorded.
func (b *Booking) FailPayment(now time.Time) error {
	if !b.Status.IsActive() {
		return fmt.Errorf("%w: cannot fail payment for booking in status %s", ErrInvalidTransition, b.Status)
	}
	if b.Payment != PaymentPending {
		return fmt.Errorf("%w: payment already %s", ErrInvalidTransition, b.Payment)
	}
	b.Payment = PaymentFailed
	b.UpdatedAt = now.UTC()
	return nil
}

// ApplyUpdate replaces the dates, guest count, and add-ons of a PENDING
// booking, re-deriving nights and total price from the listing snapshot
// exactly as NewBooking would. Any other status is rejected — once a host
// has confirmed, the agreed terms are fixed.
//
// The caller is responsible for re-running the availability check against
// the new range (excluding this booking's own reservation) before
// persisting; ApplyUpdate only enforces the state-machine and validation
// rules.
func (b *Booking) ApplyUpdate(listing ListingSnapshot, checkIn, checkOut time.Time, guests int, addons []Addon, now time.Time) error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: cannot update booking in status %s", ErrInvalidTransition, b.Status)
	}
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return err
	}
	if err := listing.validateStay(nights, guests); err != nil {
		return err
	}
	total, err := ComputeTotal(nights, listing.PricePerNight, addons)
	if err != nil {
		return err
	}

	b.CheckIn = DateOnly(checkIn)
	b.CheckOut = DateOnly(checkOut)
	b.Guests = guests
	b.Nights = nights
	b.TotalPrice = total
	b.Addons = addons
	b.UpdatedAt = now.UTC()
	return nil
}
