package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/trace"

	"github.com/pcormier/staybook/backend/internal/domain"
	"github.com/pcormier/staybook/backend/internal/lock"
	"github.com/pcormier/staybook/backend/internal/notify"
	"github.com/pcormier/staybook/backend/internal/repo"
)

// Number of times a load-transition-write sequence is retried after losing
// an optimistic-concurrency race, and the base of the fibonacci backoff
// between attempts. Races are rare because writers hold the per-listing
// lock, so a small bound is plenty.
const (
	casMaxRetries = 3
	casBaseDelay  = 25 * time.Millisecond
)

// DefaultLockTimeout bounds how long an operation waits for a listing's
// lock before failing with domain.ErrLockTimeout.
const DefaultLockTimeout = 3 * time.Second

// BookingService is the coordinator for all booking mutations. It owns the
// only piece of shared mutable state in the engine — the per-listing active
// booking set — and guards it with a per-listing lock so that the
// conflict-check-then-write sequence is atomic per listing while operations
// on different listings run fully in parallel.
//
// Under concurrent creates for the same listing with overlapping dates, at
// most one wins; the rest receive domain.ErrConflict, never a silent double
// write.
type BookingService struct {
	listings repo.ListingRepo
	bookings repo.BookingRepo
	avail    *AvailabilityService
	locks    *lock.Keyed
	notifier notify.Notifier
	log      *slog.Logger

	lockTimeout time.Duration
}

// NewBookingService constructs the coordinator. Pass lockTimeout <= 0 to use
// DefaultLockTimeout.
func NewBookingService(
	listings repo.ListingRepo,
	bookings repo.BookingRepo,
	avail *AvailabilityService,
	locks *lock.Keyed,
	notifier notify.Notifier,
	log *slog.Logger,
	lockTimeout time.Duration,
) *BookingService {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &BookingService{
		listings:    listings,
		bookings:    bookings,
		avail:       avail,
		locks:       locks,
		notifier:    notifier,
		log:         log,
		lockTimeout: lockTimeout,
	}
}

// CreateBookingInput carries everything needed to create a booking. The
// actor is pre-authorized by the caller; it is threaded through for logging
// only.
type CreateBookingInput struct {
	ListingID uuid.UUID
	GuestID   uuid.UUID
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
	Addons    []domain.Addon
	Actor     domain.Actor
}

// UpdateBookingInput carries the replacement dates, guest count, and add-ons
// for an update of a PENDING booking.
type UpdateBookingInput struct {
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
	Addons   []domain.Addon
	Actor    domain.Actor
}

// Create validates the request against the listing, then — under the
// listing's lock — checks availability and inserts the booking in its
// initial (PENDING, payment PENDING) state.
//
// Returns domain.ErrNotFound for an unknown listing, domain.ErrValidation
// for a bad range/guest count/add-ons, domain.ErrConflict when the range
// overlaps an active booking, and domain.ErrLockTimeout when the listing
// lock could not be acquired in time. Nothing is persisted on any failure.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	listing, err := s.listings.GetSnapshot(ctx, in.ListingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	// Validation and pricing are pure; do them before taking the lock so
	// garbage requests never serialize behind real ones.
	booking, err := domain.NewBooking(listing, in.GuestID, in.CheckIn, in.CheckOut, in.Guests, in.Addons, time.Now())
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	release, err := s.acquireListing(ctx, in.ListingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}
	defer release()

	conflicts, err := s.avail.FindConflicts(ctx, in.ListingID, booking.CheckIn, booking.CheckOut, uuid.Nil)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}
	if len(conflicts) > 0 {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w: overlaps %d active booking(s)", domain.ErrConflict, len(conflicts))
	}

	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	s.log.InfoContext(ctx, "booking created",
		"booking_id", created.ID,
		"listing_id", created.ListingID,
		"actor_id", in.Actor.ID,
		"actor_role", string(in.Actor.Role),
		"trace_id", traceID(ctx),
	)
	s.notifyChange(ctx, domain.Booking{}, created)
	return created, nil
}

// SetStatus moves a booking along a plain status edge (confirm, reject,
// check-in, check-out) on behalf of a pre-authorized actor.
func (s *BookingService) SetStatus(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, target domain.BookingStatus) (domain.Booking, error) {
	updated, err := s.transition(ctx, bookingID, actor, "set status", func(b *domain.Booking) error {
		return b.SetStatus(target, time.Now())
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.SetStatus: %w", err)
	}
	return updated, nil
}

// Cancel cancels a PENDING or CONFIRMED booking, recording the reason. A
// paid booking is marked refunded in the same write.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, reason string) (domain.Booking, error) {
	updated, err := s.transition(ctx, bookingID, actor, "cancel", func(b *domain.Booking) error {
		return b.Cancel(reason, time.Now())
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Cancel: %w", err)
	}
	return updated, nil
}

// ConfirmPayment records a successful payment capture for a CONFIRMED
// booking: payment moves PENDING→PAID, the booking status is unchanged.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, actor domain.Actor) (domain.Booking, error) {
	updated, err := s.transition(ctx, bookingID, actor, "confirm payment", func(b *domain.Booking) error {
		return b.ConfirmPayment(time.Now())
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.ConfirmPayment: %w", err)
	}
	return updated, nil
}

// FailPayment records a failed payment callback: payment moves to FAILED,
// the booking status is unchanged.
func (s *BookingService) FailPayment(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	updated, err := s.transition(ctx, bookingID, domain.Actor{Role: RoleSystem}, "fail payment", func(b *domain.Booking) error {
		return b.FailPayment(time.Now())
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.FailPayment: %w", err)
	}
	return updated, nil
}

// Update replaces the dates, guest count, and add-ons of a PENDING booking,
// re-running the availability check (excluding the booking's own
// reservation) and recomputing nights and price exactly as Create would.
func (s *BookingService) Update(ctx context.Context, bookingID uuid.UUID, in UpdateBookingInput) (domain.Booking, error) {
	// The listing snapshot is needed inside the mutation to re-validate and
	// re-price; fetch the booking once up front to learn which listing that is.
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}
	listing, err := s.listings.GetSnapshot(ctx, current.ListingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}

	updated, err := s.transition(ctx, bookingID, in.Actor, "update", func(b *domain.Booking) error {
		if err := b.ApplyUpdate(listing, in.CheckIn, in.CheckOut, in.Guests, in.Addons, time.Now()); err != nil {
			return err
		}
		conflicts, err := s.avail.FindConflicts(ctx, b.ListingID, b.CheckIn, b.CheckOut, b.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: overlaps %d active booking(s)", domain.ErrConflict, len(conflicts))
		}
		return nil
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}
	return updated, nil
}

// GetByID returns a booking with its add-ons.
func (s *BookingService) GetByID(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.GetByID: %w", err)
	}
	return b, nil
}

// ListByListing returns one page of a listing's booking history, terminal
// bookings included. Always returns a non-nil slice.
func (s *BookingService) ListByListing(ctx context.Context, listingID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	if _, err := s.listings.GetSnapshot(ctx, listingID); err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.ListByListing: %w", err)
	}
	bookings, total, err := s.bookings.ListByListingPaged(ctx, listingID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.ListByListing: %w", err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, total, nil
}

// RoleSystem marks mutations triggered by machine callbacks (payment
// gateway) rather than a person.
const RoleSystem domain.Role = "system"

// transition runs the shared read-mutate-write sequence for every booking
// mutation: acquire the listing lock, load the current booking, apply the
// state-machine mutation, persist via compare-and-swap, and retry the whole
// sequence with backoff if the write lost a version race. The notifier is
// invoked fire-and-forget after a successful persist.
func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, op string, mutate func(*domain.Booking) error) (domain.Booking, error) {
	// The listing ID never changes after creation, so reading it before
	// taking the lock is safe.
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}

	release, err := s.acquireListing(ctx, current.ListingID)
	if err != nil {
		return domain.Booking{}, err
	}
	defer release()

	var (
		before  domain.Booking
		updated domain.Booking
	)
	backoff := retry.WithMaxRetries(casMaxRetries, retry.NewFibonacci(casBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		before = b

		if err := mutate(&b); err != nil {
			return err
		}

		updated, err = s.bookings.Update(ctx, b)
		if errors.Is(err, domain.ErrStaleVersion) {
			// Lost a version race; reload and re-validate the transition.
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.log.InfoContext(ctx, "booking transition",
		"op", op,
		"booking_id", updated.ID,
		"listing_id", updated.ListingID,
		"old_status", string(before.Status),
		"new_status", string(updated.Status),
		"actor_id", actor.ID,
		"actor_role", string(actor.Role),
		"trace_id", traceID(ctx),
	)
	s.notifyChange(ctx, before, updated)
	return updated, nil
}

// acquireListing takes the listing's lock, waiting at most lockTimeout.
func (s *BookingService) acquireListing(ctx context.Context, listingID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locks.Acquire(lockCtx, listingID)
}

// notifyChange invokes the notification hook without awaiting it. The hook
// fires only when the observable state actually moved; delivery failures are
// the notifier's problem and can never fail the booking operation.
func (s *BookingService) notifyChange(ctx context.Context, before, after domain.Booking) {
	if s.notifier == nil {
		return
	}
	if before.Status == after.Status && before.Payment == after.Payment {
		return
	}
	change := notify.StatusChange{
		BookingID:  after.ID,
		ListingID:  after.ListingID,
		OldStatus:  before.Status,
		NewStatus:  after.Status,
		OldPayment: before.Payment,
		NewPayment: after.Payment,
		At:         after.UpdatedAt,
	}
	// Detached from the request context so an immediate client disconnect
	// cannot cancel the hook mid-flight.
	go s.notifier.BookingChanged(context.WithoutCancel(ctx), change)
}

// traceID extracts the otel trace ID from ctx for log correlation, or ""
// when no span context is present.
func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
