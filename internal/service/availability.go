// Package service contains the business logic for the Staybook booking
// engine. Services validate inputs, enforce business rules, and orchestrate
// repo calls. No SQL lives here — services depend on repo interfaces, not
// implementations.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pcormier/staybook/backend/internal/domain"
	"github.com/pcormier/staybook/backend/internal/repo"
)

// AvailabilityService answers conflict and calendar queries over a listing's
// active bookings. It is a pure query over a snapshot of the booking table:
// the check-then-write sequence is only atomic when the caller holds the
// per-listing lock (see BookingService), never by virtue of this service.
type AvailabilityService struct {
	bookings repo.BookingRepo
}

// NewAvailabilityService constructs an AvailabilityService backed by the
// provided booking repo.
func NewAvailabilityService(bookings repo.BookingRepo) *AvailabilityService {
	return &AvailabilityService{bookings: bookings}
}

// FindConflicts returns the IDs of every active booking on the listing whose
// date range overlaps [checkIn, checkOut). Pass exclude != uuid.Nil to skip
// a booking's own reservation when re-checking an update.
func (s *AvailabilityService) FindConflicts(ctx context.Context, listingID uuid.UUID, checkIn, checkOut time.Time, exclude uuid.UUID) ([]uuid.UUID, error) {
	active, err := s.bookings.ListActiveByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("service.AvailabilityService.FindConflicts: %w", err)
	}

	var conflicts []uuid.UUID
	for _, b := range active {
		if b.ID == exclude {
			continue
		}
		if domain.Overlaps(checkIn, checkOut, b.CheckIn, b.CheckOut) {
			conflicts = append(conflicts, b.ID)
		}
	}
	return conflicts, nil
}

// BlockedDates returns every date on which the listing is occupied, sorted
// ascending with duplicates collapsed. Check-out dates are not blocked, so
// back-to-back stays show no gap and no overlap on the calendar.
func (s *AvailabilityService) BlockedDates(ctx context.Context, listingID uuid.UUID) ([]time.Time, error) {
	active, err := s.bookings.ListActiveByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("service.AvailabilityService.BlockedDates: %w", err)
	}

	seen := make(map[time.Time]struct{})
	for _, b := range active {
		for _, d := range domain.NightsOf(b.CheckIn, b.CheckOut) {
			seen[d] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
