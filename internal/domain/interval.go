package domain

import (
	"fmt"
	"time"
)

// Booking date ranges are half-open intervals [checkIn, checkOut): the guest
// occupies every night from checkIn up to but not including checkOut. A
// booking checking out on the same day another checks in is therefore not a
// conflict — back-to-back stays are the normal case for a busy listing.

// day is the interval arithmetic unit. All dates are truncated to UTC
// midnight before comparison, so callers may pass timestamps with a
// time-of-day component without affecting night counts.
const day = 24 * time.Hour

// DateOnly truncates t to midnight UTC, discarding the time-of-day and
// time-zone components.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Nights returns the number of nights covered by [checkIn, checkOut),
// i.e. the whole-day difference between the two dates.
// Returns ErrValidation if checkOut is not strictly after checkIn —
// a stay is always at least one night.
func Nights(checkIn, checkOut time.Time) (int, error) {
	in, out := DateOnly(checkIn), DateOnly(checkOut)
	if !out.After(in) {
		return 0, fmt.Errorf("%w: check-out must be after check-in", ErrValidation)
	}
	return int(out.Sub(in) / day), nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one night.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	as, ae := DateOnly(aStart), DateOnly(aEnd)
	bs, be := DateOnly(bStart), DateOnly(bEnd)
	return as.Before(be) && bs.Before(ae)
}

// NightsOf returns every occupied date of [checkIn, checkOut) in ascending
// order. The check-out date itself is not included, matching the half-open
// interval semantics used everywhere else.
func NightsOf(checkIn, checkOut time.Time) []time.Time {
	var dates []time.Time
	for d := DateOnly(checkIn); d.Before(DateOnly(checkOut)); d = d.Add(day) {
		dates = append(dates, d)
	}
	return dates
}
