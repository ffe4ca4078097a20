package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcormier/staybook/backend/internal/domain"
)

func listingFixture() domain.ListingSnapshot {
	return domain.ListingSnapshot{
		ID:            uuid.New(),
		PricePerNight: dec("100.00"),
		Currency:      "EUR",
		MaxGuests:     4,
		MinStayNights: 1,
		MaxStayNights: 30,
	}
}

var now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

// newBooking builds a valid 3-night PENDING booking for tests.
func newBooking(t *testing.T, listing domain.ListingSnapshot) domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(listing, uuid.New(), date(2025, 6, 1), date(2025, 6, 4), 2, nil, now)
	require.NoError(t, err)
	return b
}

// advance walks a booking through the given status edges, failing the test
// if any edge is rejected.
func advance(t *testing.T, b *domain.Booking, statuses ...domain.BookingStatus) {
	t.Helper()
	for _, s := range statuses {
		require.NoError(t, b.SetStatus(s, now))
	}
}

func TestNewBooking(t *testing.T) {
	listing := listingFixture()
	addons := []domain.Addon{{Name: "cleaning", Price: dec("40.00"), Quantity: 1}}

	b, err := domain.NewBooking(listing, uuid.New(), date(2025, 6, 1), date(2025, 6, 4), 2, addons, now)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, listing.ID, b.ListingID)
	assert.Equal(t, 3, b.Nights)
	assert.True(t, dec("340.00").Equal(b.TotalPrice), "got %s", b.TotalPrice)
	assert.Equal(t, "EUR", b.Currency, "currency is copied from the listing")
	assert.Equal(t, domain.StatusPending, b.Status)
	assert.Equal(t, domain.PaymentPending, b.Payment)
	assert.EqualValues(t, 1, b.Version)
}

func TestNewBooking_Validation(t *testing.T) {
	listing := listingFixture()

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		guests   int
	}{
		{"check-out before check-in", date(2025, 6, 4), date(2025, 6, 1), 2},
		{"zero-night stay", date(2025, 6, 1), date(2025, 6, 1), 2},
		{"too many guests", date(2025, 6, 1), date(2025, 6, 4), 5},
		{"zero guests", date(2025, 6, 1), date(2025, 6, 4), 0},
		{"stay longer than maximum", date(2025, 6, 1), date(2025, 8, 1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewBooking(listing, uuid.New(), tt.checkIn, tt.checkOut, tt.guests, nil, now)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestNewBooking_MinimumStay(t *testing.T) {
	listing := listingFixture()
	listing.MinStayNights = 3

	_, err := domain.NewBooking(listing, uuid.New(), date(2025, 6, 1), date(2025, 6, 3), 2, nil, now)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetStatus_HappyPath(t *testing.T) {
	b := newBooking(t, listingFixture())

	advance(t, &b, domain.StatusConfirmed, domain.StatusCheckedIn, domain.StatusCheckedOut)

	assert.Equal(t, domain.StatusCheckedOut, b.Status)
}

func TestSetStatus_Reject(t *testing.T) {
	b := newBooking(t, listingFixture())

	require.NoError(t, b.SetStatus(domain.StatusRejected, now))

	assert.Equal(t, domain.StatusRejected, b.Status)
	assert.False(t, b.Status.IsActive(), "rejected bookings release their dates")
}

func TestSetStatus_IllegalEdges(t *testing.T) {
	tests := []struct {
		name   string
		via    []domain.BookingStatus
		target domain.BookingStatus
	}{
		{"pending straight to checked-in", nil, domain.StatusCheckedIn},
		{"pending straight to checked-out", nil, domain.StatusCheckedOut},
		{"confirmed back to pending", []domain.BookingStatus{domain.StatusConfirmed}, domain.StatusPending},
		{"confirmed to rejected", []domain.BookingStatus{domain.StatusConfirmed}, domain.StatusRejected},
		{"rejected to confirmed", []domain.BookingStatus{domain.StatusRejected}, domain.StatusConfirmed},
		{"checked-out to checked-in", []domain.BookingStatus{domain.StatusConfirmed, domain.StatusCheckedIn, domain.StatusCheckedOut}, domain.StatusCheckedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(t, listingFixture())
			advance(t, &b, tt.via...)

			err := b.SetStatus(tt.target, now)

			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}

func TestSetStatus_CancelledStatusRequiresCancel(t *testing.T) {
	b := newBooking(t, listingFixture())

	err := b.SetStatus(domain.StatusCancelled, now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_FromPending(t *testing.T) {
	b := newBooking(t, listingFixture())

	require.NoError(t, b.Cancel("change of plans", now))

	assert.Equal(t, domain.StatusCancelled, b.Status)
	assert.Equal(t, "change of plans", b.CancelReason)
	require.NotNil(t, b.CancelledAt)
	assert.Equal(t, now, *b.CancelledAt)
	assert.Equal(t, domain.PaymentPending, b.Payment, "unpaid booking has nothing to refund")
}

func TestCancel_PaidBookingIsRefunded(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed)
	require.NoError(t, b.ConfirmPayment(now))

	require.NoError(t, b.Cancel("host emergency", now))

	assert.Equal(t, domain.StatusCancelled, b.Status)
	assert.Equal(t, domain.PaymentRefunded, b.Payment)
}

func TestCancel_Twice(t *testing.T) {
	b := newBooking(t, listingFixture())
	require.NoError(t, b.Cancel("first", now))

	err := b.Cancel("second", now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_AfterCheckIn(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed, domain.StatusCheckedIn)

	err := b.Cancel("too late", now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConfirmPayment(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed)

	require.NoError(t, b.ConfirmPayment(now))

	assert.Equal(t, domain.PaymentPaid, b.Payment)
	assert.Equal(t, domain.StatusConfirmed, b.Status, "capture does not advance the stay")
}

func TestConfirmPayment_RequiresConfirmedBooking(t *testing.T) {
	b := newBooking(t, listingFixture())

	err := b.ConfirmPayment(now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConfirmPayment_Twice(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed)
	require.NoError(t, b.ConfirmPayment(now))

	err := b.ConfirmPayment(now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFailPayment(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed)

	require.NoError(t, b.FailPayment(now))

	assert.Equal(t, domain.PaymentFailed, b.Payment)
	assert.Equal(t, domain.StatusConfirmed, b.Status, "a failed payment leaves the booking status alone")
}

func TestFailPayment_AfterCheckOut(t *testing.T) {
	b := newBooking(t, listingFixture())
	advance(t, &b, domain.StatusConfirmed, domain.StatusCheckedIn, domain.StatusCheckedOut)

	require.NoError(t, b.FailPayment(now))

	assert.Equal(t, domain.PaymentFailed, b.Payment, "a completed stay still accepts the failure callback")
	assert.Equal(t, domain.StatusCheckedOut, b.Status)
}

func TestFailPayment_CancelledBooking(t *testing.T) {
	b := newBooking(t, listingFixture())
	require.NoError(t, b.Cancel("gone", now))

	err := b.FailPayment(now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyUpdate_RecomputesDerivedFields(t *testing.T) {
	listing := listingFixture()
	b := newBooking(t, listing)

	addons := []domain.Addon{{Name: "crib", Price: dec("10.00"), Quantity: 1}}
	require.NoError(t, b.ApplyUpdate(listing, date(2025, 6, 10), date(2025, 6, 15), 3, addons, now))

	assert.Equal(t, 5, b.Nights)
	assert.True(t, dec("510.00").Equal(b.TotalPrice), "got %s", b.TotalPrice)
	assert.Equal(t, 3, b.Guests)

	// The result must match a fresh booking created with the same inputs.
	fresh, err := domain.NewBooking(listing, b.GuestID, date(2025, 6, 10), date(2025, 6, 15), 3, addons, now)
	require.NoError(t, err)
	assert.Equal(t, fresh.Nights, b.Nights)
	assert.True(t, fresh.TotalPrice.Equal(b.TotalPrice))
}

func TestApplyUpdate_OnlyWhilePending(t *testing.T) {
	listing := listingFixture()
	b := newBooking(t, listing)
	advance(t, &b, domain.StatusConfirmed)

	err := b.ApplyUpdate(listing, date(2025, 6, 10), date(2025, 6, 15), 2, nil, now)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyUpdate_InvalidRange(t *testing.T) {
	listing := listingFixture()
	b := newBooking(t, listing)

	err := b.ApplyUpdate(listing, date(2025, 6, 15), date(2025, 6, 10), 2, nil, now)

	assert.ErrorIs(t, err, domain.ErrValidation)
}
