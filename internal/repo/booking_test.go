package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcormier/staybook/backend/internal/domain"
	"github.com/pcormier/staybook/backend/internal/repo"
	"github.com/pcormier/staybook/backend/testutil"
)

// testTx opens a transaction against the test database that is rolled back
// when the test finishes, giving free per-test isolation without cleanup SQL.
//
// Requires TEST_DATABASE_URL to be set; migrations are applied by TestMain.
func testTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}

// seedListing inserts a listing through the repo and returns its snapshot.
func seedListing(t *testing.T, tx pgx.Tx) domain.ListingSnapshot {
	t.Helper()

	listings := repo.NewListingRepo(tx)
	l, err := listings.Create(context.Background(), domain.ListingSnapshot{
		PricePerNight: decimal.RequireFromString("120.00"),
		Currency:      "USD",
		MaxGuests:     6,
		MinStayNights: 1,
		MaxStayNights: 0,
	})
	require.NoError(t, err, "seed listing")
	return l
}

// bookingFixture builds a valid in-memory booking for the given listing.
// Callers can adjust fields before persisting.
func bookingFixture(t *testing.T, listing domain.ListingSnapshot) domain.Booking {
	t.Helper()

	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	addons := []domain.Addon{
		{Name: "cleaning fee", Price: decimal.RequireFromString("45.00"), Quantity: 1},
		{Name: "late checkout", Price: decimal.RequireFromString("20.00"), Quantity: 2},
	}

	b, err := domain.NewBooking(listing, uuid.New(), checkIn, checkOut, 2, addons, time.Now())
	require.NoError(t, err, "build booking fixture")
	return b
}

func TestBookingRepo_Create(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	input := bookingFixture(t, listing)

	got, err := r.Create(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, input.ID, got.ID)
	assert.Equal(t, listing.ID, got.ListingID)
	assert.True(t, got.CheckIn.Equal(input.CheckIn), "CheckIn mismatch")
	assert.True(t, got.CheckOut.Equal(input.CheckOut), "CheckOut mismatch")
	assert.Equal(t, 4, got.Nights)
	// 4 * 120.00 + 45.00 + 2 * 20.00
	assert.True(t, got.TotalPrice.Equal(decimal.RequireFromString("565.00")),
		"TotalPrice = %s", got.TotalPrice)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.PaymentPending, got.Payment)
	assert.EqualValues(t, 1, got.Version)
	require.Len(t, got.Addons, 2)
	assert.Equal(t, "cleaning fee", got.Addons[0].Name)
}

func TestBookingRepo_GetByID(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	created, err := r.Create(ctx, bookingFixture(t, listing))
	require.NoError(t, err)

	got, err := r.GetByID(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.GuestID, got.GuestID)
	assert.True(t, got.TotalPrice.Equal(created.TotalPrice))
	require.Len(t, got.Addons, 2)
	// Insertion order must survive the round trip.
	assert.Equal(t, "cleaning fee", got.Addons[0].Name)
	assert.Equal(t, "late checkout", got.Addons[1].Name)
	assert.Nil(t, got.CancelledAt)
}

func TestBookingRepo_GetByID_NotFound(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingRepo_Update(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	created, err := r.Create(ctx, bookingFixture(t, listing))
	require.NoError(t, err)

	require.NoError(t, created.SetStatus(domain.StatusConfirmed, time.Now()))

	updated, err := r.Update(ctx, created)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)
	assert.EqualValues(t, 2, updated.Version, "version must be bumped by the write")
	require.Len(t, updated.Addons, 2)
}

func TestBookingRepo_Update_StaleVersion(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	created, err := r.Create(ctx, bookingFixture(t, listing))
	require.NoError(t, err)

	// First writer wins and bumps the version.
	first := created
	require.NoError(t, first.SetStatus(domain.StatusConfirmed, time.Now()))
	_, err = r.Update(ctx, first)
	require.NoError(t, err)

	// Second writer still holds version 1 and must be told to retry.
	second := created
	require.NoError(t, second.SetStatus(domain.StatusRejected, time.Now()))
	_, err = r.Update(ctx, second)

	assert.ErrorIs(t, err, domain.ErrStaleVersion)
}

func TestBookingRepo_Update_NotFound(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)

	listing := seedListing(t, tx)
	ghost := bookingFixture(t, listing)
	// Never persisted.

	_, err := r.Update(context.Background(), ghost)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingRepo_Update_CancellationFields(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	created, err := r.Create(ctx, bookingFixture(t, listing))
	require.NoError(t, err)

	require.NoError(t, created.Cancel("plans changed", time.Now()))

	updated, err := r.Update(ctx, created)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, "plans changed", updated.CancelReason)
	require.NotNil(t, updated.CancelledAt)
	assert.WithinDuration(t, time.Now(), *updated.CancelledAt, time.Minute)
}

func TestBookingRepo_ListActiveByListing(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)

	// Two active bookings on disjoint ranges plus one cancelled.
	first := bookingFixture(t, listing)
	second := bookingFixture(t, listing)
	second.CheckIn = second.CheckIn.AddDate(0, 0, 30)
	second.CheckOut = second.CheckOut.AddDate(0, 0, 30)
	cancelled := bookingFixture(t, listing)
	cancelled.CheckIn = cancelled.CheckIn.AddDate(0, 0, 60)
	cancelled.CheckOut = cancelled.CheckOut.AddDate(0, 0, 60)
	require.NoError(t, cancelled.Cancel("no longer needed", time.Now()))

	for _, b := range []domain.Booking{second, first, cancelled} {
		_, err := r.Create(ctx, b)
		require.NoError(t, err)
	}

	active, err := r.ListActiveByListing(ctx, listing.ID)

	require.NoError(t, err)
	require.Len(t, active, 2, "cancelled booking must not block dates")
	// Ordered by check-in, so first comes before second.
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
}

func TestBookingRepo_ListByListingPaged(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)
	ctx := context.Background()

	listing := seedListing(t, tx)
	for i := 0; i < 5; i++ {
		b := bookingFixture(t, listing)
		b.CheckIn = b.CheckIn.AddDate(0, 0, i*10)
		b.CheckOut = b.CheckOut.AddDate(0, 0, i*10)
		_, err := r.Create(ctx, b)
		require.NoError(t, err)
	}

	page, total, err := r.ListByListingPaged(ctx, listing.ID, domain.PaginationParams{Page: 1, Limit: 3})

	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 3)

	rest, total, err := r.ListByListingPaged(ctx, listing.ID, domain.PaginationParams{Page: 2, Limit: 3})

	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, rest, 2)
}

func TestBookingRepo_ListByListingPaged_Empty(t *testing.T) {
	tx := testTx(t)
	r := repo.NewBookingRepo(tx)

	listing := seedListing(t, tx)

	page, total, err := r.ListByListingPaged(context.Background(), listing.ID, domain.NewPaginationParams(nil, nil))

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}
