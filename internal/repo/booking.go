// Package repo contains all database access logic for the Staybook booking
// engine. Each resource has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
//
// Begin is included because booking writes span two tables (bookings and
// booking_addons) and must be all-or-nothing; on a pgx.Tx it opens a savepoint.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BookingRepo defines the persistence operations for bookings.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the coordinator to be unit-tested with an
// in-memory double.
type BookingRepo interface {
	// Create inserts a new booking and its add-ons atomically.
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// GetByID retrieves a booking with its add-ons.
	// Returns domain.ErrNotFound if no booking with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// Update overwrites the mutable fields of a booking using a
	// compare-and-swap on the version column: the write only succeeds when
	// the stored version still equals b.Version, and bumps it by one.
	// Returns domain.ErrStaleVersion when another write got there first and
	// domain.ErrNotFound when the booking does not exist.
	Update(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// ListActiveByListing returns the bookings for a listing whose status
	// still blocks dates (not CANCELLED, not REJECTED), ordered by check-in.
	ListActiveByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Booking, error)

	// ListByListingPaged returns a page of all bookings for a listing,
	// terminal ones included, newest first, plus the total row count.
	ListByListingPaged(ctx context.Context, listingID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
}

// pgBookingRepo is the Postgres implementation of BookingRepo.
type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

const bookingColumns = `
	id, listing_id, guest_id, check_in, check_out, guests, nights,
	total_price::text, currency, status, payment_status,
	cancel_reason, cancelled_at, version, created_at, updated_at`

// Create inserts the booking row and its add-ons in one transaction.
func (r *pgBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const q = `
		INSERT INTO bookings (
			id, listing_id, guest_id, check_in, check_out, guests, nights,
			total_price, currency, status, payment_status, version,
			created_at, updated_at
		)
		VALUES (
			@id, @listing_id, @guest_id, @check_in, @check_out, @guests, @nights,
			@total_price::numeric, @currency, @status, @payment_status, @version,
			@created_at, @updated_at
		)
		RETURNING ` + bookingColumns

	args := pgx.NamedArgs{
		"id":             b.ID,
		"listing_id":     b.ListingID,
		"guest_id":       b.GuestID,
		"check_in":       b.CheckIn,
		"check_out":      b.CheckOut,
		"guests":         b.Guests,
		"nights":         b.Nights,
		"total_price":    b.TotalPrice.StringFixed(2),
		"currency":       b.Currency,
		"status":         string(b.Status),
		"payment_status": string(b.Payment),
		"version":        b.Version,
		"created_at":     b.CreatedAt,
		"updated_at":     b.UpdatedAt,
	}

	result, err := scanBooking(tx.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", err)
	}

	if err := replaceAddons(ctx, tx, b.ID, b.Addons); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", err)
	}
	result.Addons = b.Addons

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: commit: %w", err)
	}
	return result, nil
}

// GetByID retrieves a booking and its add-ons by primary key.
func (r *pgBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = @id`

	b, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", err)
	}

	addons, err := loadAddons(ctx, r.db, []uuid.UUID{id})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", err)
	}
	b.Addons = addons[id]
	return b, nil
}

// Update performs the compare-and-swap write and rewrites the add-on rows.
func (r *pgBookingRepo) Update(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const q = `
		UPDATE bookings
		SET check_in       = @check_in,
		    check_out      = @check_out,
		    guests         = @guests,
		    nights         = @nights,
		    total_price    = @total_price::numeric,
		    status         = @status,
		    payment_status = @payment_status,
		    cancel_reason  = @cancel_reason,
		    cancelled_at   = @cancelled_at,
		    version        = version + 1,
		    updated_at     = @updated_at
		WHERE id = @id AND version = @version
		RETURNING ` + bookingColumns

	args := pgx.NamedArgs{
		"id":             b.ID,
		"check_in":       b.CheckIn,
		"check_out":      b.CheckOut,
		"guests":         b.Guests,
		"nights":         b.Nights,
		"total_price":    b.TotalPrice.StringFixed(2),
		"status":         string(b.Status),
		"payment_status": string(b.Payment),
		"cancel_reason":  b.CancelReason,
		"cancelled_at":   b.CancelledAt, // nil becomes NULL
		"version":        b.Version,
		"updated_at":     b.UpdatedAt,
	}

	result, err := scanBooking(tx.QueryRow(ctx, q, args))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Distinguish "row gone" from "version moved on".
			return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: %w", r.staleOrMissing(ctx, b.ID))
		}
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: %w", err)
	}

	if err := replaceAddons(ctx, tx, b.ID, b.Addons); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: %w", err)
	}
	result.Addons = b.Addons

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: commit: %w", err)
	}
	return result, nil
}

// staleOrMissing reports whether a failed CAS update lost the race or
// targeted a booking that does not exist at all.
func (r *pgBookingRepo) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = @id)`
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrStaleVersion
	}
	return domain.ErrNotFound
}

// ListActiveByListing returns every booking still blocking dates on the listing.
func (r *pgBookingRepo) ListActiveByListing(ctx context.Context, listingID uuid.UUID) ([]domain.Booking, error) {
	const q = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE listing_id = @listing_id
		AND   status NOT IN ('CANCELLED', 'REJECTED')
		ORDER BY check_in`

	bookings, err := r.queryBookings(ctx, q, pgx.NamedArgs{"listing_id": listingID})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListActiveByListing: %w", err)
	}
	return bookings, nil
}

// ListByListingPaged returns one page of the listing's full booking history.
func (r *pgBookingRepo) ListByListingPaged(ctx context.Context, listingID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	const countQ = `SELECT count(*) FROM bookings WHERE listing_id = @listing_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"listing_id": listingID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByListingPaged: count: %w", err)
	}

	const q = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE listing_id = @listing_id
		ORDER BY created_at DESC
		LIMIT @limit OFFSET @offset`

	bookings, err := r.queryBookings(ctx, q, pgx.NamedArgs{
		"listing_id": listingID,
		"limit":      p.Limit,
		"offset":     p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByListingPaged: %w", err)
	}
	return bookings, total, nil
}

// queryBookings runs a multi-row booking query and attaches add-ons in one
// follow-up query instead of one per booking.
func (r *pgBookingRepo) queryBookings(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]uuid.UUID, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	addons, err := loadAddons(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Addons = addons[bookings[i].ID]
	}
	return bookings, nil
}

// replaceAddons rewrites the add-on rows for a booking. Add-ons are a small
// owned collection, so delete-and-reinsert is simpler than diffing.
func replaceAddons(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, addons []domain.Addon) error {
	const del = `DELETE FROM booking_addons WHERE booking_id = @booking_id`
	if _, err := tx.Exec(ctx, del, pgx.NamedArgs{"booking_id": bookingID}); err != nil {
		return fmt.Errorf("delete addons: %w", err)
	}

	const ins = `
		INSERT INTO booking_addons (booking_id, position, name, price, quantity)
		VALUES (@booking_id, @position, @name, @price::numeric, @quantity)`

	for i, a := range addons {
		args := pgx.NamedArgs{
			"booking_id": bookingID,
			"position":   i,
			"name":       a.Name,
			"price":      a.Price.StringFixed(2),
			"quantity":   a.Quantity,
		}
		if _, err := tx.Exec(ctx, ins, args); err != nil {
			return fmt.Errorf("insert addon %d: %w", i, err)
		}
	}
	return nil
}

// loadAddons fetches the add-ons for the given booking IDs, keyed by booking,
// preserving each booking's insertion order.
func loadAddons(ctx context.Context, db db, bookingIDs []uuid.UUID) (map[uuid.UUID][]domain.Addon, error) {
	const q = `
		SELECT booking_id, name, price::text, quantity
		FROM booking_addons
		WHERE booking_id = ANY(@booking_ids)
		ORDER BY booking_id, position`

	rows, err := db.Query(ctx, q, pgx.NamedArgs{"booking_ids": bookingIDs})
	if err != nil {
		return nil, fmt.Errorf("load addons: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.Addon)
	for rows.Next() {
		var (
			id    pgtype.UUID
			a     domain.Addon
			price string
		)
		if err := rows.Scan(&id, &a.Name, &price, &a.Quantity); err != nil {
			return nil, fmt.Errorf("scan addon: %w", err)
		}
		a.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse addon price %q: %w", price, err)
		}
		out[uuid.UUID(id.Bytes)] = append(out[uuid.UUID(id.Bytes)], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("addon rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanBooking to
// be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanBooking maps a single database row into a domain.Booking.
// It handles the UUID, date, numeric-as-text, and nullable cancelled_at
// conversions. Add-ons are loaded separately.
func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b           domain.Booking
		id          pgtype.UUID
		listingID   pgtype.UUID
		guestID     pgtype.UUID
		checkIn     pgtype.Date
		checkOut    pgtype.Date
		totalPrice  string
		status      string
		payment     string
		cancelledAt pgtype.Timestamptz
	)

	err := s.Scan(
		&id, &listingID, &guestID, &checkIn, &checkOut, &b.Guests, &b.Nights,
		&totalPrice, &b.Currency, &status, &payment,
		&b.CancelReason, &cancelledAt, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}

	b.ID = uuid.UUID(id.Bytes)
	b.ListingID = uuid.UUID(listingID.Bytes)
	b.GuestID = uuid.UUID(guestID.Bytes)
	b.CheckIn = checkIn.Time
	b.CheckOut = checkOut.Time
	b.Status = domain.BookingStatus(status)
	b.Payment = domain.PaymentStatus(payment)
	if cancelledAt.Valid {
		ts := cancelledAt.Time
		b.CancelledAt = &ts
	}

	b.TotalPrice, err = decimal.NewFromString(totalPrice)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("parse total_price %q: %w", totalPrice, err)
	}

	return b, nil
}
