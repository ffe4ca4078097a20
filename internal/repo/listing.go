package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// ListingRepo provides the read-only listing snapshots the booking engine
// needs for pricing and stay validation. Listings are owned and mutated by
// the listing subsystem; this service never writes them outside of seeding.
type ListingRepo interface {
	// GetSnapshot returns the booking-relevant fields of a listing.
	// Returns domain.ErrNotFound if no listing with that ID exists.
	GetSnapshot(ctx context.Context, id uuid.UUID) (domain.ListingSnapshot, error)

	// Create inserts a listing. Exists for seeding and integration tests;
	// production listings arrive through the listing subsystem's own writes.
	Create(ctx context.Context, l domain.ListingSnapshot) (domain.ListingSnapshot, error)
}

// pgListingRepo is the Postgres implementation of ListingRepo.
type pgListingRepo struct {
	db db
}

// NewListingRepo constructs a ListingRepo backed by the provided db connection.
func NewListingRepo(db db) ListingRepo {
	return &pgListingRepo{db: db}
}

// GetSnapshot retrieves a listing snapshot by primary key.
func (r *pgListingRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (domain.ListingSnapshot, error) {
	const q = `
		SELECT id, price_per_night::text, currency, max_guests, min_stay_nights, max_stay_nights
		FROM listings
		WHERE id = @id`

	l, err := scanListing(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.ListingSnapshot{}, fmt.Errorf("repo.ListingRepo.GetSnapshot: %w", err)
	}
	return l, nil
}

// Create inserts a listing row and returns the persisted snapshot.
func (r *pgListingRepo) Create(ctx context.Context, l domain.ListingSnapshot) (domain.ListingSnapshot, error) {
	const q = `
		INSERT INTO listings (price_per_night, currency, max_guests, min_stay_nights, max_stay_nights)
		VALUES (@price_per_night::numeric, @currency, @max_guests, @min_stay_nights, @max_stay_nights)
		RETURNING id, price_per_night::text, currency, max_guests, min_stay_nights, max_stay_nights`

	args := pgx.NamedArgs{
		"price_per_night": l.PricePerNight.StringFixed(2),
		"currency":        l.Currency,
		"max_guests":      l.MaxGuests,
		"min_stay_nights": l.MinStayNights,
		"max_stay_nights": l.MaxStayNights,
	}

	result, err := scanListing(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.ListingSnapshot{}, fmt.Errorf("repo.ListingRepo.Create: %w", err)
	}
	return result, nil
}

// scanListing maps a single database row into a domain.ListingSnapshot.
func scanListing(s scanner) (domain.ListingSnapshot, error) {
	var (
		l     domain.ListingSnapshot
		id    pgtype.UUID
		price string
	)

	err := s.Scan(&id, &price, &l.Currency, &l.MaxGuests, &l.MinStayNights, &l.MaxStayNights)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListingSnapshot{}, domain.ErrNotFound
		}
		return domain.ListingSnapshot{}, err
	}

	l.ID = uuid.UUID(id.Bytes)
	l.PricePerNight, err = decimal.NewFromString(price)
	if err != nil {
		return domain.ListingSnapshot{}, fmt.Errorf("parse price_per_night %q: %w", price, err)
	}
	return l, nil
}

// cachedListingRepo wraps a ListingRepo with a short-lived in-process cache.
// Listing rates and stay limits change rarely compared to how often the
// booking path reads them, and each operation only needs a snapshot that was
// current when it started. Not-found results are not cached so newly created
// listings become bookable immediately.
type cachedListingRepo struct {
	inner ListingRepo
	cache *gocache.Cache
}

// NewCachedListingRepo wraps inner with a TTL cache on GetSnapshot.
func NewCachedListingRepo(inner ListingRepo, ttl time.Duration) ListingRepo {
	return &cachedListingRepo{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *cachedListingRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (domain.ListingSnapshot, error) {
	if v, ok := r.cache.Get(id.String()); ok {
		return v.(domain.ListingSnapshot), nil
	}

	l, err := r.inner.GetSnapshot(ctx, id)
	if err != nil {
		return domain.ListingSnapshot{}, err
	}
	r.cache.SetDefault(id.String(), l)
	return l, nil
}

// Create writes through and primes the cache with the fresh snapshot.
func (r *cachedListingRepo) Create(ctx context.Context, l domain.ListingSnapshot) (domain.ListingSnapshot, error) {
	created, err := r.inner.Create(ctx, l)
	if err != nil {
		return domain.ListingSnapshot{}, err
	}
	r.cache.SetDefault(created.ID.String(), created)
	return created, nil
}
