// Package handler implements the HTTP layer of the Staybook booking engine.
// Handlers decode and validate requests, call into the service layer, and
// translate domain errors into HTTP responses. No business rules live here.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pcormier/staybook/backend/internal/domain"
	"github.com/pcormier/staybook/backend/internal/service"
)

// BookingServicer defines the coordinator operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type BookingServicer interface {
	Create(ctx context.Context, in service.CreateBookingInput) (domain.Booking, error)
	GetByID(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	Update(ctx context.Context, bookingID uuid.UUID, in service.UpdateBookingInput) (domain.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, target domain.BookingStatus) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, reason string) (domain.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, actor domain.Actor) (domain.Booking, error)
	FailPayment(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	ListByListing(ctx context.Context, listingID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
}

// AvailabilityServicer defines the read-only calendar queries.
type AvailabilityServicer interface {
	BlockedDates(ctx context.Context, listingID uuid.UUID) ([]time.Time, error)
}

// Server holds the handler dependencies. Methods are split across
// domain-specific files (booking.go, listing.go, health.go) but all operate
// on this struct.
type Server struct {
	bookings BookingServicer
	avail    AvailabilityServicer
	validate *validator.Validate
}

// NewServer constructs the Server with all its dependencies.
func NewServer(bookings BookingServicer, avail AvailabilityServicer) *Server {
	return &Server{
		bookings: bookings,
		avail:    avail,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the router with every API endpoint registered.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.health)

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", s.createBooking)
		r.Get("/{id}", s.getBooking)
		r.Patch("/{id}", s.updateBooking)
		r.Post("/{id}/cancel", s.cancelBooking)
		r.Post("/{id}/status", s.setBookingStatus)
		r.Post("/{id}/payment/confirm", s.confirmPayment)
		r.Post("/{id}/payment/fail", s.failPayment)
	})

	r.Route("/listings/{id}", func(r chi.Router) {
		r.Get("/bookings", s.listListingBookings)
		r.Get("/calendar", s.listingCalendar)
	})

	return r
}

// idParam parses the {id} URL parameter as a UUID.
func idParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
