package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pcormier/staybook/backend/internal/domain"
	"github.com/pcormier/staybook/backend/internal/service"
)

// Actor headers. The API gateway authenticates the caller and forwards the
// resolved identity; this service trusts the headers and enforces only
// state-machine legality.
const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

// dateLayout is the wire format for check-in/check-out dates. Bookings are
// date-granular; no time-of-day crosses the API boundary.
const dateLayout = "2006-01-02"

type addonPayload struct {
	Name     string `json:"name" validate:"required"`
	Price    string `json:"price" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type createBookingRequest struct {
	ListingID string         `json:"listing_id" validate:"required,uuid"`
	GuestID   string         `json:"guest_id" validate:"required,uuid"`
	CheckIn   string         `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut  string         `json:"check_out" validate:"required,datetime=2006-01-02"`
	Guests    int            `json:"guests" validate:"required,min=1"`
	Addons    []addonPayload `json:"addons" validate:"omitempty,dive"`
}

type updateBookingRequest struct {
	CheckIn  string         `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string         `json:"check_out" validate:"required,datetime=2006-01-02"`
	Guests   int            `json:"guests" validate:"required,min=1"`
	Addons   []addonPayload `json:"addons" validate:"omitempty,dive"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bookingResponse struct {
	ID           string         `json:"id"`
	ListingID    string         `json:"listing_id"`
	GuestID      string         `json:"guest_id"`
	CheckIn      string         `json:"check_in"`
	CheckOut     string         `json:"check_out"`
	Guests       int            `json:"guests"`
	Nights       int            `json:"nights"`
	TotalPrice   string         `json:"total_price"`
	Currency     string         `json:"currency"`
	Status       string         `json:"status"`
	Payment      string         `json:"payment_status"`
	CancelReason string         `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time     `json:"cancelled_at,omitempty"`
	Addons       []addonPayload `json:"addons,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// createBooking handles POST /bookings.
func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	addons, err := parseAddons(req.Addons)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	in := service.CreateBookingInput{
		ListingID: uuid.MustParse(req.ListingID),
		GuestID:   uuid.MustParse(req.GuestID),
		CheckIn:   mustParseDate(req.CheckIn),
		CheckOut:  mustParseDate(req.CheckOut),
		Guests:    req.Guests,
		Addons:    addons,
		Actor:     actor,
	}

	created, err := s.bookings.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(created))
}

// getBooking handles GET /bookings/{id}.
func (s *Server) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}

	b, err := s.bookings.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// updateBooking handles PATCH /bookings/{id}.
func (s *Server) updateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}
	var req updateBookingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	addons, err := parseAddons(req.Addons)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return
	}

	updated, err := s.bookings.Update(r.Context(), id, service.UpdateBookingInput{
		CheckIn:  mustParseDate(req.CheckIn),
		CheckOut: mustParseDate(req.CheckOut),
		Guests:   req.Guests,
		Addons:   addons,
		Actor:    actor,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// cancelBooking handles POST /bookings/{id}/cancel.
func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	// The reason is optional; an empty or absent body is fine.
	var req cancelBookingRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cancelled, err := s.bookings.Cancel(r.Context(), id, actor, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(cancelled))
}

// setBookingStatus handles POST /bookings/{id}/status.
func (s *Server) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}
	var req setStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	status, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err))
		return
	}

	updated, err := s.bookings.SetStatus(r.Context(), id, actor, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// confirmPayment handles POST /bookings/{id}/payment/confirm.
func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	updated, err := s.bookings.ConfirmPayment(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// failPayment handles POST /bookings/{id}/payment/fail. This is a gateway
// callback, not a user action, so no actor headers are required.
func (s *Server) failPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid booking id")
		return
	}

	updated, err := s.bookings.FailPayment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself when either step fails.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "request body is missing or malformed")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid field: "+verrs[0].Namespace())
			return false
		}
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
		return false
	}
	return true
}

// requireActor resolves the pre-authorized actor from the request headers,
// writing a validation error when they are missing or malformed.
func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	id, err := uuid.Parse(r.Header.Get(headerActorID))
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "missing or invalid "+headerActorID+" header")
		return domain.Actor{}, false
	}
	role, err := domain.ParseRole(r.Header.Get(headerActorRole))
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "missing or invalid "+headerActorRole+" header")
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: role}, true
}

// parseAddons converts the wire add-ons to domain values, parsing each price
// as a decimal string.
func parseAddons(in []addonPayload) ([]domain.Addon, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]domain.Addon, len(in))
	for i, a := range in {
		price, err := decimal.NewFromString(a.Price)
		if err != nil {
			return nil, errors.New("invalid price for add-on " + a.Name)
		}
		out[i] = domain.Addon{Name: a.Name, Price: price, Quantity: a.Quantity}
	}
	return out, nil
}

// mustParseDate parses a date already vetted by the datetime validator tag.
func mustParseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		// Unreachable after validation; fail loudly if it ever happens.
		panic("unvalidated date reached mustParseDate: " + s)
	}
	return t
}

// toBookingResponse converts a domain.Booking into its wire representation.
func toBookingResponse(b domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:           b.ID.String(),
		ListingID:    b.ListingID.String(),
		GuestID:      b.GuestID.String(),
		CheckIn:      b.CheckIn.Format(dateLayout),
		CheckOut:     b.CheckOut.Format(dateLayout),
		Guests:       b.Guests,
		Nights:       b.Nights,
		TotalPrice:   b.TotalPrice.StringFixed(2),
		Currency:     b.Currency,
		Status:       string(b.Status),
		Payment:      string(b.Payment),
		CancelReason: b.CancelReason,
		CancelledAt:  b.CancelledAt,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	for _, a := range b.Addons {
		resp.Addons = append(resp.Addons, addonPayload{
			Name:     a.Name,
			Price:    a.Price.StringFixed(2),
			Quantity: a.Quantity,
		})
	}
	return resp
}
