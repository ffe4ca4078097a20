package handler

import (
	"net/http"
	"strconv"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// listBookingsResponse is the paginated envelope for a listing's booking
// history.
type listBookingsResponse struct {
	Data       []bookingResponse `json:"data"`
	Pagination pagination        `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// calendarResponse carries the blocked dates of a listing for calendar
// display. Dates are "2006-01-02" strings; the check-out date of each stay
// is not included.
type calendarResponse struct {
	ListingID    string   `json:"listing_id"`
	BlockedDates []string `json:"blocked_dates"`
}

// listListingBookings handles GET /listings/{id}/bookings.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20,
// max=100).
func (s *Server) listListingBookings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid listing id")
		return
	}

	params := paginationFromQuery(r)
	bookings, total, err := s.bookings.ListByListing(r.Context(), id, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := make([]bookingResponse, len(bookings))
	for i, b := range bookings {
		data[i] = toBookingResponse(b)
	}
	writeJSON(w, http.StatusOK, listBookingsResponse{
		Data: data,
		Pagination: pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// listingCalendar handles GET /listings/{id}/calendar.
func (s *Server) listingCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, "validation_error", "invalid listing id")
		return
	}

	dates, err := s.avail.BlockedDates(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := calendarResponse{ListingID: id.String(), BlockedDates: []string{}}
	for _, d := range dates {
		resp.BlockedDates = append(resp.BlockedDates, d.Format(dateLayout))
	}
	writeJSON(w, http.StatusOK, resp)
}

// paginationFromQuery reads optional ?page= and ?limit= query parameters.
func paginationFromQuery(r *http.Request) domain.PaginationParams {
	var page, limit *int
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = &v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = &v
	}
	return domain.NewPaginationParams(page, limit)
}
