package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingSnapshot is the read-only view of a listing the booking engine
// needs: the rate, the currency, and the stay constraints. The listing
// subsystem owns and mutates listings; this service only reads them, and a
// snapshot is only guaranteed consistent for the duration of one operation.
type ListingSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Currency      string          `json:"currency"`
	MaxGuests     int             `json:"max_guests"`
	MinStayNights int             `json:"min_stay_nights"`
	MaxStayNights int             `json:"max_stay_nights"` // 0 means no upper bound
}

// validateStay checks a requested stay against the listing's constraints.
func (l ListingSnapshot) validateStay(nights, guests int) error {
	if guests < 1 {
		return fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	if guests > l.MaxGuests {
		return fmt.Errorf("%w: listing sleeps at most %d guests, got %d", ErrValidation, l.MaxGuests, guests)
	}
	if nights < l.MinStayNights {
		return fmt.Errorf("%w: minimum stay is %d nights, got %d", ErrValidation, l.MinStayNights, nights)
	}
	if l.MaxStayNights > 0 && nights > l.MaxStayNights {
		return fmt.Errorf("%w: maximum stay is %d nights, got %d", ErrValidation, l.MaxStayNights, nights)
	}
	return nil
}
