package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Addon is a flat-priced extra attached to a booking (cleaning fee, airport
// pickup, crib rental, ...). It is a value object owned by its booking and
// is replaced wholesale when the booking is updated.
type Addon struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ComputeTotal returns nights × nightlyRate + Σ(addon.Price × addon.Quantity).
//
// All arithmetic is fixed-point decimal; the result is truncated (not
// rounded) at two decimal places, the smallest unit of every supported
// currency. Returns ErrValidation if nights < 1, the rate is negative, or
// any add-on has a negative price or a quantity below 1.
func ComputeTotal(nights int, nightlyRate decimal.Decimal, addons []Addon) (decimal.Decimal, error) {
	if nights < 1 {
		return decimal.Zero, fmt.Errorf("%w: nights must be at least 1", ErrValidation)
	}
	if nightlyRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: nightly rate must not be negative", ErrValidation)
	}

	total := nightlyRate.Mul(decimal.NewFromInt(int64(nights)))
	for _, a := range addons {
		if a.Quantity < 1 {
			return decimal.Zero, fmt.Errorf("%w: add-on %q quantity must be at least 1", ErrValidation, a.Name)
		}
		if a.Price.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: add-on %q price must not be negative", ErrValidation, a.Name)
		}
		total = total.Add(a.Price.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}

	return total.Truncate(2), nil
}
