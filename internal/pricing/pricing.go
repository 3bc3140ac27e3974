// Package pricing derives checkout amounts from a course price and an
// optional discount. It is pure: no I/O, identical output for identical
// input.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/models"
)

// GSTRate is the fixed tax rate applied to the discounted subtotal.
var GSTRate = decimal.NewFromFloat(0.18)

var (
	ErrNonPositivePrice = errors.New("price must be greater than zero")
	ErrUnknownType      = errors.New("unknown discount type")
	ErrNegativeValue    = errors.New("discount value must not be negative")
)

// Discount is the advisory result of code validation fed back into the
// calculator.
type Discount struct {
	Type  string          `json:"type"` // percentage | flat
	Value decimal.Decimal `json:"value"`
}

// Breakdown is the full price derivation, every field rounded to 2 decimals.
type Breakdown struct {
	Original decimal.Decimal `json:"original"`
	Discount decimal.Decimal `json:"discount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// Calculate derives the breakdown for a price and optional discount.
// The discount is clamped so the subtotal never goes negative.
func Calculate(price decimal.Decimal, d *Discount) (Breakdown, error) {
	if !price.IsPositive() {
		return Breakdown{}, ErrNonPositivePrice
	}

	original := price.Round(2)
	discount := decimal.Zero
	if d != nil {
		if d.Value.IsNegative() {
			return Breakdown{}, ErrNegativeValue
		}
		switch d.Type {
		case models.DiscountTypePercentage:
			discount = original.Mul(d.Value).Div(decimal.NewFromInt(100))
		case models.DiscountTypeFlat:
			discount = d.Value
		default:
			return Breakdown{}, ErrUnknownType
		}
		if discount.GreaterThan(original) {
			discount = original
		}
	}
	discount = discount.Round(2)

	subtotal := original.Sub(discount).Round(2)
	gst := subtotal.Mul(GSTRate).Round(2)
	total := subtotal.Add(gst).Round(2)

	return Breakdown{
		Original: original,
		Discount: discount,
		Subtotal: subtotal,
		GST:      gst,
		Total:    total,
	}, nil
}
