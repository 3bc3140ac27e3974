package pricing

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNoDiscount(t *testing.T) {
	b, err := Calculate(dec("1000"), nil)
	require.NoError(t, err)
	assert.True(t, b.Original.Equal(dec("1000")))
	assert.True(t, b.Discount.IsZero())
	assert.True(t, b.Subtotal.Equal(dec("1000")))
	assert.True(t, b.GST.Equal(dec("180.00")), "gst was %s", b.GST)
	assert.True(t, b.Total.Equal(dec("1180.00")), "total was %s", b.Total)
}

func TestPercentageDiscount(t *testing.T) {
	b, err := Calculate(dec("1000"), &Discount{Type: models.DiscountTypePercentage, Value: dec("10")})
	require.NoError(t, err)
	assert.True(t, b.Discount.Equal(dec("100.00")))
	assert.True(t, b.Subtotal.Equal(dec("900")))
	assert.True(t, b.GST.Equal(dec("162.00")))
	assert.True(t, b.Total.Equal(dec("1062.00")))
}

func TestFlatDiscountClampsToPrice(t *testing.T) {
	b, err := Calculate(dec("500"), &Discount{Type: models.DiscountTypeFlat, Value: dec("600")})
	require.NoError(t, err)
	assert.True(t, b.Discount.Equal(dec("500")), "discount clamps to price, was %s", b.Discount)
	assert.True(t, b.Subtotal.IsZero())
	assert.True(t, b.GST.IsZero())
	assert.True(t, b.Total.IsZero())
}

func TestFlatDiscountWithinPrice(t *testing.T) {
	b, err := Calculate(dec("999.99"), &Discount{Type: models.DiscountTypeFlat, Value: dec("99.99")})
	require.NoError(t, err)
	assert.True(t, b.Discount.Equal(dec("99.99")))
	assert.True(t, b.Subtotal.Equal(dec("900.00")))
	assert.True(t, b.GST.Equal(dec("162.00")))
	assert.True(t, b.Total.Equal(dec("1062.00")))
}

func TestRoundingToTwoDecimals(t *testing.T) {
	// 333.33 * 10% = 33.333 -> 33.33; subtotal 300.00; gst 54.00
	b, err := Calculate(dec("333.33"), &Discount{Type: models.DiscountTypePercentage, Value: dec("10")})
	require.NoError(t, err)
	assert.True(t, b.Discount.Equal(dec("33.33")), "discount was %s", b.Discount)
	assert.True(t, b.Subtotal.Equal(dec("300.00")))
	assert.True(t, b.GST.Equal(dec("54.00")))
	assert.True(t, b.Total.Equal(dec("354.00")))
}

func TestErrors(t *testing.T) {
	_, err := Calculate(dec("0"), nil)
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = Calculate(dec("-10"), nil)
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = Calculate(dec("100"), &Discount{Type: "bogus", Value: dec("5")})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Calculate(dec("100"), &Discount{Type: models.DiscountTypeFlat, Value: dec("-5")})
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestTotalInvariantAcrossRange(t *testing.T) {
	// total = (P - discount) * 1.18 and total >= 0 for a sweep of prices and
	// percentage discounts.
	for _, price := range []string{"1", "49.99", "100", "333.33", "1000", "12345.67"} {
		for v := 0; v <= 100; v += 5 {
			p := dec(price)
			b, err := Calculate(p, &Discount{Type: models.DiscountTypePercentage, Value: decimal.NewFromInt(int64(v))})
			require.NoError(t, err)
			assert.False(t, b.Total.IsNegative(), "price=%s v=%d", price, v)
			assert.False(t, b.Subtotal.IsNegative())
			expected := b.Subtotal.Add(b.Subtotal.Mul(GSTRate).Round(2)).Round(2)
			assert.True(t, b.Total.Equal(expected), "price=%s v=%d total=%s expected=%s", price, v, b.Total, expected)
		}
	}
}

func TestIdempotent(t *testing.T) {
	d := &Discount{Type: models.DiscountTypePercentage, Value: dec("12.5")}
	first, err := Calculate(dec("777.77"), d)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Calculate(dec("777.77"), d)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(first), fmt.Sprint(again))
	}
}
