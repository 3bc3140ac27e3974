package discounts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "WELCOME10", NormalizeCode("  welcome10 "))
	assert.Equal(t, "FLAT500", NormalizeCode("flat500"))
}

func TestCheckUsable(t *testing.T) {
	now := time.Now()
	courseID := uuid.New()
	other := uuid.New()

	code := &models.DiscountCode{
		Code:      "WELCOME10",
		Type:      models.DiscountTypePercentage,
		Value:     decimal.NewFromInt(10),
		Active:    true,
		ValidFrom: now.Add(-time.Hour),
	}

	d, err := CheckUsable(code, courseID, now)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountTypePercentage, d.Type)
	assert.True(t, d.Value.Equal(decimal.NewFromInt(10)))

	// Re-validation is idempotent: same code + course gives the same result.
	again, err := CheckUsable(code, courseID, now)
	require.NoError(t, err)
	assert.Equal(t, d, again)

	// Course-scoped code rejects other courses.
	code.CourseID = &courseID
	_, err = CheckUsable(code, other, now)
	assert.ErrorIs(t, err, ErrCodeScope)

	// Inactive and missing codes look identical to callers.
	code.Active = false
	_, err = CheckUsable(code, courseID, now)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = CheckUsable(nil, courseID, now)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
