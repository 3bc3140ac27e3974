package discounts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/pricing"
)

var (
	// ErrCodeNotFound covers unknown, inactive, expired and exhausted codes;
	// clients get the same answer for all of them.
	ErrCodeNotFound = errors.New("discount code not found or inactive")
	// ErrCodeScope means the code exists but does not apply to the course.
	ErrCodeScope = errors.New("discount code does not apply to this course")
)

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckUsable applies the business rules to an already-loaded code. Pure;
// the same code+course+instant always yields the same answer.
func CheckUsable(d *models.DiscountCode, courseID uuid.UUID, now time.Time) (*pricing.Discount, error) {
	if d == nil || !d.Usable(now) {
		return nil, ErrCodeNotFound
	}
	if !d.AppliesTo(courseID) {
		return nil, ErrCodeScope
	}
	return &pricing.Discount{Type: d.Type, Value: d.Value}, nil
}
