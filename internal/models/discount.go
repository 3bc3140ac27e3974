package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is percentage or flat.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFlat       = "flat"
)

// DiscountCode is a token entitling a reduction on a course price.
// Codes are stored upper-cased; lookups normalize first.
type DiscountCode struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	Type       string          `json:"type"` // percentage | flat
	Value      decimal.Decimal `json:"value"`
	Active     bool            `json:"active"`
	CourseID   *uuid.UUID      `json:"course_id,omitempty"` // nil = platform-wide
	CreatedBy  uuid.UUID       `json:"created_by"`
	MaxUses    int             `json:"max_uses"` // 0 = unlimited
	UsedCount  int             `json:"used_count"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Usable reports whether the code is active, within its validity window and
// not exhausted at the given instant.
func (d *DiscountCode) Usable(now time.Time) bool {
	if !d.Active {
		return false
	}
	if now.Before(d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	if d.MaxUses > 0 && d.UsedCount >= d.MaxUses {
		return false
	}
	return true
}

// AppliesTo reports whether the code's scope covers the given course.
func (d *DiscountCode) AppliesTo(courseID uuid.UUID) bool {
	return d.CourseID == nil || *d.CourseID == courseID
}
