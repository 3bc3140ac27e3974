package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func baseCode() DiscountCode {
	return DiscountCode{
		Code:      "WELCOME10",
		Type:      DiscountTypePercentage,
		Value:     decimal.NewFromInt(10),
		Active:    true,
		ValidFrom: time.Now().Add(-time.Hour),
	}
}

func TestDiscountUsable(t *testing.T) {
	now := time.Now()

	d := baseCode()
	assert.True(t, d.Usable(now))

	d = baseCode()
	d.Active = false
	assert.False(t, d.Usable(now))

	d = baseCode()
	d.ValidFrom = now.Add(time.Hour)
	assert.False(t, d.Usable(now), "not yet valid")

	d = baseCode()
	past := now.Add(-time.Minute)
	d.ValidUntil = &past
	assert.False(t, d.Usable(now), "expired")

	d = baseCode()
	d.MaxUses = 1
	d.UsedCount = 1
	assert.False(t, d.Usable(now), "exhausted")

	d = baseCode()
	d.MaxUses = 0
	d.UsedCount = 9999
	assert.True(t, d.Usable(now), "zero max_uses means unlimited")
}

func TestDiscountAppliesTo(t *testing.T) {
	courseA := uuid.New()
	courseB := uuid.New()

	d := baseCode()
	assert.True(t, d.AppliesTo(courseA), "platform-wide code applies everywhere")

	d.CourseID = &courseA
	assert.True(t, d.AppliesTo(courseA))
	assert.False(t, d.AppliesTo(courseB))
}
