package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Module kinds within a course.
const (
	ModuleKindVideo    = "video"
	ModuleKindExercise = "exercise"
)

// CourseModule is one ordered entry in a course's content list.
type CourseModule struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Kind     string `json:"kind"` // video | exercise
	URL      string `json:"url,omitempty"`
	Duration int    `json:"duration,omitempty"` // seconds, videos only
}

// Course represents a purchasable course.
type Course struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	InstructorName string          `json:"instructor_name"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	Modules        json.RawMessage `json:"modules,omitempty"`
	Published      bool            `json:"published"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ModuleList decodes the JSONB module payload.
func (c *Course) ModuleList() ([]CourseModule, error) {
	if len(c.Modules) == 0 {
		return nil, nil
	}
	var list []CourseModule
	if err := json.Unmarshal(c.Modules, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Purchasable reports whether the course can go through checkout.
func (c *Course) Purchasable() bool {
	return c.Published && c.Price.IsPositive()
}
