package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enrollment links a user to a purchased (or granted) course and tracks
// progress through its modules.
type Enrollment struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	CourseID           uuid.UUID       `json:"course_id"`
	TransactionID      *uuid.UUID      `json:"transaction_id,omitempty"`
	CompletedVideos    json.RawMessage `json:"completed_videos"`
	CompletedExercises json.RawMessage `json:"completed_exercises"`
	EnrolledAt         time.Time       `json:"enrolled_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CompletedIDs decodes the stored module-id arrays.
func (e *Enrollment) CompletedIDs() (videos, exercises []string, err error) {
	if len(e.CompletedVideos) > 0 {
		if err = json.Unmarshal(e.CompletedVideos, &videos); err != nil {
			return nil, nil, err
		}
	}
	if len(e.CompletedExercises) > 0 {
		if err = json.Unmarshal(e.CompletedExercises, &exercises); err != nil {
			return nil, nil, err
		}
	}
	return videos, exercises, nil
}

// Progress computes the completion percentage against a course module list.
func (e *Enrollment) Progress(modules []CourseModule) float64 {
	if len(modules) == 0 {
		return 0
	}
	videos, exercises, err := e.CompletedIDs()
	if err != nil {
		return 0
	}
	done := make(map[string]struct{}, len(videos)+len(exercises))
	for _, id := range videos {
		done[id] = struct{}{}
	}
	for _, id := range exercises {
		done[id] = struct{}{}
	}
	count := 0
	for _, m := range modules {
		if _, ok := done[m.ID]; ok {
			count++
		}
	}
	return float64(count) / float64(len(modules)) * 100
}
