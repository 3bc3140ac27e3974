package enrollments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
)

// Repository handles enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an enrollment (idempotent per user+course).
func (r *Repository) Create(ctx context.Context, e *models.Enrollment) error {
	const q = `INSERT INTO enrollments (user_id, course_id, transaction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, completed_videos, completed_exercises, enrolled_at, updated_at`
	var videos, exercises []byte
	err := r.pool.QueryRow(ctx, q, e.UserID, e.CourseID, e.TransactionID).
		Scan(&e.ID, &videos, &exercises, &e.EnrolledAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	e.CompletedVideos = json.RawMessage(videos)
	e.CompletedExercises = json.RawMessage(exercises)
	return nil
}

// Get returns the enrollment for user+course.
func (r *Repository) Get(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	const q = `SELECT id, user_id, course_id, transaction_id, completed_videos, completed_exercises, enrolled_at, updated_at
		FROM enrollments WHERE user_id = $1 AND course_id = $2`
	var e models.Enrollment
	var videos, exercises []byte
	err := r.pool.QueryRow(ctx, q, userID, courseID).
		Scan(&e.ID, &e.UserID, &e.CourseID, &e.TransactionID, &videos, &exercises, &e.EnrolledAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.CompletedVideos = json.RawMessage(videos)
	e.CompletedExercises = json.RawMessage(exercises)
	return &e, nil
}

// ListByUser returns all enrollments for a user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	const q = `SELECT id, user_id, course_id, transaction_id, completed_videos, completed_exercises, enrolled_at, updated_at
		FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		var videos, exercises []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.TransactionID, &videos, &exercises, &e.EnrolledAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.CompletedVideos = json.RawMessage(videos)
		e.CompletedExercises = json.RawMessage(exercises)
		list = append(list, e)
	}
	return list, rows.Err()
}

// MarkModuleComplete appends a module id to the matching completion array if
// not already present. kind selects videos or exercises.
func (r *Repository) MarkModuleComplete(ctx context.Context, userID, courseID uuid.UUID, moduleID, kind string) error {
	column := "completed_videos"
	if kind == models.ModuleKindExercise {
		column = "completed_exercises"
	} else if kind != models.ModuleKindVideo {
		return fmt.Errorf("unknown module kind %q", kind)
	}
	q := fmt.Sprintf(`UPDATE enrollments
		SET %s = CASE WHEN %s ? $3 THEN %s ELSE %s || to_jsonb($3::text) END,
		    updated_at = NOW()
		WHERE user_id = $1 AND course_id = $2`, column, column, column, column)
	tag, err := r.pool.Exec(ctx, q, userID, courseID, moduleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("enrollment not found")
	}
	return nil
}
