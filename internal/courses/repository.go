package courses

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
)

// Repository handles course persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a courses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a course by ID, including its module list.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	const q = `SELECT id, title, description, category, instructor_name, price, currency, modules, published, created_by, created_at, updated_at
		FROM courses WHERE id = $1`
	var c models.Course
	var modules []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.InstructorName,
		&c.Price, &c.Currency, &modules, &c.Published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Modules = json.RawMessage(modules)
	return &c, nil
}

// ListPublished returns published courses, newest first, without module
// payloads (list views are read-heavy and don't need them).
func (r *Repository) ListPublished(ctx context.Context, category string) ([]models.Course, error) {
	const q = `SELECT id, title, description, category, instructor_name, price, currency, published, created_by, created_at, updated_at
		FROM courses WHERE published AND ($1 = '' OR category = $1) ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.InstructorName,
			&c.Price, &c.Currency, &c.Published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListByCreator returns all courses created by a user (published or not).
func (r *Repository) ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]models.Course, error) {
	const q = `SELECT id, title, description, category, instructor_name, price, currency, published, created_by, created_at, updated_at
		FROM courses WHERE created_by = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, createdBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.InstructorName,
			&c.Price, &c.Currency, &c.Published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Create inserts a course.
func (r *Repository) Create(ctx context.Context, c *models.Course) error {
	const q = `INSERT INTO courses (title, description, category, instructor_name, price, currency, modules, published, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '[]'::jsonb), $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.Title, c.Description, c.Category, c.InstructorName,
		c.Price, c.Currency, []byte(c.Modules), c.Published, c.CreatedBy).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update replaces mutable fields of a course.
func (r *Repository) Update(ctx context.Context, c *models.Course) error {
	const q = `UPDATE courses SET title=$1, description=$2, category=$3, instructor_name=$4,
		price=$5, currency=$6, modules=COALESCE($7, modules), published=$8, updated_at=NOW()
		WHERE id=$9 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, c.Title, c.Description, c.Category, c.InstructorName,
		c.Price, c.Currency, []byte(c.Modules), c.Published, c.ID).Scan(&c.UpdatedAt)
}
