package discounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
)

// ErrExhausted is returned by Redeem when the code hit its usage limit.
var ErrExhausted = errors.New("discount code usage limit reached")

// Repository handles discount code persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a discounts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectCols = `id, code, discount_type, value, active, course_id, created_by, max_uses, used_count, valid_from, valid_until, created_at, updated_at`

func scanCode(row pgx.Row) (*models.DiscountCode, error) {
	var d models.DiscountCode
	err := row.Scan(&d.ID, &d.Code, &d.Type, &d.Value, &d.Active, &d.CourseID, &d.CreatedBy,
		&d.MaxUses, &d.UsedCount, &d.ValidFrom, &d.ValidUntil, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByCode returns a code by its normalized string.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	return scanCode(r.pool.QueryRow(ctx, `SELECT `+selectCols+` FROM discount_codes WHERE code = $1`, code))
}

// Create inserts a new code.
func (r *Repository) Create(ctx context.Context, d *models.DiscountCode) error {
	const q = `INSERT INTO discount_codes (code, discount_type, value, active, course_id, created_by, max_uses, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, used_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.Code, d.Type, d.Value, d.Active, d.CourseID, d.CreatedBy,
		d.MaxUses, d.ValidFrom, d.ValidUntil).
		Scan(&d.ID, &d.UsedCount, &d.CreatedAt, &d.UpdatedAt)
}

// ListByCreator returns codes created by a partner/admin.
func (r *Repository) ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]models.DiscountCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCols+` FROM discount_codes WHERE created_by = $1 ORDER BY created_at DESC`, createdBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DiscountCode
	for rows.Next() {
		d, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// Deactivate turns a code off.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE discount_codes SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// Redeem atomically increments used_count, refusing once the limit is hit.
// The guard lives in the WHERE clause, so two concurrent redemptions of a
// single-use code cannot both succeed.
func (r *Repository) Redeem(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE discount_codes SET used_count = used_count + 1, updated_at = NOW()
		 WHERE code = $1 AND active AND (max_uses = 0 OR used_count < max_uses)`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExhausted
	}
	return nil
}
