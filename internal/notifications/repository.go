package notifications

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
)

// Repository persists email delivery records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts an email log entry.
func (r *Repository) Record(ctx context.Context, log *models.EmailLog) error {
	const q = `INSERT INTO email_logs (email_type, recipient, subject, transaction_id, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.EmailType, log.Recipient, log.Subject,
		log.TransactionID, log.Status, log.Error, log.SentAt).
		Scan(&log.ID, &log.CreatedAt)
}

// List returns recent email log entries, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.EmailLog, error) {
	const q = `SELECT id, email_type, recipient, subject, transaction_id, status, error, sent_at, created_at
		FROM email_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.EmailType, &l.Recipient, &l.Subject,
			&l.TransactionID, &l.Status, &l.Error, &l.SentAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
