package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/models"
)

// Repository handles transaction persistence. Status columns only move
// forward: every update carries the allowed source statuses in its WHERE
// clause, so a late or duplicate callback cannot rewind a terminal row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txCols = `id, transaction_id, user_id, course_id, original_amount, discount_code,
	discount_amount, gst_amount, final_amount, currency, mode, provider,
	gateway_order_id, gateway_transaction_id, payment_method, status,
	error_code, error_message, error_category, refund_id, refund_amount, refunded_at,
	receipt_key, initiated_at, callback_received_at, completed_at, created_at, updated_at`

func scanTx(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.TransactionID, &t.UserID, &t.CourseID, &t.OriginalAmount, &t.DiscountCode,
		&t.DiscountAmount, &t.GSTAmount, &t.FinalAmount, &t.Currency, &t.Mode, &t.Provider,
		&t.GatewayOrderID, &t.GatewayTransactionID, &t.PaymentMethod, &t.Status,
		&t.ErrorCode, &t.ErrorMessage, &t.ErrorCategory, &t.RefundID, &t.RefundAmount, &t.RefundedAt,
		&t.ReceiptKey, &t.InitiatedAt, &t.CallbackReceivedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a new pending transaction.
func (r *Repository) Create(ctx context.Context, t *models.Transaction) error {
	const q = `INSERT INTO transactions (transaction_id, user_id, course_id, original_amount, discount_code,
			discount_amount, gst_amount, final_amount, currency, mode, provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, status, initiated_at, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.TransactionID, t.UserID, t.CourseID, t.OriginalAmount, t.DiscountCode,
		t.DiscountAmount, t.GSTAmount, t.FinalAmount, t.Currency, t.Mode, t.Provider).
		Scan(&t.ID, &t.Status, &t.InitiatedAt, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID looks a transaction up by its row id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTx(r.pool.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE id = $1`, id))
}

// GetByTransactionID looks a transaction up by its public identifier.
func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return scanTx(r.pool.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE transaction_id = $1`, transactionID))
}

// GetByGatewayOrderID resolves a transaction from the provider's order id,
// used by webhook delivery which does not carry our public id.
func (r *Repository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	return scanTx(r.pool.QueryRow(ctx, `SELECT `+txCols+` FROM transactions WHERE gateway_order_id = $1`, orderID))
}

// GetOpenAttempt returns the user's pending transaction for a course, if any.
func (r *Repository) GetOpenAttempt(ctx context.Context, userID, courseID uuid.UUID) (*models.Transaction, error) {
	const q = `SELECT ` + txCols + ` FROM transactions
		WHERE user_id = $1 AND course_id = $2 AND status = 'pending'`
	t, err := scanTx(r.pool.QueryRow(ctx, q, userID, courseID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// HasSuccessful reports whether the user already paid for the course.
func (r *Repository) HasSuccessful(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND course_id = $2 AND status = 'success')`,
		userID, courseID).Scan(&exists)
	return exists, err
}

// ListByUser returns the user's transactions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txCols+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectTxs(rows)
}

// ListAll returns every transaction, newest first, for finance review.
func (r *Repository) ListAll(ctx context.Context, limit int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txCols+` FROM transactions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectTxs(rows)
}

// ListStale returns non-terminal transactions initiated before the cutoff.
// The reconciliation sweep asks the provider what happened to them.
func (r *Repository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	const q = `SELECT ` + txCols + ` FROM transactions
		WHERE status IN ('pending', 'processing') AND initiated_at < $1
		ORDER BY initiated_at LIMIT $2`
	rows, err := r.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectTxs(rows)
}

func collectTxs(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var list []models.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// UpdatePricing refreshes the amounts and mode on a reused pending attempt.
// A retry may carry a different discount code than the original request.
func (r *Repository) UpdatePricing(ctx context.Context, t *models.Transaction) error {
	return r.forward(ctx, `UPDATE transactions
		SET original_amount = $2, discount_code = $3, discount_amount = $4,
			gst_amount = $5, final_amount = $6, mode = $7, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		t.ID, t.OriginalAmount, t.DiscountCode, t.DiscountAmount, t.GSTAmount, t.FinalAmount, t.Mode)
}

// SetGatewayOrder records the provider order created for a pending attempt.
func (r *Repository) SetGatewayOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET gateway_order_id = $2, updated_at = NOW() WHERE id = $1`, id, orderID)
	return err
}

// MarkProcessing moves a pending transaction to processing.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.forward(ctx, `UPDATE transactions
		SET status = 'processing', callback_received_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
}

// MarkSuccess records a captured payment.
func (r *Repository) MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID, method string) error {
	return r.forward(ctx, `UPDATE transactions
		SET status = 'success', gateway_transaction_id = $2, payment_method = NULLIF($3, ''),
			callback_received_at = COALESCE(callback_received_at, NOW()),
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`, id, gatewayTxnID, method)
}

// MarkFailed records a definitive failure with its error details.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, code, message, category string) error {
	return r.forward(ctx, `UPDATE transactions
		SET status = 'failed', error_code = NULLIF($2, ''), error_message = NULLIF($3, ''),
			error_category = $4,
			callback_received_at = COALESCE(callback_received_at, NOW()),
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`, id, code, message, category)
}

// MarkRefunded records a completed refund on a successful transaction.
func (r *Repository) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amount decimal.Decimal) error {
	return r.forward(ctx, `UPDATE transactions
		SET status = 'refunded', refund_id = $2, refund_amount = $3, refunded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'success'`, id, refundID, amount)
}

// SetReceiptKey stores the object key of a generated receipt.
func (r *Repository) SetReceiptKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET receipt_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
	return err
}

// ClearReceiptKey forgets a cached receipt so the next request re-renders it.
func (r *Repository) ClearReceiptKey(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET receipt_key = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *Repository) forward(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
