package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus values. Status only moves forward: pending → processing →
// success|failed, plus the administrative success → refunded transition.
const (
	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusSuccess    = "success"
	TxStatusFailed     = "failed"
	TxStatusRefunded   = "refunded"
)

// TransactionMode selects the provider UI flavor.
const (
	TxModeElements = "elements" // embedded provider UI, order handed to the client
	TxModeCheckout = "checkout" // full-page redirect to a provider-hosted page
)

// Error categories surfaced to clients on failure.
const (
	ErrCategoryCardError      = "card_error"
	ErrCategoryValidation     = "validation_error"
	ErrCategoryGatewayTimeout = "gateway_timeout"
	ErrCategoryUnknown        = "unknown"
)

// Transaction is a single payment attempt tracked from initiation to its
// terminal outcome.
type Transaction struct {
	ID                   uuid.UUID        `json:"id"`
	TransactionID        string           `json:"transaction_id"` // opaque public id, e.g. TXN-...
	UserID               uuid.UUID        `json:"user_id"`
	CourseID             uuid.UUID        `json:"course_id"`
	OriginalAmount       decimal.Decimal  `json:"original_amount"`
	DiscountCode         *string          `json:"discount_code,omitempty"`
	DiscountAmount       decimal.Decimal  `json:"discount_amount"`
	GSTAmount            decimal.Decimal  `json:"gst_amount"`
	FinalAmount          decimal.Decimal  `json:"final_amount"`
	Currency             string           `json:"currency"`
	Mode                 string           `json:"mode"`
	Provider             string           `json:"provider"`
	GatewayOrderID       *string          `json:"gateway_order_id,omitempty"`
	GatewayTransactionID *string          `json:"gateway_transaction_id,omitempty"`
	PaymentMethod        *string          `json:"payment_method,omitempty"`
	Status               string           `json:"status"`
	ErrorCode            *string          `json:"error_code,omitempty"`
	ErrorMessage         *string          `json:"error_message,omitempty"`
	ErrorCategory        *string          `json:"error_category,omitempty"`
	RefundID             *string          `json:"refund_id,omitempty"`
	RefundAmount         *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundedAt           *time.Time       `json:"refunded_at,omitempty"`
	ReceiptKey           *string          `json:"-"`
	InitiatedAt          time.Time        `json:"initiated_at"`
	CallbackReceivedAt   *time.Time       `json:"callback_received_at,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Terminal reports whether the status is a final one.
func TerminalStatus(status string) bool {
	switch status {
	case TxStatusSuccess, TxStatusFailed, TxStatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether a status change is allowed by the lifecycle.
func CanTransition(from, to string) bool {
	switch from {
	case TxStatusPending:
		return to == TxStatusProcessing || to == TxStatusSuccess || to == TxStatusFailed
	case TxStatusProcessing:
		return to == TxStatusSuccess || to == TxStatusFailed
	case TxStatusSuccess:
		return to == TxStatusRefunded
	}
	return false
}

// TimelineStep is one checkpoint in the client-rendered status timeline.
type TimelineStep struct {
	Label     string     `json:"label"`
	Complete  bool       `json:"complete"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Timeline derives the three fixed checkpoints from the transaction state:
// Initiated (always complete), Processing (complete once status left pending)
// and Completed/Failed (complete once terminal).
func (t *Transaction) Timeline() []TimelineStep {
	initiated := t.InitiatedAt
	steps := []TimelineStep{
		{Label: "Initiated", Complete: true, Timestamp: &initiated},
		{Label: "Processing", Complete: t.Status != TxStatusPending, Timestamp: t.CallbackReceivedAt},
	}
	last := TimelineStep{Label: "Completed", Complete: TerminalStatus(t.Status), Timestamp: t.CompletedAt}
	if t.Status == TxStatusFailed {
		last.Label = "Failed"
	}
	return append(steps, last)
}
