package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLog statuses.
const (
	EmailStatusQueued  = "queued"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
	EmailStatusSkipped = "skipped" // SMTP not configured
)

// EmailLog records one receipt/confirmation email attempt.
type EmailLog struct {
	ID            uuid.UUID  `json:"id"`
	EmailType     string     `json:"email_type"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	Status        string     `json:"status"`
	Error         *string    `json:"error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
