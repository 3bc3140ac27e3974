package notifications

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/models"
)

func configWithoutSMTP() config.EmailConfig {
	return config.EmailConfig{FromAddress: "noreply@learnhub.example", FromName: "LearnHub"}
}

func TestRenderReceiptEmail(t *testing.T) {
	tx := &models.Transaction{
		TransactionID: "TXN-abc123",
		FinalAmount:   decimal.RequireFromString("1062.00"),
		Currency:      "INR",
	}
	subject, body, err := RenderEmail(EmailTypeReceipt, "Asha", "Go Fundamentals", tx)
	require.NoError(t, err)
	assert.Equal(t, "Payment receipt for Go Fundamentals", subject)
	assert.Contains(t, body, "Asha")
	assert.Contains(t, body, "TXN-abc123")
	assert.Contains(t, body, "INR 1062.00")
}

func TestRenderFailedEmail(t *testing.T) {
	reason := "card declined"
	tx := &models.Transaction{
		TransactionID: "TXN-failed",
		FinalAmount:   decimal.RequireFromString("500.00"),
		Currency:      "INR",
		ErrorMessage:  &reason,
	}
	subject, body, err := RenderEmail(EmailTypeFailed, "Ravi", "Kubernetes Deep Dive", tx)
	require.NoError(t, err)
	assert.Contains(t, subject, "failed")
	assert.Contains(t, body, "card declined")
	assert.Contains(t, body, "No money was deducted")
}

func TestRenderUnknownTypeRejected(t *testing.T) {
	tx := &models.Transaction{FinalAmount: decimal.Zero}
	_, _, err := RenderEmail("newsletter", "x", "y", tx)
	assert.Error(t, err)
}

func TestMailerUnconfigured(t *testing.T) {
	m := NewMailer(configWithoutSMTP(), nil)
	assert.False(t, m.Configured())
	err := m.Send("to@example.com", "s", "<p>b</p>")
	assert.ErrorIs(t, err, ErrSMTPUnconfigured)
}
