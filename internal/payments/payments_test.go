package payments

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
)

func TestNewTransactionID(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionID()
	assert.True(t, strings.HasPrefix(a, "TXN-"))
	assert.Len(t, a, 4+24)
	assert.NotEqual(t, a, b)
}

func TestMockCallbackSignatureRoundTrip(t *testing.T) {
	p := NewMockProvider("test-secret", "http://localhost:8080")

	sig := SignMockCallback("test-secret", "TXN-abc", "success", "MOCKPAY-123")
	ok := p.VerifyCallbackSignature(CallbackParams{
		TransactionID:        "TXN-abc",
		Status:               "success",
		GatewayTransactionID: "MOCKPAY-123",
		Signature:            sig,
	})
	assert.True(t, ok)

	// Any tampered field invalidates the signature.
	assert.False(t, p.VerifyCallbackSignature(CallbackParams{
		TransactionID:        "TXN-abc",
		Status:               "failed",
		GatewayTransactionID: "MOCKPAY-123",
		Signature:            sig,
	}))
	assert.False(t, p.VerifyCallbackSignature(CallbackParams{
		TransactionID:        "TXN-abc",
		Status:               "success",
		GatewayTransactionID: "MOCKPAY-123",
		Signature:            "deadbeef",
	}))
}

func TestMockProviderCreateOrder(t *testing.T) {
	p := NewMockProvider("s", "http://app.local")

	elements, err := p.CreateOrder(context.Background(), CreateOrderRequest{
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(1180),
		Currency:      "INR",
		Mode:          models.TxModeElements,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(elements.OrderID, "MOCKORD-"))
	assert.Empty(t, elements.PaymentURL)

	checkout, err := p.CreateOrder(context.Background(), CreateOrderRequest{
		TransactionID: "TXN-2",
		Amount:        decimal.NewFromInt(500),
		Currency:      "INR",
		Mode:          models.TxModeCheckout,
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
		CallbackURL:   "http://app.local/api/payment/callback",
	})
	require.NoError(t, err)
	assert.Contains(t, checkout.PaymentURL, "http://app.local/mock-gateway/pay?")
	assert.Contains(t, checkout.PaymentURL, "transactionId=TXN-2")
	assert.Contains(t, checkout.PaymentURL, "merchantId=LEARNHUB_DEV")
}

func TestParseWebhookBody(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_123", "order_id": "order_456",
			"status": "captured", "method": "upi"
		}}}
	}`)
	evt, err := parseWebhookBody(body)
	require.NoError(t, err)
	assert.Equal(t, "order_456", evt.GatewayOrderID)
	assert.Equal(t, "pay_123", evt.GatewayTransactionID)
	assert.Equal(t, ProviderPaymentCaptured, evt.Status)
	assert.Equal(t, "upi", evt.Method)

	failed := []byte(`{
		"event": "payment.failed",
		"payload": {"payment": {"entity": {
			"id": "pay_9", "order_id": "order_9",
			"error_code": "BAD_REQUEST_ERROR", "error_description": "card declined"
		}}}
	}`)
	evt, err = parseWebhookBody(failed)
	require.NoError(t, err)
	assert.Equal(t, ProviderPaymentFailed, evt.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR", evt.ErrorCode)

	_, err = parseWebhookBody([]byte(`{"event": "order.paid", "payload": {"payment": {"entity": {"order_id": "o"}}}}`))
	assert.Error(t, err)

	_, err = parseWebhookBody([]byte(`not json`))
	assert.Error(t, err)
}

func TestWebhookSignatureVerification(t *testing.T) {
	p := NewMockProvider("hook-secret", "")
	body := []byte(`{"event":"payment.captured"}`)
	sig := signHMAC("hook-secret", string(body))
	assert.True(t, p.VerifyWebhookSignature(body, sig))
	assert.False(t, p.VerifyWebhookSignature(body, "bad"))
	assert.False(t, p.VerifyWebhookSignature([]byte(`{}`), sig))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, models.ErrCategoryValidation, categorize("BAD_REQUEST_ERROR"))
	assert.Equal(t, models.ErrCategoryGatewayTimeout, categorize("GATEWAY_ERROR"))
	assert.Equal(t, models.ErrCategoryUnknown, categorize(""))
	assert.Equal(t, models.ErrCategoryCardError, categorize("CARD_DECLINED"))
}

func TestGenerateReceiptPDF(t *testing.T) {
	method := "upi"
	gwTxn := "pay_abc"
	code := "WELCOME10"
	now := time.Now()
	tx := &models.Transaction{
		ID:                   uuid.New(),
		TransactionID:        "TXN-receipt",
		UserID:               uuid.New(),
		CourseID:             uuid.New(),
		OriginalAmount:       decimal.NewFromInt(1000),
		DiscountCode:         &code,
		DiscountAmount:       decimal.NewFromInt(100),
		GSTAmount:            decimal.NewFromInt(162),
		FinalAmount:          decimal.NewFromInt(1062),
		Currency:             "INR",
		Status:               models.TxStatusSuccess,
		PaymentMethod:        &method,
		GatewayTransactionID: &gwTxn,
		CompletedAt:          &now,
		CreatedAt:            now,
	}

	pdf, err := GenerateReceiptPDF(ReceiptData{
		Transaction: tx,
		CourseTitle: "Intro to Distributed Systems",
		UserName:    "Asha Rao",
		UserEmail:   "asha@example.com",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Greater(t, len(pdf), 500)
}

func TestGenerateReceiptPDFRequiresSuccess(t *testing.T) {
	tx := &models.Transaction{
		TransactionID:  "TXN-pending",
		OriginalAmount: decimal.NewFromInt(100),
		FinalAmount:    decimal.NewFromInt(118),
		Currency:       "INR",
		Status:         models.TxStatusPending,
	}
	_, err := GenerateReceiptPDF(ReceiptData{Transaction: tx})
	assert.ErrorIs(t, err, ErrReceiptUnavailable)
}

type failingProvider struct {
	MockProvider
	calls int
}

func (f *failingProvider) Name() string { return "failing" }

func (f *failingProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	f.calls++
	return CreateOrderResponse{}, errors.New("gateway down")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	inner := &failingProvider{}
	p := WithBreaker(inner, time.Second, nil)

	req := CreateOrderRequest{TransactionID: "TXN-x", Amount: decimal.NewFromInt(1), Currency: "INR"}
	for i := 0; i < 5; i++ {
		_, err := p.CreateOrder(context.Background(), req)
		require.Error(t, err)
	}

	// Once open, calls short-circuit without reaching the provider.
	callsBefore := inner.calls
	_, err := p.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Equal(t, callsBefore, inner.calls)
}
