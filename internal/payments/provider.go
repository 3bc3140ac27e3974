package payments

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest asks the provider for a payment object sized to the
// final amount.
type CreateOrderRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Mode          string // elements | checkout
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CallbackURL   string // where the browser lands after payment
}

// CreateOrderResponse carries what the client needs to hand off to the
// provider UI: an order id + key for embedded mode, or a hosted payment URL
// for redirect mode.
type CreateOrderResponse struct {
	OrderID    string
	KeyID      string
	PaymentURL string
}

// PaymentInfo is the provider-side view of a payment, used by callback
// verification and reconciliation.
type PaymentInfo struct {
	GatewayTransactionID string
	Status               string // captured | failed | pending
	Method               string
	ErrorCode            string
	ErrorMessage         string
}

// Provider-side payment statuses.
const (
	ProviderPaymentCaptured = "captured"
	ProviderPaymentFailed   = "failed"
	ProviderPaymentPending  = "pending"
)

// CallbackParams are the query parameters the provider (or mock gateway)
// appends to the callback redirect.
type CallbackParams struct {
	TransactionID        string
	GatewayOrderID       string // resolved server-side from the transaction
	Status               string // success | failed
	GatewayTransactionID string
	Signature            string
	ErrorCode            string
	ErrorMessage         string
}

// Provider abstracts the payment gateway.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	// FetchPayment returns provider-side state for a gateway order, used by
	// the reconciler for transactions whose callback never arrived.
	FetchPayment(ctx context.Context, gatewayOrderID string) (*PaymentInfo, error)
	// Refund issues a provider refund and returns its reference.
	Refund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency string) (string, error)
	// VerifyCallbackSignature checks the signature on a browser callback.
	VerifyCallbackSignature(p CallbackParams) bool
	// VerifyWebhookSignature checks the HMAC header on a server webhook body.
	VerifyWebhookSignature(body []byte, signature string) bool
}

// NewTransactionID mints an opaque platform-local transaction id.
func NewTransactionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "TXN-" + hex.EncodeToString(b)
}

// signHMAC computes the hex HMAC-SHA256 of msg under secret.
func signHMAC(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyHMAC compares an expected HMAC in constant time.
func verifyHMAC(secret, msg, signature string) bool {
	expected := signHMAC(secret, msg)
	return hmac.Equal([]byte(expected), []byte(signature))
}
