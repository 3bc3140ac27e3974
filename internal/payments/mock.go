package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// MockProvider is a local stand-in for the real gateway. It hands the
// browser to the in-process mock gateway page, which fabricates the
// callback. Never enabled in production; config.Load refuses the
// combination.
type MockProvider struct {
	secret  string
	baseURL string
}

// NewMockProvider creates the mock provider. baseURL is the server's public
// base URL used to build the mock gateway page address.
func NewMockProvider(secret, baseURL string) *MockProvider {
	return &MockProvider{secret: secret, baseURL: baseURL}
}

// Name returns the provider name.
func (p *MockProvider) Name() string { return "mock" }

// CreateOrder fabricates an order id and, for checkout mode, a URL to the
// local mock gateway page carrying the same query contract the real
// hosted page would receive.
func (p *MockProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	orderID := "MOCKORD-" + randomHex(8)

	if req.Mode == "checkout" {
		q := url.Values{}
		q.Set("transactionId", req.TransactionID)
		q.Set("amount", req.Amount.StringFixed(2))
		q.Set("customerName", req.CustomerName)
		q.Set("customerEmail", req.CustomerEmail)
		if req.CustomerPhone != "" {
			q.Set("customerPhone", req.CustomerPhone)
		}
		q.Set("callbackUrl", req.CallbackURL)
		q.Set("merchantId", "LEARNHUB_DEV")
		return CreateOrderResponse{
			OrderID:    orderID,
			PaymentURL: p.baseURL + "/mock-gateway/pay?" + q.Encode(),
		}, nil
	}
	return CreateOrderResponse{OrderID: orderID, KeyID: "mock_key"}, nil
}

// FetchPayment has no provider-side state to consult; reconciliation treats
// mock transactions as still pending.
func (p *MockProvider) FetchPayment(ctx context.Context, gatewayOrderID string) (*PaymentInfo, error) {
	return &PaymentInfo{Status: ProviderPaymentPending}, nil
}

// Refund fabricates a refund reference.
func (p *MockProvider) Refund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency string) (string, error) {
	return "MOCKRFND-" + randomHex(8), nil
}

// VerifyCallbackSignature checks the HMAC the mock gateway page attached.
func (p *MockProvider) VerifyCallbackSignature(cb CallbackParams) bool {
	return verifyHMAC(p.secret, MockCallbackMessage(cb.TransactionID, cb.Status, cb.GatewayTransactionID), cb.Signature)
}

// VerifyWebhookSignature checks a mock webhook body signature.
func (p *MockProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifyHMAC(p.secret, string(body), signature)
}

// MockCallbackMessage is the canonical string the mock gateway signs.
func MockCallbackMessage(transactionID, status, gatewayTransactionID string) string {
	return fmt.Sprintf("%s|%s|%s", transactionID, status, gatewayTransactionID)
}

// SignMockCallback computes the signature the mock gateway attaches to its
// fabricated callbacks. Shared with the mockgateway handler.
func SignMockCallback(secret, transactionID, status, gatewayTransactionID string) string {
	return signHMAC(secret, MockCallbackMessage(transactionID, status, gatewayTransactionID))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
