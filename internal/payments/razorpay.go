package payments

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/config"
)

// RazorpayProvider implements Provider against the Razorpay API.
type RazorpayProvider struct {
	client        *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

// NewRazorpayProvider creates the real gateway provider.
func NewRazorpayProvider(cfg config.RazorpayConfig) (*RazorpayProvider, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay credentials not configured")
	}
	return &RazorpayProvider{
		client:        razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// Name returns the provider name.
func (p *RazorpayProvider) Name() string { return "razorpay" }

// CreateOrder creates a Razorpay order (elements mode) or payment link
// (checkout mode) sized to the final amount.
func (p *RazorpayProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	// Razorpay amounts are in the smallest currency unit.
	paise := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	if req.Mode == "checkout" {
		data := map[string]interface{}{
			"amount":       paise,
			"currency":     req.Currency,
			"reference_id": req.TransactionID,
			"customer": map[string]interface{}{
				"name":    req.CustomerName,
				"email":   req.CustomerEmail,
				"contact": req.CustomerPhone,
			},
			"callback_url":    req.CallbackURL,
			"callback_method": "get",
		}
		link, err := p.client.PaymentLink.Create(data, nil)
		if err != nil {
			return CreateOrderResponse{}, fmt.Errorf("create payment link: %w", err)
		}
		id, _ := link["id"].(string)
		shortURL, _ := link["short_url"].(string)
		return CreateOrderResponse{OrderID: id, PaymentURL: shortURL}, nil
	}

	data := map[string]interface{}{
		"amount":   paise,
		"currency": req.Currency,
		"receipt":  req.TransactionID,
	}
	order, err := p.client.Order.Create(data, nil)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("create order: %w", err)
	}
	id, ok := order["id"].(string)
	if !ok {
		return CreateOrderResponse{}, fmt.Errorf("create order: missing id in response")
	}
	return CreateOrderResponse{OrderID: id, KeyID: p.keyID}, nil
}

// FetchPayment returns the latest payment attempt for an order.
func (p *RazorpayProvider) FetchPayment(ctx context.Context, gatewayOrderID string) (*PaymentInfo, error) {
	resp, err := p.client.Order.Payments(gatewayOrderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch order payments: %w", err)
	}
	items, _ := resp["items"].([]interface{})
	if len(items) == 0 {
		return &PaymentInfo{Status: ProviderPaymentPending}, nil
	}
	// Items are newest-first; prefer a captured payment if any exists.
	var latest map[string]interface{}
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if latest == nil {
			latest = m
		}
		if s, _ := m["status"].(string); s == "captured" {
			latest = m
			break
		}
	}
	if latest == nil {
		return &PaymentInfo{Status: ProviderPaymentPending}, nil
	}

	info := &PaymentInfo{}
	info.GatewayTransactionID, _ = latest["id"].(string)
	info.Method, _ = latest["method"].(string)
	switch s, _ := latest["status"].(string); s {
	case "captured":
		info.Status = ProviderPaymentCaptured
	case "failed":
		info.Status = ProviderPaymentFailed
		info.ErrorCode, _ = latest["error_code"].(string)
		info.ErrorMessage, _ = latest["error_description"].(string)
	default:
		info.Status = ProviderPaymentPending
	}
	return info, nil
}

// Refund issues a full or partial refund for a captured payment.
func (p *RazorpayProvider) Refund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency string) (string, error) {
	paise := int(amount.Mul(decimal.NewFromInt(100)).IntPart())
	resp, err := p.client.Payment.Refund(gatewayTransactionID, paise, nil, nil)
	if err != nil {
		return "", fmt.Errorf("refund: %w", err)
	}
	id, _ := resp["id"].(string)
	return id, nil
}

// VerifyCallbackSignature checks the checkout callback signature:
// HMAC-SHA256(order_id|payment_id) under the key secret.
func (p *RazorpayProvider) VerifyCallbackSignature(cb CallbackParams) bool {
	return verifyHMAC(p.keySecret, cb.GatewayOrderID+"|"+cb.GatewayTransactionID, cb.Signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw body.
func (p *RazorpayProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	if p.webhookSecret == "" {
		return false
	}
	return verifyHMAC(p.webhookSecret, string(body), signature)
}
