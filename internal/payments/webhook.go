package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/learnhub/backend/internal/discounts"
)

// webhookBody mirrors the provider's webhook envelope. The mock gateway
// posts the same shape in dev.
type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				Method           string `json:"method"`
				ErrorCode        string `json:"error_code"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// parseWebhookBody extracts the settlement outcome from a webhook payload.
// Only payment.captured and payment.failed events carry one.
func parseWebhookBody(body []byte) (WebhookEvent, error) {
	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return WebhookEvent{}, fmt.Errorf("parsing webhook body: %w", err)
	}
	entity := b.Payload.Payment.Entity
	if entity.OrderID == "" {
		return WebhookEvent{}, errors.New("webhook payload has no order id")
	}

	var status string
	switch b.Event {
	case "payment.captured":
		status = ProviderPaymentCaptured
	case "payment.failed":
		status = ProviderPaymentFailed
	default:
		return WebhookEvent{}, fmt.Errorf("unhandled webhook event %q", b.Event)
	}

	return WebhookEvent{
		GatewayOrderID:       entity.OrderID,
		GatewayTransactionID: entity.ID,
		Status:               status,
		Method:               entity.Method,
		ErrorCode:            entity.ErrorCode,
		ErrorMessage:         entity.ErrorDescription,
	}, nil
}

// isDiscountRejection reports whether initiation failed because the supplied
// code was unusable.
func isDiscountRejection(err error) bool {
	return errors.Is(err, discounts.ErrCodeNotFound) || errors.Is(err, discounts.ErrCodeScope)
}
