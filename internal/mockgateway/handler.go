package mockgateway

import (
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/payments"
	"github.com/learnhub/backend/pkg/response"
)

// Handler serves the local stand-in gateway pages used in development. It is
// never mounted when the app runs in production.
type Handler struct {
	secret string
	delay  time.Duration
	logger *zap.Logger
}

// NewHandler creates the mock gateway handler. delay simulates provider
// processing time before the callback redirect.
func NewHandler(secret string, delay time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{secret: secret, delay: delay, logger: logger}
}

var payPage = template.Must(template.New("pay").Parse(`<!doctype html>
<html>
<head><title>Mock Gateway</title></head>
<body>
  <h1>Mock Payment Gateway</h1>
  <p>Merchant: {{.MerchantID}}</p>
  <p>Paying <strong>{{.Amount}}</strong> for transaction <code>{{.TransactionID}}</code></p>
  <p>Customer: {{.CustomerName}} &lt;{{.CustomerEmail}}&gt;</p>
  <p>
    <a href="{{.SuccessURL}}">Simulate successful payment</a><br>
    <a href="{{.FailureURL}}">Simulate failed payment</a>
  </p>
</body>
</html>`))

type payPageData struct {
	MerchantID    string
	TransactionID string
	Amount        string
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	FailureURL    string
}

// Pay handles GET /mock-gateway/pay. It renders the hosted-checkout page a
// real provider would serve, with links that fabricate either outcome.
func (h *Handler) Pay(c *gin.Context) {
	txnID := c.Query("transactionId")
	callbackURL := c.Query("callbackUrl")
	if txnID == "" || callbackURL == "" {
		response.BadRequest(c, "missing transactionId or callbackUrl")
		return
	}

	simulate := func(result string) string {
		q := url.Values{}
		q.Set("transactionId", txnID)
		q.Set("callbackUrl", callbackURL)
		q.Set("result", result)
		return "/mock-gateway/simulate?" + q.Encode()
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := payPage.Execute(c.Writer, payPageData{
		MerchantID:    c.DefaultQuery("merchantId", "LEARNHUB_DEV"),
		TransactionID: txnID,
		Amount:        c.Query("amount"),
		CustomerName:  c.Query("customerName"),
		CustomerEmail: c.Query("customerEmail"),
		SuccessURL:    simulate("success"),
		FailureURL:    simulate("failure"),
	})
	if err != nil {
		h.logger.Error("mock gateway page render failed", zap.Error(err))
	}
}

// Simulate handles GET /mock-gateway/simulate. After a short artificial
// delay it fabricates a gateway payment id, signs the outcome and bounces
// the browser to the merchant callback URL.
func (h *Handler) Simulate(c *gin.Context) {
	txnID := c.Query("transactionId")
	callbackURL := c.Query("callbackUrl")
	result := c.Query("result")
	if txnID == "" || callbackURL == "" {
		response.BadRequest(c, "missing transactionId or callbackUrl")
		return
	}
	target, err := url.Parse(callbackURL)
	if err != nil {
		response.BadRequest(c, "invalid callbackUrl")
		return
	}

	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-c.Request.Context().Done():
			return
		}
	}

	status := "success"
	if result != "success" {
		status = "failed"
	}
	gatewayTxnID := "MOCKPAY-" + payments.NewTransactionID()[4:]

	// Merge into any query the merchant already put on the callback URL.
	q := target.Query()
	q.Set("transactionId", txnID)
	q.Set("status", status)
	q.Set("gatewayTransactionId", gatewayTxnID)
	q.Set("signature", payments.SignMockCallback(h.secret, txnID, status, gatewayTxnID))
	if status == "failed" {
		q.Set("errorCode", "MOCK_ERROR_001")
		q.Set("errorMessage", "payment declined by mock gateway")
	}

	h.logger.Info("mock gateway fabricated callback",
		zap.String("transaction_id", txnID),
		zap.String("status", status),
	)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}
