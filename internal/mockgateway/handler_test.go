package mockgateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/payments"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/mock-gateway/pay", h.Pay)
	r.GET("/mock-gateway/simulate", h.Simulate)
	return r
}

func TestPayPageRenders(t *testing.T) {
	h := NewHandler("secret", 0, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/mock-gateway/pay?transactionId=TXN-1&amount=1180.00&callbackUrl="+
			url.QueryEscape("http://localhost:8080/api/payment/callback"), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "TXN-1")
	assert.Contains(t, body, "1180.00")
	assert.Contains(t, body, "/mock-gateway/simulate?")
}

func TestPayPageRequiresParams(t *testing.T) {
	h := NewHandler("secret", 0, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mock-gateway/pay", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulateSignsCallback(t *testing.T) {
	h := NewHandler("secret", 0, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/mock-gateway/simulate?result=success&transactionId=TXN-9&callbackUrl="+
			url.QueryEscape("http://localhost:8080/api/payment/callback"), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), "http://localhost:8080/api/payment/callback?"))

	q := loc.Query()
	assert.Equal(t, "TXN-9", q.Get("transactionId"))
	assert.Equal(t, "success", q.Get("status"))
	gwTxn := q.Get("gatewayTransactionId")
	assert.True(t, strings.HasPrefix(gwTxn, "MOCKPAY-"))

	// The redirect carries a signature the mock provider accepts.
	p := payments.NewMockProvider("secret", "")
	assert.True(t, p.VerifyCallbackSignature(payments.CallbackParams{
		TransactionID:        "TXN-9",
		Status:               "success",
		GatewayTransactionID: gwTxn,
		Signature:            q.Get("signature"),
	}))
}

func TestSimulateMergesCallbackQuery(t *testing.T) {
	h := NewHandler("secret", 0, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/mock-gateway/simulate?result=success&transactionId=TXN-7&callbackUrl="+
			url.QueryEscape("http://localhost:8080/api/payment/callback?session=abc"), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotContains(t, loc.String(), "??")

	q := loc.Query()
	assert.Equal(t, "abc", q.Get("session"))
	assert.Equal(t, "TXN-7", q.Get("transactionId"))
	assert.NotEmpty(t, q.Get("signature"))
}

func TestSimulateFailureCarriesErrorDetails(t *testing.T) {
	h := NewHandler("secret", 0, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/mock-gateway/simulate?result=failure&transactionId=TXN-2&callbackUrl="+
			url.QueryEscape("http://localhost:8080/api/payment/callback"), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	assert.Equal(t, "failed", q.Get("status"))
	assert.Equal(t, "MOCK_ERROR_001", q.Get("errorCode"))
	assert.NotEmpty(t, q.Get("errorMessage"))
}
