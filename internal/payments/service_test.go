package payments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
)

// fakeTxStore keeps a single transaction in memory and records every status
// transition applied to it.
type fakeTxStore struct {
	tx          *models.Transaction
	transitions []string
}

func (f *fakeTxStore) Create(ctx context.Context, t *models.Transaction) error {
	f.tx = t
	return nil
}

func (f *fakeTxStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if f.tx == nil || f.tx.ID != id {
		return nil, ErrNotFound
	}
	return f.tx, nil
}

func (f *fakeTxStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if f.tx == nil || f.tx.TransactionID != transactionID {
		return nil, ErrNotFound
	}
	return f.tx, nil
}

func (f *fakeTxStore) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	if f.tx == nil || f.tx.GatewayOrderID == nil || *f.tx.GatewayOrderID != orderID {
		return nil, ErrNotFound
	}
	return f.tx, nil
}

func (f *fakeTxStore) GetOpenAttempt(ctx context.Context, userID, courseID uuid.UUID) (*models.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) HasSuccessful(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeTxStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) ListAll(ctx context.Context, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeTxStore) SetGatewayOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	f.tx.GatewayOrderID = &orderID
	return nil
}

func (f *fakeTxStore) UpdatePricing(ctx context.Context, t *models.Transaction) error {
	return nil
}

func (f *fakeTxStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if f.tx.Status != models.TxStatusPending {
		return ErrInvalidTransition
	}
	f.tx.Status = models.TxStatusProcessing
	f.transitions = append(f.transitions, models.TxStatusProcessing)
	return nil
}

func (f *fakeTxStore) MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID, method string) error {
	if f.tx.Status != models.TxStatusPending && f.tx.Status != models.TxStatusProcessing {
		return ErrInvalidTransition
	}
	f.tx.Status = models.TxStatusSuccess
	f.tx.GatewayTransactionID = &gatewayTxnID
	f.transitions = append(f.transitions, models.TxStatusSuccess)
	return nil
}

func (f *fakeTxStore) MarkFailed(ctx context.Context, id uuid.UUID, code, message, category string) error {
	if f.tx.Status != models.TxStatusPending && f.tx.Status != models.TxStatusProcessing {
		return ErrInvalidTransition
	}
	f.tx.Status = models.TxStatusFailed
	f.transitions = append(f.transitions, models.TxStatusFailed)
	return nil
}

func (f *fakeTxStore) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amount decimal.Decimal) error {
	if f.tx.Status != models.TxStatusSuccess {
		return ErrInvalidTransition
	}
	f.tx.Status = models.TxStatusRefunded
	f.transitions = append(f.transitions, models.TxStatusRefunded)
	return nil
}

func (f *fakeTxStore) SetReceiptKey(ctx context.Context, id uuid.UUID, key string) error {
	f.tx.ReceiptKey = &key
	return nil
}

func (f *fakeTxStore) ClearReceiptKey(ctx context.Context, id uuid.UUID) error {
	f.tx.ReceiptKey = nil
	return nil
}

type recordingEnroller struct {
	created []models.Enrollment
	fail    bool
}

func (r *recordingEnroller) Create(ctx context.Context, e *models.Enrollment) error {
	if r.fail {
		return errors.New("insert failed")
	}
	r.created = append(r.created, *e)
	return nil
}

func pendingTransaction() *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New(),
		TransactionID: NewTransactionID(),
		UserID:        uuid.New(),
		CourseID:      uuid.New(),
		FinalAmount:   decimal.NewFromInt(1180),
		Currency:      "INR",
		Status:        models.TxStatusPending,
	}
}

func settlementService(store *fakeTxStore, enroller *recordingEnroller) *Service {
	return NewService(&config.Config{}, store, nil, nil, enroller, nil,
		NewMockProvider("test-secret", ""), nil, nil, nil, zap.NewNop())
}

func successCallback(tx *models.Transaction) CallbackParams {
	return CallbackParams{
		TransactionID:        tx.TransactionID,
		Status:               "success",
		GatewayTransactionID: "MOCKPAY-1",
		Signature:            SignMockCallback("test-secret", tx.TransactionID, "success", "MOCKPAY-1"),
	}
}

func TestCallbackSettlementPassesThroughProcessing(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	enroller := &recordingEnroller{}
	svc := settlementService(store, enroller)

	tx, err := svc.HandleCallback(context.Background(), successCallback(store.tx))
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusSuccess, tx.Status)
	assert.Equal(t, []string{models.TxStatusProcessing, models.TxStatusSuccess}, store.transitions)
	require.Len(t, enroller.created, 1)
	assert.Equal(t, store.tx.CourseID, enroller.created[0].CourseID)
}

func TestReplayedCallbackLeavesTerminalState(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	svc := settlementService(store, &recordingEnroller{})
	cb := successCallback(store.tx)

	_, err := svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	recorded := len(store.transitions)

	tx, err := svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusSuccess, tx.Status)
	assert.Len(t, store.transitions, recorded)
}

func TestFailureCallbackPassesThroughProcessing(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	svc := settlementService(store, &recordingEnroller{})

	cb := CallbackParams{
		TransactionID:        store.tx.TransactionID,
		Status:               "failed",
		GatewayTransactionID: "MOCKPAY-2",
		Signature:            SignMockCallback("test-secret", store.tx.TransactionID, "failed", "MOCKPAY-2"),
		ErrorCode:            "MOCK_ERROR_001",
	}
	tx, err := svc.HandleCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
	assert.Equal(t, []string{models.TxStatusProcessing, models.TxStatusFailed}, store.transitions)
}

func TestSettlementSurvivesEnrollmentFailure(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	enroller := &recordingEnroller{fail: true}
	svc := settlementService(store, enroller)

	tx, err := svc.HandleCallback(context.Background(), successCallback(store.tx))
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusSuccess, tx.Status)
	assert.Empty(t, enroller.created)
}

func TestEnsureEnrollment(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	enroller := &recordingEnroller{}
	svc := settlementService(store, enroller)

	// Not yet settled: the grant must wait for the capture.
	err := svc.EnsureEnrollment(context.Background(), store.tx.ID)
	require.Error(t, err)
	assert.Empty(t, enroller.created)

	store.tx.Status = models.TxStatusSuccess
	require.NoError(t, svc.EnsureEnrollment(context.Background(), store.tx.ID))
	require.Len(t, enroller.created, 1)
	assert.Equal(t, store.tx.UserID, enroller.created[0].UserID)

	// Repeating the grant is safe; the insert is idempotent.
	require.NoError(t, svc.EnsureEnrollment(context.Background(), store.tx.ID))
}

// fakeReceiptStore serves cached receipt objects and presigned URLs from
// memory.
type fakeReceiptStore struct {
	objects map[string][]byte
	deleted []string
}

func (f *fakeReceiptStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeReceiptStore) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeReceiptStore) GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://receipts.example.com/" + key + "?signed=1", nil
}

func (f *fakeReceiptStore) PresignExpire() time.Duration { return 15 * time.Minute }

func (f *fakeReceiptStore) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func TestReceiptURLForCachedObject(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	store.tx.Status = models.TxStatusSuccess
	key := "receipts/cached.pdf"
	store.tx.ReceiptKey = &key

	receipts := &fakeReceiptStore{objects: map[string][]byte{key: []byte("%PDF")}}
	svc := NewService(&config.Config{}, store, nil, nil, &recordingEnroller{}, nil,
		NewMockProvider("test-secret", ""), receipts, nil, nil, zap.NewNop())

	url, err := svc.ReceiptURL(context.Background(), store.tx.TransactionID, store.tx.UserID, "student")
	require.NoError(t, err)
	assert.Contains(t, url, key)
	assert.Contains(t, url, "signed=1")
}

func TestReceiptURLRequiresSettledPayment(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	receipts := &fakeReceiptStore{}
	svc := NewService(&config.Config{}, store, nil, nil, &recordingEnroller{}, nil,
		NewMockProvider("test-secret", ""), receipts, nil, nil, zap.NewNop())

	_, err := svc.ReceiptURL(context.Background(), store.tx.TransactionID, store.tx.UserID, "student")
	assert.ErrorIs(t, err, ErrReceiptUnavailable)
}

func TestRefundInvalidatesCachedReceipt(t *testing.T) {
	store := &fakeTxStore{tx: pendingTransaction()}
	store.tx.Status = models.TxStatusSuccess
	gw := "MOCKPAY-9"
	store.tx.GatewayTransactionID = &gw
	key := "receipts/stale.pdf"
	store.tx.ReceiptKey = &key

	receipts := &fakeReceiptStore{objects: map[string][]byte{key: []byte("%PDF")}}
	svc := NewService(&config.Config{}, store, nil, nil, &recordingEnroller{}, nil,
		NewMockProvider("test-secret", ""), receipts, nil, nil, zap.NewNop())

	tx, err := svc.Refund(context.Background(), store.tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusRefunded, tx.Status)
	assert.Equal(t, []string{key}, receipts.deleted)
	assert.Nil(t, store.tx.ReceiptKey)
}

func TestInitiateDuringMaintenance(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Gateway.MaintenanceMode = true
	svc := NewService(cfg, &fakeTxStore{}, nil, nil, &recordingEnroller{}, nil,
		NewMockProvider("test-secret", ""), nil, nil, nil, zap.NewNop())
	h := NewHandler(svc, zap.NewNop())

	router := gin.New()
	router.POST("/api/payment/initiate", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		h.Initiate(c)
	})

	body := bytes.NewBufferString(`{"courseId":"` + uuid.NewString() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/initiate", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"maintenanceMode":true`)
}

func TestGatewayTimeoutResponseShape(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHandler(nil, zap.NewNop())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.writeInitiateError(c, ErrGatewayTimeout)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"errorCategory":"gateway_timeout"`)
}
