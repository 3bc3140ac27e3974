package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/discounts"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/pricing"
	"github.com/learnhub/backend/pkg/events"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/queue"
)

// TransactionStore persists payment transactions. Repository is the pgx
// implementation.
type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	GetOpenAttempt(ctx context.Context, userID, courseID uuid.UUID) (*models.Transaction, error)
	HasSuccessful(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	ListAll(ctx context.Context, limit int) ([]models.Transaction, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	SetGatewayOrder(ctx context.Context, id uuid.UUID, orderID string) error
	UpdatePricing(ctx context.Context, t *models.Transaction) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSuccess(ctx context.Context, id uuid.UUID, gatewayTxnID, method string) error
	MarkFailed(ctx context.Context, id uuid.UUID, code, message, category string) error
	MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amount decimal.Decimal) error
	SetReceiptKey(ctx context.Context, id uuid.UUID, key string) error
	ClearReceiptKey(ctx context.Context, id uuid.UUID) error
}

// Service drives the payment lifecycle: initiation, callback/webhook
// settlement, reconciliation, refunds and receipts.
type Service struct {
	cfg         *config.Config
	txRepo      TransactionStore
	courseRepo  *courses.Repository
	codeRepo    *discounts.Repository
	enrollments EnrollmentCreator
	users       UserDirectory
	provider    Provider
	store       ReceiptStore
	queue       *queue.Queue
	publisher   *events.Publisher
	logger      *zap.Logger
}

// EnrollmentCreator grants course access after a captured payment.
type EnrollmentCreator interface {
	Create(ctx context.Context, e *models.Enrollment) error
}

// UserDirectory resolves the buyer for orders, receipts and emails.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// NewService wires the payment service. store may be nil; receipts are then
// rendered on every request instead of cached in object storage.
func NewService(cfg *config.Config, txRepo TransactionStore, courseRepo *courses.Repository,
	codeRepo *discounts.Repository, enrollments EnrollmentCreator, users UserDirectory,
	provider Provider, store ReceiptStore, q *queue.Queue, publisher *events.Publisher,
	logger *zap.Logger) *Service {
	return &Service{
		cfg:         cfg,
		txRepo:      txRepo,
		courseRepo:  courseRepo,
		codeRepo:    codeRepo,
		enrollments: enrollments,
		users:       users,
		provider:    provider,
		store:       store,
		queue:       q,
		publisher:   publisher,
		logger:      logger,
	}
}

// InitiateRequest is the validated input to Initiate.
type InitiateRequest struct {
	UserID       uuid.UUID
	CourseID     uuid.UUID
	DiscountCode string // optional, raw user input
	Mode         string // elements | checkout; defaults to elements
}

// InitiateResult is what the client needs to hand off to the provider.
type InitiateResult struct {
	Transaction *models.Transaction
	Breakdown   pricing.Breakdown
	OrderID     string
	KeyID       string
	PaymentURL  string
}

// Initiate validates the purchase, recomputes the price server-side and
// creates (or reuses) a pending transaction with a provider order attached.
// The stored discount is advisory only; the amount charged always comes from
// this recomputation.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if s.cfg.Gateway.MaintenanceMode {
		return nil, ErrMaintenanceMode
	}

	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Purchasable() {
		return nil, ErrCourseNotPurchasable
	}

	paid, err := s.txRepo.HasSuccessful(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrAlreadyEnrolled
	}

	var disc *pricing.Discount
	var codeName *string
	if req.DiscountCode != "" {
		code := discounts.NormalizeCode(req.DiscountCode)
		record, err := s.codeRepo.GetByCode(ctx, code)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		disc, err = discounts.CheckUsable(record, req.CourseID, time.Now())
		if err != nil {
			return nil, err
		}
		codeName = &code
	}

	breakdown, err := pricing.Calculate(course.Price, disc)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = models.TxModeElements
	}

	tx, err := s.txRepo.GetOpenAttempt(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		tx = &models.Transaction{
			TransactionID:  NewTransactionID(),
			UserID:         req.UserID,
			CourseID:       req.CourseID,
			OriginalAmount: breakdown.Original,
			DiscountCode:   codeName,
			DiscountAmount: breakdown.Discount,
			GSTAmount:      breakdown.GST,
			FinalAmount:    breakdown.Total,
			Currency:       course.Currency,
			Mode:           mode,
			Provider:       s.provider.Name(),
		}
		if err := s.txRepo.Create(ctx, tx); err != nil {
			return nil, err
		}
	} else {
		tx.OriginalAmount = breakdown.Original
		tx.DiscountCode = codeName
		tx.DiscountAmount = breakdown.Discount
		tx.GSTAmount = breakdown.GST
		tx.FinalAmount = breakdown.Total
		tx.Mode = mode
		if err := s.txRepo.UpdatePricing(ctx, tx); err != nil {
			return nil, err
		}
	}

	buyer, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	order, err := s.provider.CreateOrder(ctx, CreateOrderRequest{
		TransactionID: tx.TransactionID,
		Amount:        breakdown.Total,
		Currency:      tx.Currency,
		Mode:          mode,
		CustomerName:  buyer.FullName,
		CustomerEmail: buyer.Email,
		CustomerPhone: buyer.Phone,
		CallbackURL:   s.cfg.App.BaseURL + "/api/payment/callback",
	})
	if err != nil {
		s.logger.Error("provider order creation failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}
	if err := s.txRepo.SetGatewayOrder(ctx, tx.ID, order.OrderID); err != nil {
		return nil, err
	}
	tx.GatewayOrderID = &order.OrderID

	metrics.PaymentsInitiated.WithLabelValues(s.provider.Name(), mode).Inc()
	s.publisher.PublishAsync(events.PaymentEvent{
		Event:         events.PaymentInitiated,
		TransactionID: tx.TransactionID,
		UserID:        tx.UserID,
		CourseID:      tx.CourseID,
		Amount:        tx.FinalAmount.StringFixed(2),
		Currency:      tx.Currency,
		Status:        tx.Status,
	})
	s.logger.Info("payment initiated",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("user_id", tx.UserID.String()),
		zap.String("course_id", tx.CourseID.String()),
		zap.String("amount", tx.FinalAmount.StringFixed(2)),
	)

	return &InitiateResult{
		Transaction: tx,
		Breakdown:   breakdown,
		OrderID:     order.OrderID,
		KeyID:       order.KeyID,
		PaymentURL:  order.PaymentURL,
	}, nil
}

// HandleCallback settles a transaction from the browser redirect the gateway
// issues after payment. Verification happens server-side; the browser only
// carries opaque parameters plus a signature over them.
func (s *Service) HandleCallback(ctx context.Context, cb CallbackParams) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByTransactionID(ctx, cb.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.GatewayOrderID != nil {
		cb.GatewayOrderID = *tx.GatewayOrderID
	}
	if !s.provider.VerifyCallbackSignature(cb) {
		s.logger.Warn("callback signature rejected",
			zap.String("transaction_id", cb.TransactionID))
		return nil, ErrBadSignature
	}

	// Duplicate delivery of the same outcome is a no-op.
	if models.TerminalStatus(tx.Status) {
		return tx, nil
	}
	if err := s.beginSettlement(ctx, tx); err != nil {
		return nil, err
	}

	switch cb.Status {
	case "success":
		return s.settleSuccess(ctx, tx, cb.GatewayTransactionID, "")
	default:
		return s.settleFailure(ctx, tx, cb.ErrorCode, cb.ErrorMessage)
	}
}

// beginSettlement records the callback arrival by moving a pending
// transaction to processing before the terminal transition is applied.
func (s *Service) beginSettlement(ctx context.Context, tx *models.Transaction) error {
	if tx.Status != models.TxStatusPending {
		return nil
	}
	if err := s.txRepo.MarkProcessing(ctx, tx.ID); err != nil {
		// A concurrent delivery won the pending -> processing race.
		if !errors.Is(err, ErrInvalidTransition) {
			return err
		}
	}
	tx.Status = models.TxStatusProcessing
	return nil
}

// WebhookEvent is the parsed body of a provider server-to-server webhook.
type WebhookEvent struct {
	GatewayOrderID       string
	GatewayTransactionID string
	Status               string // captured | failed
	Method               string
	ErrorCode            string
	ErrorMessage         string
}

// HandleWebhook settles a transaction from a server webhook, the delivery
// path that survives abandoned browser sessions.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string, evt WebhookEvent) (*models.Transaction, error) {
	if !s.provider.VerifyWebhookSignature(body, signature) {
		return nil, ErrBadSignature
	}
	tx, err := s.txRepo.GetByGatewayOrderID(ctx, evt.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if models.TerminalStatus(tx.Status) {
		return tx, nil
	}
	if err := s.beginSettlement(ctx, tx); err != nil {
		return nil, err
	}
	switch evt.Status {
	case ProviderPaymentCaptured:
		return s.settleSuccess(ctx, tx, evt.GatewayTransactionID, evt.Method)
	default:
		return s.settleFailure(ctx, tx, evt.ErrorCode, evt.ErrorMessage)
	}
}

// Reconcile asks the provider what happened to a stale transaction and
// applies the answer. Still-pending provider state leaves the row untouched.
func (s *Service) Reconcile(ctx context.Context, tx *models.Transaction) error {
	if models.TerminalStatus(tx.Status) {
		return nil
	}
	if tx.GatewayOrderID == nil {
		// Initiation died before the provider order existed; nothing was
		// charged, so the attempt fails outright.
		_, err := s.settleFailure(ctx, tx, "RECONCILE_NO_ORDER", "no provider order was created")
		return err
	}
	info, err := s.provider.FetchPayment(ctx, *tx.GatewayOrderID)
	if err != nil {
		return err
	}
	switch info.Status {
	case ProviderPaymentCaptured:
		_, err = s.settleSuccess(ctx, tx, info.GatewayTransactionID, info.Method)
	case ProviderPaymentFailed:
		_, err = s.settleFailure(ctx, tx, info.ErrorCode, info.ErrorMessage)
	default:
		s.logger.Info("reconciliation left transaction open",
			zap.String("transaction_id", tx.TransactionID))
	}
	return err
}

func (s *Service) settleSuccess(ctx context.Context, tx *models.Transaction, gatewayTxnID, method string) (*models.Transaction, error) {
	if err := s.txRepo.MarkSuccess(ctx, tx.ID, gatewayTxnID, method); err != nil {
		return nil, err
	}

	// Consume the code only on capture; a failed attempt never burns it.
	if tx.DiscountCode != nil {
		if err := s.codeRepo.Redeem(ctx, *tx.DiscountCode); err != nil {
			s.logger.Warn("discount redemption recording failed",
				zap.String("transaction_id", tx.TransactionID),
				zap.String("code", *tx.DiscountCode),
				zap.Error(err),
			)
		}
	}

	txID := tx.ID
	if err := s.enrollments.Create(ctx, &models.Enrollment{
		UserID:        tx.UserID,
		CourseID:      tx.CourseID,
		TransactionID: &txID,
	}); err != nil {
		// Payment already settled; hand the grant to the worker instead of
		// failing the callback.
		s.logger.Error("enrollment creation failed after capture",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		s.enqueueEnrollment(ctx, tx)
	}

	s.enqueueEmail(ctx, tx, "payment_receipt")
	metrics.PaymentCallbacks.WithLabelValues(models.TxStatusSuccess).Inc()
	amount, _ := tx.FinalAmount.Float64()
	metrics.PaymentAmount.Observe(amount)
	s.publishLifecycle(tx, events.PaymentCompleted, models.TxStatusSuccess)
	s.logger.Info("payment captured",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("gateway_transaction_id", gatewayTxnID),
	)

	return s.txRepo.GetByTransactionID(ctx, tx.TransactionID)
}

func (s *Service) settleFailure(ctx context.Context, tx *models.Transaction, code, message string) (*models.Transaction, error) {
	if err := s.txRepo.MarkFailed(ctx, tx.ID, code, message, categorize(code)); err != nil {
		return nil, err
	}
	s.enqueueEmail(ctx, tx, "payment_failed")
	metrics.PaymentCallbacks.WithLabelValues(models.TxStatusFailed).Inc()
	s.publishLifecycle(tx, events.PaymentFailed, models.TxStatusFailed)
	s.logger.Info("payment failed",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("error_code", code),
	)
	return s.txRepo.GetByTransactionID(ctx, tx.TransactionID)
}

// categorize maps provider error codes to the coarse categories clients
// switch their messaging on.
func categorize(code string) string {
	switch code {
	case "BAD_REQUEST_ERROR", "MOCK_ERROR_002":
		return models.ErrCategoryValidation
	case "GATEWAY_ERROR", "SERVER_ERROR", "MOCK_ERROR_003":
		return models.ErrCategoryGatewayTimeout
	case "":
		return models.ErrCategoryUnknown
	default:
		return models.ErrCategoryCardError
	}
}

// Status returns a transaction for polling, scoped to its owner unless the
// caller holds an elevated role.
func (s *Service) Status(ctx context.Context, transactionID string, userID uuid.UUID, role string) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID && models.Role(role) != models.RoleAdmin && models.Role(role) != models.RoleFinance {
		return nil, ErrNotFound
	}
	return tx, nil
}

// Refund issues a provider refund for a captured payment and records it.
// Admin and finance only; enforced at the route.
func (s *Service) Refund(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TxStatusSuccess || tx.GatewayTransactionID == nil {
		return nil, ErrNotRefundable
	}
	refundID, err := s.provider.Refund(ctx, *tx.GatewayTransactionID, tx.FinalAmount, tx.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.txRepo.MarkRefunded(ctx, tx.ID, refundID, tx.FinalAmount); err != nil {
		return nil, err
	}
	// The cached PDF predates the refund; the next request renders one
	// carrying the refund stamp.
	s.invalidateReceipt(ctx, tx)
	s.publishLifecycle(tx, events.PaymentRefunded, models.TxStatusRefunded)
	s.logger.Info("payment refunded",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("refund_id", refundID),
	)
	return s.txRepo.GetByTransactionID(ctx, transactionID)
}

// StaleTransactions lists non-terminal transactions older than the cutoff
// for the reconciliation sweep.
func (s *Service) StaleTransactions(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	return s.txRepo.ListStale(ctx, cutoff, limit)
}

// GetByTransactionID fetches a transaction without ownership checks, for
// worker jobs.
func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return s.txRepo.GetByTransactionID(ctx, transactionID)
}

// GetByID fetches a transaction by its row id, for worker jobs keyed on the
// internal identifier.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.txRepo.GetByID(ctx, id)
}

// ListForUser returns the caller's transaction history.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.txRepo.ListByUser(ctx, userID)
}

// ListAll returns recent transactions for finance review.
func (s *Service) ListAll(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.txRepo.ListAll(ctx, limit)
}

// EnsureEnrollment grants course access for a captured payment whose inline
// enrollment insert failed. Safe to repeat; the insert is idempotent per
// user+course.
func (s *Service) EnsureEnrollment(ctx context.Context, id uuid.UUID) error {
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.Status != models.TxStatusSuccess {
		return fmt.Errorf("transaction %s is %s, not success", tx.TransactionID, tx.Status)
	}
	txID := tx.ID
	return s.enrollments.Create(ctx, &models.Enrollment{
		UserID:        tx.UserID,
		CourseID:      tx.CourseID,
		TransactionID: &txID,
	})
}

func (s *Service) enqueueEnrollment(ctx context.Context, tx *models.Transaction) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueEnroll(ctx, queue.EnrollPayload{TransactionID: tx.ID}); err != nil {
		s.logger.Error("enrollment retry enqueue failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
	}
}

func (s *Service) enqueueEmail(ctx context.Context, tx *models.Transaction, emailType string) {
	if s.queue == nil {
		return
	}
	course, err := s.courseRepo.GetByID(ctx, tx.CourseID)
	title := ""
	if err == nil {
		title = course.Title
	}
	payload := queue.EmailPayload{
		EmailType:     emailType,
		TransactionID: tx.ID,
		CourseTitle:   title,
	}
	if err := s.queue.EnqueueEmail(ctx, payload); err != nil {
		s.logger.Warn("email enqueue failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
	}
}

func (s *Service) publishLifecycle(tx *models.Transaction, event, status string) {
	s.publisher.PublishAsync(events.PaymentEvent{
		Event:         event,
		TransactionID: tx.TransactionID,
		UserID:        tx.UserID,
		CourseID:      tx.CourseID,
		Amount:        tx.FinalAmount.StringFixed(2),
		Currency:      tx.Currency,
		Status:        status,
	})
}
