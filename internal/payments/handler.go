package payments

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/response"
)

// InitiateBody is the body for POST /api/payment/initiate.
type InitiateBody struct {
	CourseID     uuid.UUID `json:"courseId" binding:"required"`
	DiscountCode string    `json:"discountCode"`
	Mode         string    `json:"mode" binding:"omitempty,oneof=elements checkout"`
}

// Handler exposes the payment endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Initiate handles POST /api/payment/initiate.
func (h *Handler) Initiate(c *gin.Context) {
	var body InitiateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.svc.Initiate(c.Request.Context(), InitiateRequest{
		UserID:       userID,
		CourseID:     body.CourseID,
		DiscountCode: body.DiscountCode,
		Mode:         body.Mode,
	})
	if err != nil {
		h.writeInitiateError(c, err)
		return
	}

	response.Created(c, gin.H{
		"transactionId": result.Transaction.TransactionID,
		"status":        result.Transaction.Status,
		"breakdown":     result.Breakdown,
		"provider":      result.Transaction.Provider,
		"mode":          result.Transaction.Mode,
		"orderId":       result.OrderID,
		"keyId":         result.KeyID,
		"paymentUrl":    result.PaymentURL,
	})
}

func (h *Handler) writeInitiateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMaintenanceMode):
		response.Maintenance(c, err.Error())
	case errors.Is(err, ErrGatewayTimeout):
		response.GatewayTimeout(c, err.Error())
	case errors.Is(err, ErrCourseNotPurchasable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrAlreadyEnrolled):
		response.Conflict(c, err.Error())
	case isDiscountRejection(err):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("payment initiation failed", zap.Error(err))
		response.Internal(c, "could not initiate payment")
	}
}

// Callback handles GET /api/payment/callback, the browser redirect from the
// gateway. It settles the transaction and bounces the browser to the status
// page.
func (h *Handler) Callback(c *gin.Context) {
	cb := CallbackParams{
		TransactionID:        c.Query("transactionId"),
		Status:               c.Query("status"),
		GatewayTransactionID: c.Query("gatewayTransactionId"),
		Signature:            c.Query("signature"),
		ErrorCode:            c.Query("errorCode"),
		ErrorMessage:         c.Query("errorMessage"),
	}
	if cb.TransactionID == "" || cb.Signature == "" {
		response.BadRequest(c, "missing callback parameters")
		return
	}

	tx, err := h.svc.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "transaction not found")
		case errors.Is(err, ErrBadSignature):
			response.Unauthorized(c, err.Error())
		default:
			h.logger.Error("callback handling failed",
				zap.String("transaction_id", cb.TransactionID), zap.Error(err))
			response.Internal(c, "could not process callback")
		}
		return
	}
	c.Redirect(302, "/payment/status?transactionId="+tx.TransactionID)
}

// Webhook handles POST /api/payment/webhook, the provider's server-to-server
// notification.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.BadRequest(c, "could not read body")
		return
	}
	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Webhook-Signature")
	}

	evt, err := parseWebhookBody(body)
	if err != nil {
		response.BadRequest(c, "unrecognized webhook payload")
		return
	}

	tx, err := h.svc.HandleWebhook(c.Request.Context(), body, signature, evt)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSignature):
			response.Unauthorized(c, err.Error())
		case errors.Is(err, ErrNotFound):
			// Unknown order: acknowledge so the provider stops retrying.
			response.OK(c, gin.H{"ignored": true})
		default:
			h.logger.Error("webhook handling failed", zap.Error(err))
			response.Internal(c, "could not process webhook")
		}
		return
	}
	response.OK(c, gin.H{"transactionId": tx.TransactionID, "status": tx.Status})
}

// Status handles GET /api/payment/status/:transactionId, the polling
// endpoint clients hit while the provider settles.
func (h *Handler) Status(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	tx, err := h.svc.Status(c.Request.Context(), c.Param("transactionId"), userID, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "transaction not found")
			return
		}
		response.Internal(c, "could not load transaction")
		return
	}
	response.OK(c, gin.H{
		"transaction": tx,
		"timeline":    tx.Timeline(),
		"terminal":    models.TerminalStatus(tx.Status),
	})
}

// Receipt handles GET /api/payment/receipt/:transactionId. With object
// storage configured it redirects to a pre-signed download URL; otherwise it
// streams the PDF directly.
func (h *Handler) Receipt(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	url, err := h.svc.ReceiptURL(c.Request.Context(), c.Param("transactionId"), userID, role)
	if err != nil {
		h.writeReceiptError(c, err)
		return
	}
	if url != "" {
		c.Redirect(302, url)
		return
	}

	pdf, tx, err := h.svc.Receipt(c.Request.Context(), c.Param("transactionId"), userID, role)
	if err != nil {
		h.writeReceiptError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipt-`+tx.TransactionID+`.pdf"`)
	c.Data(200, "application/pdf", pdf)
}

func (h *Handler) writeReceiptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "transaction not found")
	case errors.Is(err, ErrReceiptUnavailable):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("receipt generation failed", zap.Error(err))
		response.Internal(c, "could not generate receipt")
	}
}

// Refund handles POST /api/payment/refund/:transactionId (admin/finance).
func (h *Handler) Refund(c *gin.Context) {
	tx, err := h.svc.Refund(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "transaction not found")
		case errors.Is(err, ErrNotRefundable):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("refund failed",
				zap.String("transaction_id", c.Param("transactionId")), zap.Error(err))
			response.Internal(c, "could not process refund")
		}
		return
	}
	response.OK(c, tx)
}

// Transactions handles GET /api/payment/transactions. Students see their own
// history; finance and admin may pass ?all=true for recent platform activity.
func (h *Handler) Transactions(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)

	if c.Query("all") == "true" && (models.Role(role) == models.RoleAdmin || models.Role(role) == models.RoleFinance) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit < 1 || limit > 1000 {
			limit = 100
		}
		list, err := h.svc.ListAll(c.Request.Context(), limit)
		if err != nil {
			response.Internal(c, "could not list transactions")
			return
		}
		response.OK(c, list)
		return
	}

	list, err := h.svc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "could not list transactions")
		return
	}
	response.OK(c, list)
}
