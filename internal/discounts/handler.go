package discounts

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/response"
)

// ValidateRequest is the body for POST /api/discount/validate.
type ValidateRequest struct {
	Code     string    `json:"code" binding:"required"`
	CourseID uuid.UUID `json:"courseId" binding:"required"`
}

// CreateRequest is the body for POST /api/discounts (partner/admin).
type CreateRequest struct {
	Code       string          `json:"code" binding:"required"`
	Type       string          `json:"type" binding:"required,oneof=percentage flat"`
	Value      decimal.Decimal `json:"value" binding:"required"`
	CourseID   *uuid.UUID      `json:"course_id"`
	MaxUses    int             `json:"max_uses"`
	ValidFrom  *time.Time      `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until"`
}

// Handler handles discount HTTP endpoints.
type Handler struct {
	repo       *Repository
	courseRepo *courses.Repository
	logger     *zap.Logger
}

// NewHandler creates a discounts handler.
func NewHandler(repo *Repository, courseRepo *courses.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, courseRepo: courseRepo, logger: logger}
}

// Validate handles POST /api/discount/validate. Read-only and advisory: the
// result is re-checked server-side at payment initiation.
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, err := h.courseRepo.GetByID(c.Request.Context(), req.CourseID); err != nil {
		response.NotFound(c, "course not found")
		return
	}

	code, err := h.repo.GetByCode(c.Request.Context(), NormalizeCode(req.Code))
	if err != nil {
		response.NotFound(c, ErrCodeNotFound.Error())
		return
	}
	d, err := CheckUsable(code, req.CourseID, time.Now())
	if err != nil {
		if errors.Is(err, ErrCodeScope) {
			response.BadRequest(c, err.Error())
			return
		}
		response.NotFound(c, err.Error())
		return
	}
	response.OK(c, d)
}

// Create handles POST /api/discounts (partner/admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Value.IsNegative() {
		response.BadRequest(c, "value must not be negative")
		return
	}
	if req.Type == models.DiscountTypePercentage && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		response.BadRequest(c, "percentage value must not exceed 100")
		return
	}
	if req.CourseID != nil {
		if _, err := h.courseRepo.GetByID(c.Request.Context(), *req.CourseID); err != nil {
			response.NotFound(c, "course not found")
			return
		}
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	validFrom := time.Now()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	code := &models.DiscountCode{
		Code:       NormalizeCode(req.Code),
		Type:       req.Type,
		Value:      req.Value,
		Active:     true,
		CourseID:   req.CourseID,
		CreatedBy:  userID,
		MaxUses:    req.MaxUses,
		ValidFrom:  validFrom,
		ValidUntil: req.ValidUntil,
	}
	if err := h.repo.Create(c.Request.Context(), code); err != nil {
		h.logger.Error("create discount failed", zap.Error(err), zap.String("code", code.Code))
		response.Conflict(c, "code already exists")
		return
	}
	response.Created(c, code)
}

// List handles GET /api/discounts (partner/admin, own codes).
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list discount codes")
		return
	}
	response.OK(c, list)
}

// Deactivate handles DELETE /api/discounts/:id.
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid discount id")
		return
	}
	if err := h.repo.Deactivate(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to deactivate code")
		return
	}
	response.OK(c, gin.H{"deactivated": true})
}
