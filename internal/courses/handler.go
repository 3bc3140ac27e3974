package courses

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/response"
)

// CourseRequest is the body for POST/PUT /api/courses.
type CourseRequest struct {
	Title          string                `json:"title" binding:"required"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	InstructorName string                `json:"instructor_name"`
	Price          decimal.Decimal       `json:"price" binding:"required"`
	Currency       string                `json:"currency"`
	Modules        []models.CourseModule `json:"modules"`
	Published      bool                  `json:"published"`
}

// Handler handles course HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a courses handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/courses. Public; published courses only.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListPublished(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.logger.Error("list courses failed", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/courses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	course, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "course not found")
		return
	}
	response.OK(c, course)
}

// Create handles POST /api/courses (university/admin).
func (h *Handler) Create(c *gin.Context) {
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Price.IsNegative() {
		response.BadRequest(c, "price must not be negative")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	modules, err := json.Marshal(req.Modules)
	if err != nil {
		response.BadRequest(c, "invalid modules")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	course := &models.Course{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		InstructorName: req.InstructorName,
		Price:          req.Price,
		Currency:       currency,
		Modules:        modules,
		Published:      req.Published,
		CreatedBy:      userID,
	}
	if err := h.repo.Create(c.Request.Context(), course); err != nil {
		h.logger.Error("create course failed", zap.Error(err))
		response.Internal(c, "failed to create course")
		return
	}
	response.Created(c, course)
}

// Update handles PATCH /api/courses/:id (creator or admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "course not found")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if existing.CreatedBy != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not the course owner")
		return
	}

	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Price.IsNegative() {
		response.BadRequest(c, "price must not be negative")
		return
	}
	modules, err := json.Marshal(req.Modules)
	if err != nil {
		response.BadRequest(c, "invalid modules")
		return
	}

	existing.Title = req.Title
	existing.Description = req.Description
	existing.Category = req.Category
	existing.InstructorName = req.InstructorName
	existing.Price = req.Price
	if req.Currency != "" {
		existing.Currency = req.Currency
	}
	existing.Modules = modules
	existing.Published = req.Published

	if err := h.repo.Update(c.Request.Context(), existing); err != nil {
		h.logger.Error("update course failed", zap.Error(err), zap.String("course_id", id.String()))
		response.Internal(c, "failed to update course")
		return
	}
	response.OK(c, existing)
}

// Mine handles GET /api/my/courses (university/admin dashboards).
func (h *Handler) Mine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByCreator(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}
