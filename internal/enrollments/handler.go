package enrollments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/pkg/response"
)

// ProgressRequest is the body for POST /api/enrollments/:courseId/progress.
type ProgressRequest struct {
	ModuleID string `json:"moduleId" binding:"required"`
	Kind     string `json:"kind" binding:"required,oneof=video exercise"`
}

// Handler handles enrollment HTTP endpoints.
type Handler struct {
	repo       *Repository
	courseRepo *courses.Repository
	logger     *zap.Logger
}

// NewHandler creates an enrollments handler.
func NewHandler(repo *Repository, courseRepo *courses.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, courseRepo: courseRepo, logger: logger}
}

// List handles GET /api/enrollments. Returns the caller's enrollments.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list enrollments")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/enrollments/:courseId. Includes derived progress.
func (h *Handler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	enrollment, err := h.repo.Get(c.Request.Context(), userID, courseID)
	if err != nil {
		response.NotFound(c, "not enrolled in this course")
		return
	}

	progress := 0.0
	if course, err := h.courseRepo.GetByID(c.Request.Context(), courseID); err == nil {
		if modules, err := course.ModuleList(); err == nil {
			progress = enrollment.Progress(modules)
		}
	}
	response.OK(c, gin.H{"enrollment": enrollment, "progress_percent": progress})
}

// Progress handles POST /api/enrollments/:courseId/progress.
func (h *Handler) Progress(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.repo.MarkModuleComplete(c.Request.Context(), userID, courseID, req.ModuleID, req.Kind); err != nil {
		h.logger.Warn("mark module complete failed", zap.Error(err),
			zap.String("course_id", courseID.String()), zap.String("module_id", req.ModuleID))
		response.NotFound(c, "not enrolled in this course")
		return
	}
	response.OK(c, gin.H{"completed": true})
}
