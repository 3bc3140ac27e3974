package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/response"
)

// Handler exposes the email log listing for admin and finance.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/notifications/emails.
func (h *Handler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		limit = 100
	}
	logs, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("email log listing failed", zap.Error(err))
		response.Internal(c, "could not list email logs")
		return
	}
	response.OK(c, logs)
}
