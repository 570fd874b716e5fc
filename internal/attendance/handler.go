package attendance

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

// Attender is the part of Service the member routes use.
type Attender interface {
	Attend(ctx context.Context, user *models.User, code string) (*models.Event, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.PublicAttendance, error)
}

// AttendRequest is the body for POST /attendance.
type AttendRequest struct {
	Event struct {
		AttendanceCode string `json:"attendanceCode"`
	} `json:"event"`
}

// Handler serves member check-in endpoints.
type Handler struct {
	svc    Attender
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(svc Attender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/attendance", h.Attend)
	rg.GET("/attendance", h.List)
}

// Attend handles POST /attendance.
func (h *Handler) Attend(c *gin.Context) {
	var req AttendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	event, err := h.svc.Attend(c.Request.Context(), user, req.Event.AttendanceCode)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"event": event.ToPublic()})
}

// List handles GET /attendance.
func (h *Handler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	list, err := h.svc.History(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"attendance": list})
}
