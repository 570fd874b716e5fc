package admin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/attendance"
	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

// Batches is the part of Service the routes use.
type Batches interface {
	ChangeAccess(ctx context.Context, actor *models.User, updates []AccessUpdate) ([]models.UserPublic, error)
	GrantBonus(ctx context.Context, actor *models.User, b Bonus) ([]string, error)
}

// Ledger is the admin side of the attendance service.
type Ledger interface {
	AttendForUsers(ctx context.Context, eventID uuid.UUID, emails []string, asStaff bool) (*attendance.ManualResult, error)
	ForEvent(ctx context.Context, eventID uuid.UUID) (*attendance.EventAttendance, error)
}

// AccessRequest is the body for PATCH /admin/access.
type AccessRequest struct {
	AccessUpdates []AccessUpdate `json:"accessUpdates"`
}

// BonusRequest is the body for POST /admin/bonus.
type BonusRequest struct {
	Bonus Bonus `json:"bonus"`
}

// AttendanceRequest is the body for POST /admin/attendance.
type AttendanceRequest struct {
	Users   []string  `json:"users"`
	Event   uuid.UUID `json:"event"`
	AsStaff bool      `json:"asStaff"`
}

// Handler serves admin endpoints. Mount it behind middleware.RequireAdmin.
type Handler struct {
	batches Batches
	ledger  Ledger
	logger  *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(batches Batches, ledger Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{batches: batches, ledger: ledger, logger: logger}
}

// Register mounts the routes on the admin group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.PATCH("/access", h.Access)
	rg.POST("/bonus", h.Bonus)
	rg.POST("/attendance", h.Attendance)
	rg.GET("/event/:uuid/attendance", h.EventAttendance)
}

// Access handles PATCH /admin/access.
func (h *Handler) Access(c *gin.Context) {
	var req AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.batches.ChangeAccess(c.Request.Context(), middleware.CurrentUser(c), req.AccessUpdates)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updatedUsers": updated})
}

// Bonus handles POST /admin/bonus.
func (h *Handler) Bonus(c *gin.Context) {
	var req BonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	emails, err := h.batches.GrantBonus(c.Request.Context(), middleware.CurrentUser(c), req.Bonus)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"emails": emails})
}

// Attendance handles POST /admin/attendance.
func (h *Handler) Attendance(c *gin.Context) {
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Event == uuid.Nil {
		response.BadRequest(c, "event is required")
		return
	}
	res, err := h.ledger.AttendForUsers(c.Request.Context(), req.Event, req.Users, req.AsStaff)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"attendance": res})
}

// EventAttendance handles GET /admin/event/:uuid/attendance.
func (h *Handler) EventAttendance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ea, err := h.ledger.ForEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{
		"event":         ea.Event.ToPublic(),
		"attendance":    ea.Attendance,
		"count":         len(ea.Attendance),
		"pointsAwarded": ea.PointsAwarded,
	})
}
