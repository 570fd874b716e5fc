package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

// Store is the event persistence the handler needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ErrCodeImmutable rejects edits to an event's attendance code once it exists.
var ErrCodeImmutable = apperrors.UserError("The attendance code of an event cannot be changed")

// EventInput is the editable part of an event. Nil fields are left unchanged on PATCH.
// AttendanceCode is only accepted on create.
type EventInput struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	Committee        *string    `json:"committee"`
	Location         *string    `json:"location"`
	Cover            *string    `json:"cover"`
	StartDate        *time.Time `json:"start"`
	EndDate          *time.Time `json:"end"`
	AttendanceCode   *string    `json:"attendanceCode"`
	AttendancePoints *int       `json:"pointValue"`
	StaffPoints      *int       `json:"staffPointBonus"`
}

// EventRequest wraps EventInput as {"event": {...}}.
type EventRequest struct {
	Event EventInput `json:"event"`
}

// Handler serves event listings and admin event management.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// RegisterMember mounts the read routes on an authenticated group.
func (h *Handler) RegisterMember(rg *gin.RouterGroup) {
	rg.GET("/event/past", h.Past)
	rg.GET("/event/future", h.Future)
	rg.GET("/event/:uuid", h.Get)
}

// RegisterAdmin mounts the management routes on an admin group.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.POST("/event", h.Create)
	rg.PATCH("/event/:uuid", h.Update)
	rg.DELETE("/event/:uuid", h.Delete)
}

// Past handles GET /event/past.
func (h *Handler) Past(c *gin.Context) {
	now := h.now()
	h.list(c, ListFilter{Before: &now})
}

// Future handles GET /event/future. Ongoing events are included.
func (h *Handler) Future(c *gin.Context) {
	now := h.now()
	h.list(c, ListFilter{After: &now})
}

func (h *Handler) list(c *gin.Context, f ListFilter) {
	f.Committee = strings.TrimSpace(c.Query("committee"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit < 0 {
		f.Limit = 0
	}
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, apperrors.Internal("list events", err))
		return
	}
	if middleware.CurrentUser(c).IsAdmin() {
		if list == nil {
			list = []*models.Event{}
		}
		response.OK(c, gin.H{"events": list})
		return
	}
	out := make([]models.PublicEvent, 0, len(list))
	for _, e := range list {
		out = append(out, e.ToPublic())
	}
	response.OK(c, gin.H{"events": out})
}

// Get handles GET /event/:uuid. Admins also see the attendance code.
func (h *Handler) Get(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	if middleware.CurrentUser(c).IsAdmin() {
		response.OK(c, gin.H{"event": e})
		return
	}
	response.OK(c, gin.H{"event": e.ToPublic()})
}

// Create handles POST /admin/event.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := req.Event
	if in.Title == nil || in.StartDate == nil || in.EndDate == nil || in.AttendanceCode == nil {
		response.BadRequest(c, "title, start, end and attendanceCode are required")
		return
	}
	e := &models.Event{Committee: "General", AttendanceCode: strings.TrimSpace(*in.AttendanceCode)}
	apply(e, in)
	if err := validate(e); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		response.Error(c, h.logger, storeError("create event", err))
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("title", e.Title))
	response.Created(c, gin.H{"event": e})
}

// Update handles PATCH /admin/event/:uuid. The attendance code stays as created.
func (h *Handler) Update(c *gin.Context) {
	e, ok := h.load(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if code := req.Event.AttendanceCode; code != nil && !strings.EqualFold(strings.TrimSpace(*code), e.AttendanceCode) {
		response.Error(c, h.logger, ErrCodeImmutable)
		return
	}
	apply(e, req.Event)
	if err := validate(e); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if err := h.store.Update(c.Request.Context(), e); err != nil {
		response.Error(c, h.logger, storeError("update event", err))
		return
	}
	response.OK(c, gin.H{"event": e})
}

// Delete handles DELETE /admin/event/:uuid. Events with recorded attendance are kept.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, h.logger, storeError("delete event", err))
		return
	}
	h.logger.Info("event deleted", zap.String("event_id", id.String()))
	response.OK(c, gin.H{})
}

func (h *Handler) load(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, storeError("load event", err))
		return nil, false
	}
	return e, true
}

func apply(e *models.Event, in EventInput) {
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Committee != nil {
		e.Committee = strings.TrimSpace(*in.Committee)
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Cover != nil {
		e.Cover = *in.Cover
	}
	if in.StartDate != nil {
		e.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		e.EndDate = *in.EndDate
	}
	if in.AttendancePoints != nil {
		e.AttendancePoints = *in.AttendancePoints
	}
	if in.StaffPoints != nil {
		e.StaffPoints = *in.StaffPoints
	}
}

func validate(e *models.Event) error {
	switch {
	case e.Title == "":
		return apperrors.BadRequest("Event title is required")
	case e.AttendanceCode == "":
		return apperrors.BadRequest("Attendance code is required")
	case e.StartDate.After(e.EndDate):
		return apperrors.UserError("Event must start before it ends")
	case e.AttendancePoints < 0 || e.StaffPoints < 0:
		return apperrors.UserError("Points cannot be negative")
	}
	return nil
}

func storeError(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		return apperrors.NotFound("Event not found")
	case errors.Is(err, models.ErrCodeTaken):
		return apperrors.UserError("Attendance code in use")
	case errors.Is(err, models.ErrEventHasAttendees):
		return apperrors.Conflict("Cannot delete an event that has attendance")
	}
	return apperrors.Internal(op, err)
}
