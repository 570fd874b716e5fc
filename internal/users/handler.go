package users

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
	"github.com/membership-portal/backend/pkg/storage"
	"github.com/membership-portal/backend/pkg/utils"
)

// Store is the user persistence the handler needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*models.User, error)
	UpdatePicture(ctx context.Context, id uuid.UUID, url string) error
}

// ActivityLog reads and appends the activity history.
type ActivityLog interface {
	Append(ctx context.Context, a *models.Activity) error
	ListForUser(ctx context.Context, userID uuid.UUID, publicOnly bool) ([]models.Activity, error)
}

// PictureStore uploads profile pictures.
type PictureStore interface {
	UploadPicture(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// Ranking serves leaderboard pages.
type Ranking interface {
	Page(ctx context.Context, offset, limit int) ([]models.UserPublic, error)
}

// UpdateRequest is the body for PATCH /user.
type UpdateRequest struct {
	User struct {
		FirstName      *string `json:"firstName"`
		LastName       *string `json:"lastName"`
		GraduationYear *int    `json:"graduationYear" binding:"omitempty,gte=1900,lte=3000"`
		Major          *string `json:"major"`
		Bio            *string `json:"bio" binding:"omitempty,max=500"`
		Password       string  `json:"password"`
		NewPassword    string  `json:"newPassword" binding:"omitempty,min=8"`
	} `json:"user"`
}

// Handler handles profile, activity and leaderboard endpoints.
type Handler struct {
	store           Store
	activities      ActivityLog
	pictures        PictureStore
	ranking         Ranking
	maxPictureBytes int64
	logger          *zap.Logger
}

// NewHandler creates a users handler. pictures may be nil when uploads are not configured.
func NewHandler(store Store, activities ActivityLog, pictures PictureStore, ranking Ranking, maxPictureBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:           store,
		activities:      activities,
		pictures:        pictures,
		ranking:         ranking,
		maxPictureBytes: maxPictureBytes,
		logger:          logger,
	}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/user", h.Me)
	rg.PATCH("/user", h.Update)
	rg.GET("/user/activity", h.Activity)
	rg.POST("/user/picture", h.UploadPicture)
	rg.GET("/user/:uuid", h.Get)
	rg.GET("/leaderboard", h.Leaderboard)
}

// Me handles GET /user.
func (h *Handler) Me(c *gin.Context) {
	response.OK(c, gin.H{"user": middleware.CurrentUser(c)})
}

// Get handles GET /user/:uuid and returns the public profile.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	u, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			response.NotFound(c, "User not found")
			return
		}
		response.Error(c, h.logger, apperrors.Internal("load user", err))
		return
	}
	response.OK(c, gin.H{"user": u.ToPublic()})
}

// Update handles PATCH /user.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user := middleware.CurrentUser(c)
	in := req.User
	p := ProfileUpdate{
		FirstName:      trimmed(in.FirstName),
		LastName:       trimmed(in.LastName),
		GraduationYear: in.GraduationYear,
		Major:          trimmed(in.Major),
		Bio:            in.Bio,
	}
	if (p.FirstName != nil && *p.FirstName == "") || (p.LastName != nil && *p.LastName == "") {
		response.BadRequest(c, "Name cannot be empty")
		return
	}
	changes := changedFields(p)
	if in.NewPassword != "" {
		if !utils.CheckPassword(in.Password, user.Password) {
			response.Error(c, h.logger, apperrors.UserError("Incorrect current password"))
			return
		}
		hash, err := utils.HashPassword(in.NewPassword)
		if err != nil {
			response.Error(c, h.logger, apperrors.Internal("hash password", err))
			return
		}
		p.PasswordHash = &hash
		changes = append(changes, "password")
	}
	if len(changes) == 0 {
		response.OK(c, gin.H{"user": user})
		return
	}

	updated, err := h.store.UpdateProfile(c.Request.Context(), user.ID, p)
	if err != nil {
		response.Error(c, h.logger, apperrors.Internal("update profile", err))
		return
	}
	if err := h.activities.Append(c.Request.Context(), &models.Activity{
		UserID:      user.ID,
		Type:        models.ActivityAccountUpdateInfo,
		Description: "Updated " + strings.Join(changes, ", "),
	}); err != nil {
		h.logger.Warn("append activity", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	response.OK(c, gin.H{"user": updated})
}

// Activity handles GET /user/activity.
func (h *Handler) Activity(c *gin.Context) {
	user := middleware.CurrentUser(c)
	list, err := h.activities.ListForUser(c.Request.Context(), user.ID, false)
	if err != nil {
		response.Error(c, h.logger, apperrors.Internal("list activity", err))
		return
	}
	response.OK(c, gin.H{"activity": list})
}

// UploadPicture handles POST /user/picture (multipart field "image").
func (h *Handler) UploadPicture(c *gin.Context) {
	if h.pictures == nil {
		response.Fail(c, http.StatusServiceUnavailable, "Picture uploads are not available")
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}
	if h.maxPictureBytes > 0 && fh.Size > h.maxPictureBytes {
		response.BadRequest(c, "image is too large")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	ext, ok := storage.PictureExtension(contentType)
	if !ok {
		response.BadRequest(c, "image must be a JPEG, PNG, WebP or GIF")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "could not read image")
		return
	}
	defer f.Close()

	user := middleware.CurrentUser(c)
	url, err := h.pictures.UploadPicture(c.Request.Context(), storage.ProfilePictureKey(user.ID.String(), ext), contentType, f, fh.Size)
	if err != nil {
		response.Error(c, h.logger, apperrors.Internal("upload picture", err))
		return
	}
	if err := h.store.UpdatePicture(c.Request.Context(), user.ID, url); err != nil {
		response.Error(c, h.logger, apperrors.Internal("store picture url", err))
		return
	}
	user.Picture = url
	response.OK(c, gin.H{"user": user})
}

// Leaderboard handles GET /leaderboard?offset=&limit=.
func (h *Handler) Leaderboard(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	page, err := h.ranking.Page(c.Request.Context(), offset, limit)
	if err != nil {
		response.Error(c, h.logger, apperrors.Internal("load leaderboard", err))
		return
	}
	response.OK(c, gin.H{"leaderboard": page})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func changedFields(p ProfileUpdate) []string {
	var out []string
	if p.FirstName != nil {
		out = append(out, "first name")
	}
	if p.LastName != nil {
		out = append(out, "last name")
	}
	if p.GraduationYear != nil {
		out = append(out, "graduation year")
	}
	if p.Major != nil {
		out = append(out, "major")
	}
	if p.Bio != nil {
		out = append(out, "bio")
	}
	return out
}
