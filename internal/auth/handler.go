package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	User struct {
		Email          string `json:"email" binding:"required,email"`
		Password       string `json:"password" binding:"required,min=8"`
		FirstName      string `json:"firstName" binding:"required"`
		LastName       string `json:"lastName" binding:"required"`
		GraduationYear int    `json:"graduationYear" binding:"required,gte=1900,lte=3000"`
		Major          string `json:"major" binding:"required"`
	} `json:"user"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResendRequest is the body for POST /auth/emailVerification.
type ResendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Accounts is the part of Service the routes use.
type Accounts interface {
	Register(ctx context.Context, r Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	VerifyEmail(ctx context.Context, accessCode string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    Accounts
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc Accounts, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the public auth routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.GET("/emailVerification/:accessCode", h.VerifyEmail)
	rg.POST("/emailVerification", h.ResendVerification)
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.Register(c.Request.Context(), Registration{
		Email:          req.User.Email,
		Password:       req.User.Password,
		FirstName:      req.User.FirstName,
		LastName:       req.User.LastName,
		GraduationYear: req.User.GraduationYear,
		Major:          req.User.Major,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, gin.H{"user": u})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, u, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"token": token, "user": u})
}

// VerifyEmail handles GET /auth/emailVerification/:accessCode.
func (h *Handler) VerifyEmail(c *gin.Context) {
	u, err := h.svc.VerifyEmail(c.Request.Context(), c.Param("accessCode"))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"user": u.ToPublic()})
}

// ResendVerification handles POST /auth/emailVerification.
func (h *Handler) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{})
}
