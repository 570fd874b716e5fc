package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/queue"
	"github.com/membership-portal/backend/pkg/utils"
)

var (
	ErrEmailInUse      = apperrors.UserError("There is already an account with this email")
	ErrBadCredentials  = apperrors.Unauthorized("Invalid email or password")
	ErrBlocked         = apperrors.Forbidden("Your account has been blocked")
	ErrBadVerification = apperrors.UserError("This verification link is invalid or has already been used")
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Activate(ctx context.Context, accessCode string) (*models.User, error)
	SetAccessCode(ctx context.Context, id uuid.UUID, code string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ActivityLog appends audit entries.
type ActivityLog interface {
	Append(ctx context.Context, a *models.Activity) error
}

// VerificationQueue schedules verification emails for the worker.
type VerificationQueue interface {
	EnqueueVerificationEmail(ctx context.Context, payload queue.VerificationEmailPayload) error
}

// Registration is the data a new member submits.
type Registration struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	GraduationYear int
	Major          string
}

// Service implements account registration, login and email verification.
type Service struct {
	users      UserStore
	activities ActivityLog
	mail       VerificationQueue
	tokens     *JWTService
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an auth service.
func NewService(users UserStore, activities ActivityLog, mail VerificationQueue, tokens *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, activities: activities, mail: mail, tokens: tokens, logger: logger, now: time.Now}
}

// Register creates a PENDING account and sends the verification email.
func (s *Service) Register(ctx context.Context, r Registration) (*models.User, error) {
	hash, err := utils.HashPassword(r.Password)
	if err != nil {
		return nil, apperrors.Internal("hash password", err)
	}
	code, err := utils.GenerateAccessCode()
	if err != nil {
		return nil, apperrors.Internal("generate access code", err)
	}
	u := &models.User{
		Email:          strings.ToLower(strings.TrimSpace(r.Email)),
		Password:       hash,
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		AccessType:     models.AccessStandard,
		State:          models.StatePending,
		AccessCode:     code,
		GraduationYear: r.GraduationYear,
		Major:          strings.TrimSpace(r.Major),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, apperrors.Internal("create user", err)
	}
	s.logActivity(ctx, u.ID, models.ActivityAccountCreate, "")
	s.sendVerification(ctx, u, code)
	return u, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, apperrors.Internal("load user", err)
	}
	if !utils.CheckPassword(password, u.Password) {
		return "", nil, ErrBadCredentials
	}
	if u.IsBlocked() {
		return "", nil, ErrBlocked
	}
	token, err := s.tokens.Generate(u.ID, u.Email, string(u.AccessType))
	if err != nil {
		return "", nil, apperrors.Internal("sign token", err)
	}
	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("record last login", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
	u.LastLogin = &now
	s.logActivity(ctx, u.ID, models.ActivityAccountLogin, "")
	return token, u, nil
}

// VerifyEmail activates the account holding accessCode.
func (s *Service) VerifyEmail(ctx context.Context, accessCode string) (*models.User, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, ErrBadVerification
	}
	u, err := s.users.Activate(ctx, accessCode)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrBadVerification
		}
		return nil, apperrors.Internal("activate user", err)
	}
	s.logActivity(ctx, u.ID, models.ActivityAccountActivate, "")
	return u, nil
}

// ResendVerification issues a fresh verification code to a pending account. Unknown and
// already verified emails succeed silently so the response does not reveal which accounts exist.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil
		}
		return apperrors.Internal("load user", err)
	}
	if !u.IsPending() {
		return nil
	}
	code, err := utils.GenerateAccessCode()
	if err != nil {
		return apperrors.Internal("generate access code", err)
	}
	if err := s.users.SetAccessCode(ctx, u.ID, code); err != nil {
		return apperrors.Internal("store access code", err)
	}
	s.sendVerification(ctx, u, code)
	return nil
}

// Authenticate resolves a bearer token to the current account state.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u.IsBlocked() {
		return nil, ErrBlocked
	}
	return u, nil
}

func (s *Service) sendVerification(ctx context.Context, u *models.User, code string) {
	if s.mail == nil {
		return
	}
	err := s.mail.EnqueueVerificationEmail(ctx, queue.VerificationEmailPayload{
		UserID:     u.ID,
		Recipient:  u.Email,
		FirstName:  u.FirstName,
		AccessCode: code,
	})
	if err != nil {
		s.logger.Error("enqueue verification email", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
}

func (s *Service) logActivity(ctx context.Context, userID uuid.UUID, typ models.ActivityType, desc string) {
	if err := s.activities.Append(ctx, &models.Activity{UserID: userID, Type: typ, Description: desc}); err != nil {
		s.logger.Warn("append activity", zap.String("user_id", userID.String()), zap.String("type", string(typ)), zap.Error(err))
	}
}
