package admin

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/models"
)

// UserFinder resolves members by email.
type UserFinder interface {
	ListByEmails(ctx context.Context, emails []string) ([]*models.User, error)
}

// Invalidator drops the cached leaderboard.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// AccessUpdate is one requested access change.
type AccessUpdate struct {
	User       string            `json:"user"`
	AccessType models.AccessType `json:"accessType"`
}

// Bonus grants points to a set of members.
type Bonus struct {
	Users       []string `json:"users"`
	Description string   `json:"description"`
	Points      int      `json:"points"`
}

// Service implements admin batch operations. Each batch is all-or-nothing.
type Service struct {
	store       Store
	users       UserFinder
	leaderboard Invalidator
	logger      *zap.Logger
}

// NewService creates an admin service. leaderboard may be nil.
func NewService(store Store, users UserFinder, leaderboard Invalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, leaderboard: leaderboard, logger: logger}
}

// ChangeAccess applies access updates. Admins cannot change their own access.
func (s *Service) ChangeAccess(ctx context.Context, actor *models.User, updates []AccessUpdate) ([]models.UserPublic, error) {
	if len(updates) == 0 {
		return nil, apperrors.BadRequest("No access updates given")
	}
	emails := make([]string, 0, len(updates))
	for _, u := range updates {
		if !u.AccessType.Valid() {
			return nil, apperrors.BadRequest(fmt.Sprintf("Invalid access type %q", u.AccessType))
		}
		if strings.EqualFold(strings.TrimSpace(u.User), actor.Email) {
			return nil, apperrors.Forbidden("Cannot change your own access level")
		}
		emails = append(emails, strings.TrimSpace(u.User))
	}
	byEmail, err := s.resolve(ctx, emails)
	if err != nil {
		return nil, err
	}

	changed := make([]models.UserPublic, 0, len(updates))
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		changed = changed[:0]
		for _, up := range updates {
			u := byEmail[strings.ToLower(strings.TrimSpace(up.User))]
			if err := tx.SetAccessType(ctx, u.ID, up.AccessType); err != nil {
				return fmt.Errorf("set access for %s: %w", u.ID, err)
			}
			if err := tx.AppendActivity(ctx, &models.Activity{
				UserID:      u.ID,
				Type:        models.ActivityAccessChange,
				Description: fmt.Sprintf("%s changed access from %s to %s", actor.FullName(), u.AccessType, up.AccessType),
			}); err != nil {
				return fmt.Errorf("append activity: %w", err)
			}
			changed = append(changed, u.ToPublic())
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("change access", err)
	}
	s.logger.Info("access levels changed", zap.String("admin_id", actor.ID.String()), zap.Int("count", len(changed)))
	s.invalidate(ctx)
	return changed, nil
}

// GrantBonus adds points to every listed member with a BONUS_POINTS activity each.
func (s *Service) GrantBonus(ctx context.Context, actor *models.User, b Bonus) ([]string, error) {
	if b.Points <= 0 {
		return nil, apperrors.BadRequest("Bonus points must be positive")
	}
	if strings.TrimSpace(b.Description) == "" {
		return nil, apperrors.BadRequest("Bonus description is required")
	}
	if len(b.Users) == 0 {
		return nil, apperrors.BadRequest("At least one user email is required")
	}
	byEmail, err := s.resolve(ctx, b.Users)
	if err != nil {
		return nil, err
	}

	awarded := make([]string, 0, len(byEmail))
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		awarded = awarded[:0]
		for _, u := range byEmail {
			if err := tx.AppendActivity(ctx, &models.Activity{
				UserID:       u.ID,
				Type:         models.ActivityBonusPoints,
				Description:  strings.TrimSpace(b.Description),
				PointsEarned: b.Points,
				Public:       true,
			}); err != nil {
				return fmt.Errorf("append activity: %w", err)
			}
			if _, err := tx.AddPoints(ctx, u.ID, b.Points); err != nil {
				return fmt.Errorf("add points: %w", err)
			}
			awarded = append(awarded, u.Email)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("grant bonus", err)
	}
	s.logger.Info("bonus points granted",
		zap.String("admin_id", actor.ID.String()),
		zap.Int("users", len(awarded)),
		zap.Int("points", b.Points),
	)
	s.invalidate(ctx)
	return awarded, nil
}

// resolve maps normalized emails to users and fails if any are unknown.
func (s *Service) resolve(ctx context.Context, emails []string) (map[string]*models.User, error) {
	emails = models.NormalizeEmails(emails)
	if len(emails) == 0 {
		return nil, apperrors.BadRequest("At least one user email is required")
	}
	found, err := s.users.ListByEmails(ctx, emails)
	if err != nil {
		return nil, apperrors.Internal("load users", err)
	}
	byEmail := make(map[string]*models.User, len(found))
	for _, u := range found {
		byEmail[strings.ToLower(u.Email)] = u
	}
	var unknown []string
	for _, e := range emails {
		if _, ok := byEmail[e]; !ok {
			unknown = append(unknown, e)
		}
	}
	if len(unknown) > 0 {
		return nil, apperrors.UserError("Unknown users: " + strings.Join(unknown, ", "))
	}
	return byEmail, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("leaderboard invalidate failed", zap.Error(err))
	}
}
