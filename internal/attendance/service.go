package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/database"
)

// Member-facing failures of the award protocol. The messages are shown verbatim.
var (
	ErrCodeRequired   = apperrors.BadRequest("Attendance code is required")
	ErrInvalidCode    = apperrors.UserError("Oh no! That code didn't work.")
	ErrOutsideWindow  = apperrors.UserError("You can only enter the attendance code during the event!")
	ErrAlreadyCounted = apperrors.UserError("You have already attended this event!")
	ErrPending        = apperrors.Forbidden("Please verify your email address before checking in")
	ErrRestricted     = apperrors.Forbidden("Your account cannot earn attendance points")
)

// Tx is the set of writes an award performs inside one transaction.
type Tx interface {
	HasAttended(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	Record(ctx context.Context, a *models.Attendance) error
	AppendActivity(ctx context.Context, a *models.Activity) error
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
}

// Store opens award transactions. fn may be invoked more than once when the
// store retries a transaction that lost a serialization race.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// EventFinder resolves events for check-in and admin lookups.
type EventFinder interface {
	GetByAttendanceCode(ctx context.Context, code string) (*models.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// UserFinder resolves members by email for admin attendance.
type UserFinder interface {
	ListByEmails(ctx context.Context, emails []string) ([]*models.User, error)
}

// Ledger is the read side of the attendance table.
type Ledger interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PublicAttendance, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.PublicAttendance, error)
	CountForEvent(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Invalidator drops derived views of points (the leaderboard cache).
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Publisher delivers live messages to watchers of an event.
type Publisher interface {
	Publish(ctx context.Context, eventID uuid.UUID, kind string, data any) error
}

// CheckIn is the live feed payload sent after an award commits.
type CheckIn struct {
	User      models.UserPublic `json:"user"`
	AsStaff   bool              `json:"asStaff"`
	Points    int               `json:"points"`
	Count     int               `json:"count"`
	Timestamp time.Time         `json:"timestamp"`
}

// FeedKindAttendance is the message kind published for check-ins.
const FeedKindAttendance = "attendance"

// Service implements event check-in and the points award.
type Service struct {
	store       Store
	events      EventFinder
	users       UserFinder
	ledger      Ledger
	leaderboard Invalidator
	feed        Publisher
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now; tests use it to place "now" relative to the event window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLeaderboard invalidates the leaderboard cache after every award.
func WithLeaderboard(inv Invalidator) Option {
	return func(s *Service) { s.leaderboard = inv }
}

// WithFeed publishes check-ins to the live feed after every award.
func WithFeed(p Publisher) Option {
	return func(s *Service) { s.feed = p }
}

// NewService creates the attendance service.
func NewService(store Store, events EventFinder, users UserFinder, ledger Ledger, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		events: events,
		users:  users,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Attend checks the member into the event whose attendance code matches code and
// awards its points. It returns the attended event.
func (s *Service) Attend(ctx context.Context, user *models.User, code string) (*models.Event, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if user.IsPending() {
		return nil, ErrPending
	}
	if user.AccessType == models.AccessRestricted {
		return nil, ErrRestricted
	}

	event, err := s.events.GetByAttendanceCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, apperrors.Internal("look up attendance code", err)
	}

	now := s.now()
	if !event.InWindow(now) {
		return nil, ErrOutsideWindow
	}

	if err := s.award(ctx, user, event, false, now); err != nil {
		return nil, err
	}
	return event, nil
}

// ManualResult reports what an admin attendance request did per email.
type ManualResult struct {
	Attended        []string `json:"attended"`
	AlreadyAttended []string `json:"alreadyAttended"`
	Unknown         []string `json:"unknown"`
}

// AttendForUsers records attendance on behalf of the listed members without the
// time-window check. Members who already attended are reported, not failed.
func (s *Service) AttendForUsers(ctx context.Context, eventID uuid.UUID, emails []string, asStaff bool) (*ManualResult, error) {
	emails = models.NormalizeEmails(emails)
	if len(emails) == 0 {
		return nil, apperrors.BadRequest("At least one user email is required")
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, apperrors.NotFound("Event not found")
		}
		return nil, apperrors.Internal("load event", err)
	}
	members, err := s.users.ListByEmails(ctx, emails)
	if err != nil {
		return nil, apperrors.Internal("load users", err)
	}

	res := &ManualResult{Attended: []string{}, AlreadyAttended: []string{}, Unknown: []string{}}
	found := make(map[string]bool, len(members))
	for _, u := range members {
		found[strings.ToLower(u.Email)] = true
		err := s.award(ctx, u, event, asStaff, s.now())
		switch {
		case err == nil:
			res.Attended = append(res.Attended, u.Email)
		case errors.Is(err, ErrAlreadyCounted):
			res.AlreadyAttended = append(res.AlreadyAttended, u.Email)
		default:
			return nil, err
		}
	}
	for _, e := range emails {
		if !found[e] {
			res.Unknown = append(res.Unknown, e)
		}
	}
	return res, nil
}

// award is the critical section shared by every attendance path: re-check,
// insert, log and increment, all in one transaction.
func (s *Service) award(ctx context.Context, user *models.User, event *models.Event, asStaff bool, now time.Time) error {
	points := event.PointsFor(asStaff)
	var total int
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		attended, err := tx.HasAttended(ctx, user.ID, event.ID)
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if attended {
			return models.ErrAlreadyAttended
		}
		if err := tx.Record(ctx, &models.Attendance{
			UserID:       user.ID,
			EventID:      event.ID,
			AsStaff:      asStaff,
			PointsEarned: points,
			Timestamp:    now,
		}); err != nil {
			return fmt.Errorf("record attendance: %w", err)
		}
		if err := tx.AppendActivity(ctx, &models.Activity{
			UserID:       user.ID,
			Type:         models.ActivityAttendEvent,
			Description:  "Attended " + event.Title,
			PointsEarned: points,
			Public:       true,
		}); err != nil {
			return fmt.Errorf("append activity: %w", err)
		}
		total, err = tx.AddPoints(ctx, user.ID, points)
		if err != nil {
			return fmt.Errorf("add points: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyAttended) || database.IsUniqueViolation(err) {
			return ErrAlreadyCounted
		}
		return apperrors.Internal("record attendance", err)
	}

	s.logger.Info("attendance recorded",
		zap.String("user_id", user.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.Bool("as_staff", asStaff),
		zap.Int("points", points),
		zap.Int("total_points", total),
	)
	s.afterCommit(context.WithoutCancel(ctx), user, event, asStaff, points, total, now)
	return nil
}

// afterCommit refreshes derived state. The award already stands, so failures are only logged.
func (s *Service) afterCommit(ctx context.Context, user *models.User, event *models.Event, asStaff bool, points, total int, now time.Time) {
	if s.leaderboard != nil {
		if err := s.leaderboard.Invalidate(ctx); err != nil {
			s.logger.Warn("leaderboard invalidate failed", zap.Error(err))
		}
	}
	if s.feed == nil {
		return
	}
	count, err := s.ledger.CountForEvent(ctx, event.ID)
	if err != nil {
		s.logger.Warn("count attendance for feed", zap.String("event_id", event.ID.String()), zap.Error(err))
	}
	pub := user.ToPublic()
	pub.Points = total
	msg := CheckIn{User: pub, AsStaff: asStaff, Points: points, Count: count, Timestamp: now}
	if err := s.feed.Publish(ctx, event.ID, FeedKindAttendance, msg); err != nil {
		s.logger.Warn("publish check-in", zap.String("event_id", event.ID.String()), zap.Error(err))
	}
}

// History returns the member's attendance, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.PublicAttendance, error) {
	list, err := s.ledger.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("list attendance", err)
	}
	return list, nil
}

// EventAttendance is the admin view of one event's ledger.
type EventAttendance struct {
	Event         *models.Event
	Attendance    []models.PublicAttendance
	PointsAwarded int
}

// ForEvent returns who attended the event and the points credited for it at check-in.
func (s *Service) ForEvent(ctx context.Context, eventID uuid.UUID) (*EventAttendance, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, apperrors.NotFound("Event not found")
		}
		return nil, apperrors.Internal("load event", err)
	}
	list, err := s.ledger.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Internal("list event attendance", err)
	}
	total := 0
	for _, a := range list {
		total += a.PointsEarned
	}
	return &EventAttendance{Event: event, Attendance: list, PointsAwarded: total}, nil
}
