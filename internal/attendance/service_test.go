package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/membership-portal/backend/internal/apperrors"
	"github.com/membership-portal/backend/internal/models"
)

var t0 = time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)

func testEvent() *models.Event {
	return &models.Event{
		ID:               uuid.New(),
		Title:            "Hack Night",
		StartDate:        t0,
		EndDate:          t0.Add(2 * time.Hour),
		AttendanceCode:   "abc123",
		AttendancePoints: 10,
		StaffPoints:      5,
	}
}

func activeUser() *models.User {
	return &models.User{
		ID:         uuid.New(),
		Email:      "ada@example.org",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		AccessType: models.AccessStandard,
		State:      models.StateActive,
	}
}

type fixture struct {
	svc    *Service
	store  *memStore
	events *mockEvents
	users  *mockUsers
	event  *models.Event
}

func newFixture(t *testing.T, at time.Time, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		events: new(mockEvents),
		users:  new(mockUsers),
		event:  testEvent(),
	}
	f.events.On("GetByAttendanceCode", mock.Anything, "abc123").Return(f.event, nil).Maybe()
	f.events.On("GetByAttendanceCode", mock.Anything, mock.Anything).Return(nil, models.ErrEventNotFound).Maybe()
	f.events.On("GetByID", mock.Anything, f.event.ID).Return(f.event, nil).Maybe()
	f.events.On("GetByID", mock.Anything, mock.Anything).Return(nil, models.ErrEventNotFound).Maybe()
	opts = append([]Option{WithClock(func() time.Time { return at })}, opts...)
	f.svc = NewService(f.store, f.events, f.users, memLedger{f.store}, nil, opts...)
	return f
}

func TestAttend_AwardsPointsInsideWindow(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	u := activeUser()

	event, err := f.svc.Attend(context.Background(), u, "abc123")
	require.NoError(t, err)
	assert.Equal(t, f.event.ID, event.ID)
	assert.Equal(t, 1, f.store.rows())
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
	require.Equal(t, 1, f.store.activityCount())
	assert.Equal(t, models.ActivityAttendEvent, f.store.activities[0].Type)
	assert.Equal(t, 10, f.store.activities[0].PointsEarned)
}

func TestAttend_TrimsCode(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))

	_, err := f.svc.Attend(context.Background(), activeUser(), "  abc123 ")
	require.NoError(t, err)
}

func TestAttend_WindowIsInclusive(t *testing.T) {
	for _, at := range []time.Time{t0, t0.Add(2 * time.Hour)} {
		f := newFixture(t, at)
		_, err := f.svc.Attend(context.Background(), activeUser(), "abc123")
		assert.NoError(t, err, "at %s", at)
	}
}

func TestAttend_OutsideWindowChangesNothing(t *testing.T) {
	for _, at := range []time.Time{t0.Add(-time.Minute), t0.Add(3 * time.Hour)} {
		f := newFixture(t, at)
		u := activeUser()

		_, err := f.svc.Attend(context.Background(), u, "abc123")
		require.ErrorIs(t, err, ErrOutsideWindow)
		assert.Equal(t, "You can only enter the attendance code during the event!", apperrors.MessageOf(err))
		assert.Equal(t, 0, f.store.rows())
		assert.Equal(t, 0, f.store.pointsOf(u.ID))
		assert.Equal(t, 0, f.store.attempts, "no transaction is opened")
	}
}

func TestAttend_UnknownCode(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))

	_, err := f.svc.Attend(context.Background(), activeUser(), "nope")
	require.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, 400, apperrors.StatusOf(err))
	assert.Equal(t, "Oh no! That code didn't work.", apperrors.MessageOf(err))
}

func TestAttend_EmptyCode(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))

	_, err := f.svc.Attend(context.Background(), activeUser(), "   ")
	require.ErrorIs(t, err, ErrCodeRequired)
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	f.events.AssertNotCalled(t, "GetByAttendanceCode", mock.Anything, mock.Anything)
}

func TestAttend_PendingAndRestrictedAreForbidden(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))

	pending := activeUser()
	pending.State = models.StatePending
	_, err := f.svc.Attend(context.Background(), pending, "abc123")
	assert.Equal(t, 403, apperrors.StatusOf(err))

	restricted := activeUser()
	restricted.AccessType = models.AccessRestricted
	_, err = f.svc.Attend(context.Background(), restricted, "abc123")
	assert.Equal(t, 403, apperrors.StatusOf(err))
	assert.Equal(t, 0, f.store.rows())
}

func TestAttend_ResubmitIsDuplicate(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	u := activeUser()

	_, err := f.svc.Attend(context.Background(), u, "abc123")
	require.NoError(t, err)
	_, err = f.svc.Attend(context.Background(), u, "abc123")
	require.ErrorIs(t, err, ErrAlreadyCounted)
	assert.Equal(t, "You have already attended this event!", apperrors.MessageOf(err))
	assert.Equal(t, 1, f.store.rows())
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
	assert.Equal(t, 1, f.store.activityCount())
}

func TestAttend_ConcurrentSubmissionsAwardOnce(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	u := activeUser()

	const n = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Attend(context.Background(), u, "abc123")
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyCounted)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.store.rows())
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
	assert.Equal(t, 1, f.store.activityCount())
}

func TestAttend_CommitTimeConflictIsDuplicate(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	u := activeUser()
	f.store.beforeCommit = func(m *memStore) {
		m.attendance[pair{u.ID, f.event.ID}] = models.Attendance{ID: uuid.New(), UserID: u.ID, EventID: f.event.ID}
		m.points[u.ID] += 10
	}

	_, err := f.svc.Attend(context.Background(), u, "abc123")
	require.ErrorIs(t, err, ErrAlreadyCounted)
	assert.Equal(t, 10, f.store.pointsOf(u.ID), "only the concurrent winner's award persists")
	assert.Equal(t, 0, f.store.activityCount())
}

func TestAttend_PointsFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	f.store.failAddPoints = errBoom
	u := activeUser()

	_, err := f.svc.Attend(context.Background(), u, "abc123")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, f.store.rows())
	assert.Equal(t, 0, f.store.activityCount())
	assert.Equal(t, 0, f.store.pointsOf(u.ID))
}

func TestAttend_CanceledBeforeCommitLeavesNoTrace(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := activeUser()

	_, err := f.svc.Attend(ctx, u, "abc123")
	require.Error(t, err)
	assert.Equal(t, 0, f.store.rows())
	assert.Equal(t, 0, f.store.pointsOf(u.ID))
}

func TestAttend_AfterCommitHooks(t *testing.T) {
	inv := new(mockInvalidator)
	pub := new(mockPublisher)
	f := newFixture(t, t0.Add(time.Hour), WithLeaderboard(inv), WithFeed(pub))
	u := activeUser()

	inv.On("Invalidate", mock.Anything).Return(errBoom).Once()
	pub.On("Publish", mock.Anything, f.event.ID, FeedKindAttendance, mock.MatchedBy(func(msg CheckIn) bool {
		return msg.User.ID == u.ID && msg.Count == 1 && msg.Points == 10 && msg.User.Points == 10
	})).Return(errBoom).Once()

	_, err := f.svc.Attend(context.Background(), u, "abc123")
	require.NoError(t, err, "hook failures do not undo a committed award")
	inv.AssertExpectations(t)
	pub.AssertExpectations(t)
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
}

func TestAttendForUsers_SkipsWindowAndDuplicates(t *testing.T) {
	f := newFixture(t, t0.Add(-24*time.Hour))
	a, b := activeUser(), activeUser()
	b.Email = "grace@example.org"
	emails := []string{a.Email, b.Email, "ghost@example.org"}
	f.users.On("ListByEmails", mock.Anything, emails).Return([]*models.User{a, b}, nil)

	f.users.On("ListByEmails", mock.Anything, []string{a.Email}).Return([]*models.User{a}, nil)
	_, err := f.svc.AttendForUsers(context.Background(), f.event.ID, []string{a.Email}, false)
	require.NoError(t, err)

	res, err := f.svc.AttendForUsers(context.Background(), f.event.ID, emails, true)
	require.NoError(t, err)
	assert.Equal(t, []string{b.Email}, res.Attended)
	assert.Equal(t, []string{a.Email}, res.AlreadyAttended)
	assert.Equal(t, []string{"ghost@example.org"}, res.Unknown)
	assert.Equal(t, 10, f.store.pointsOf(a.ID))
	assert.Equal(t, 15, f.store.pointsOf(b.ID), "staff bonus applies")
}

func TestAttendForUsers_UnknownEvent(t *testing.T) {
	f := newFixture(t, t0)

	_, err := f.svc.AttendForUsers(context.Background(), uuid.New(), []string{"a@b.c"}, false)
	assert.Equal(t, 404, apperrors.StatusOf(err))
}

func TestForEvent_SumsPoints(t *testing.T) {
	f := newFixture(t, t0)
	a, b := activeUser(), activeUser()
	b.Email = "grace@example.org"
	f.users.On("ListByEmails", mock.Anything, []string{a.Email}).Return([]*models.User{a}, nil)
	f.users.On("ListByEmails", mock.Anything, []string{b.Email}).Return([]*models.User{b}, nil)

	_, err := f.svc.AttendForUsers(context.Background(), f.event.ID, []string{a.Email}, false)
	require.NoError(t, err)
	_, err = f.svc.AttendForUsers(context.Background(), f.event.ID, []string{b.Email}, true)
	require.NoError(t, err)

	got, err := f.svc.ForEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attendance, 2)
	assert.Equal(t, 25, got.PointsAwarded)
}

func TestForEvent_ReportsCreditedPointsAfterEventEdit(t *testing.T) {
	f := newFixture(t, t0.Add(time.Hour))
	u := activeUser()
	_, err := f.svc.Attend(context.Background(), u, "abc123")
	require.NoError(t, err)

	f.event.AttendancePoints = 50

	got, err := f.svc.ForEvent(context.Background(), f.event.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendance, 1)
	assert.Equal(t, 10, got.Attendance[0].PointsEarned)
	assert.Equal(t, 10, got.PointsAwarded)
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
}

func TestAttendForUsers_NormalizesEmailsBeforeLookup(t *testing.T) {
	f := newFixture(t, t0)
	u := activeUser()
	f.users.On("ListByEmails", mock.Anything, []string{"ada@example.org"}).Return([]*models.User{u}, nil)

	res, err := f.svc.AttendForUsers(context.Background(), f.event.ID, []string{" Ada@Example.org ", "ada@example.org"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{u.Email}, res.Attended)
	assert.Empty(t, res.Unknown)
	assert.Equal(t, 10, f.store.pointsOf(u.ID))
	f.users.AssertExpectations(t)
}
