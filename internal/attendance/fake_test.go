package attendance

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/membership-portal/backend/internal/models"
)

type pair struct{ user, event uuid.UUID }

// memStore models a snapshot-isolated database: reads see the state committed
// when the transaction began, point increments are applied as deltas at commit,
// and the (user, event) uniqueness is checked at commit like the real constraint.
type memStore struct {
	mu         sync.Mutex
	attendance map[pair]models.Attendance
	points     map[uuid.UUID]int
	activities []models.Activity

	failAddPoints error
	beforeCommit  func(*memStore)
	attempts      int
}

func newMemStore() *memStore {
	return &memStore{attendance: map[pair]models.Attendance{}, points: map[uuid.UUID]int{}}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	m.attempts++
	tx := &memTx{
		store:    m,
		snapshot: make(map[pair]bool, len(m.attendance)),
		base:     make(map[uuid.UUID]int, len(m.points)),
		deltas:   map[uuid.UUID]int{},
	}
	for k := range m.attendance {
		tx.snapshot[k] = true
	}
	for k, v := range m.points {
		tx.base[k] = v
	}
	hook := m.beforeCommit
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	for _, a := range tx.inserted {
		if _, ok := m.attendance[pair{a.UserID, a.EventID}]; ok {
			return models.ErrAlreadyAttended
		}
	}
	for _, a := range tx.inserted {
		m.attendance[pair{a.UserID, a.EventID}] = a
	}
	m.activities = append(m.activities, tx.activities...)
	for id, d := range tx.deltas {
		m.points[id] += d
	}
	return nil
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendance)
}

func (m *memStore) pointsOf(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[id]
}

func (m *memStore) activityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

type memTx struct {
	store      *memStore
	snapshot   map[pair]bool
	base       map[uuid.UUID]int
	deltas     map[uuid.UUID]int
	inserted   []models.Attendance
	activities []models.Activity
}

func (t *memTx) HasAttended(_ context.Context, userID, eventID uuid.UUID) (bool, error) {
	if t.snapshot[pair{userID, eventID}] {
		return true, nil
	}
	for _, a := range t.inserted {
		if a.UserID == userID && a.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Record(_ context.Context, a *models.Attendance) error {
	if ok, _ := t.HasAttended(context.Background(), a.UserID, a.EventID); ok {
		return models.ErrAlreadyAttended
	}
	a.ID = uuid.New()
	t.inserted = append(t.inserted, *a)
	return nil
}

func (t *memTx) AppendActivity(_ context.Context, a *models.Activity) error {
	a.ID = uuid.New()
	t.activities = append(t.activities, *a)
	return nil
}

func (t *memTx) AddPoints(_ context.Context, userID uuid.UUID, delta int) (int, error) {
	if t.store.failAddPoints != nil {
		return 0, t.store.failAddPoints
	}
	t.deltas[userID] += delta
	return t.base[userID] + t.deltas[userID], nil
}

// memLedger answers read-side queries from a memStore.
type memLedger struct{ store *memStore }

func (l memLedger) ListForUser(_ context.Context, userID uuid.UUID) ([]models.PublicAttendance, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	list := []models.PublicAttendance{}
	for k, a := range l.store.attendance {
		if k.user == userID {
			list = append(list, models.PublicAttendance{ID: a.ID, AsStaff: a.AsStaff, PointsEarned: a.PointsEarned, Timestamp: a.Timestamp})
		}
	}
	return list, nil
}

func (l memLedger) ListForEvent(_ context.Context, eventID uuid.UUID) ([]models.PublicAttendance, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	list := []models.PublicAttendance{}
	for k, a := range l.store.attendance {
		if k.event == eventID {
			list = append(list, models.PublicAttendance{ID: a.ID, AsStaff: a.AsStaff, PointsEarned: a.PointsEarned, Timestamp: a.Timestamp})
		}
	}
	return list, nil
}

func (l memLedger) CountForEvent(_ context.Context, eventID uuid.UUID) (int, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	n := 0
	for k := range l.store.attendance {
		if k.event == eventID {
			n++
		}
	}
	return n, nil
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) GetByAttendanceCode(ctx context.Context, code string) (*models.Event, error) {
	args := m.Called(ctx, code)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *mockEvents) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) ListByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	args := m.Called(ctx, emails)
	u, _ := args.Get(0).([]*models.User)
	return u, args.Error(1)
}

type mockInvalidator struct{ mock.Mock }

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, eventID uuid.UUID, kind string, data any) error {
	return m.Called(ctx, eventID, kind, data).Error(0)
}

var errBoom = errors.New("boom")
