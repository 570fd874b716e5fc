package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/models"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Create(ctx context.Context, e *models.Event) error {
	args := m.Called(ctx, e)
	if args.Error(0) == nil {
		e.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *mockStore) List(ctx context.Context, f ListFilter) ([]*models.Event, error) {
	args := m.Called(ctx, f)
	l, _ := args.Get(0).([]*models.Event)
	return l, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, e *models.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newRouter(store Store, access models.AccessType) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	h.now = func() time.Time { return now }
	r := gin.New()
	g := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUser, &models.User{ID: uuid.New(), AccessType: access, State: models.StateActive})
		c.Next()
	})
	h.RegisterMember(g)
	h.RegisterAdmin(g.Group("/admin"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleEvent() *models.Event {
	return &models.Event{ID: uuid.New(), Title: "Hack Night", AttendanceCode: "secret-code",
		StartDate: now, EndDate: now.Add(time.Hour), AttendancePoints: 10}
}

func TestFuture_MemberViewHidesCode(t *testing.T) {
	store := new(mockStore)
	store.On("List", mock.Anything, mock.MatchedBy(func(f ListFilter) bool {
		return f.After != nil && f.After.Equal(now) && f.Before == nil && f.Committee == "AI"
	})).Return([]*models.Event{sampleEvent()}, nil)

	w := do(newRouter(store, models.AccessStandard), http.MethodGet, "/api/v1/event/future?committee=AI", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hack Night")
	assert.NotContains(t, w.Body.String(), "secret-code")
}

func TestPast_AdminSeesCode(t *testing.T) {
	store := new(mockStore)
	store.On("List", mock.Anything, mock.MatchedBy(func(f ListFilter) bool { return f.Before != nil })).
		Return([]*models.Event{sampleEvent()}, nil)

	w := do(newRouter(store, models.AccessAdmin), http.MethodGet, "/api/v1/event/past", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secret-code")
}

func TestGet_NotFound(t *testing.T) {
	store := new(mockStore)
	store.On("GetByID", mock.Anything, mock.Anything).Return(nil, models.ErrEventNotFound)

	w := do(newRouter(store, models.AccessStandard), http.MethodGet, "/api/v1/event/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"status":404,"message":"Event not found"}}`, w.Body.String())
}

func TestCreate(t *testing.T) {
	store := new(mockStore)
	store.On("Create", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.Title == "Hack Night" && e.AttendanceCode == "abc123" && e.AttendancePoints == 10 && e.Committee == "General"
	})).Return(nil)

	body := `{"event":{"title":"Hack Night","start":"2026-10-01T18:00:00Z","end":"2026-10-01T20:00:00Z","attendanceCode":" abc123 ","pointValue":10}}`
	w := do(newRouter(store, models.AccessAdmin), http.MethodPost, "/api/v1/admin/event", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Event models.Event `json:"event"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.Event.ID)
}

func TestCreate_Validation(t *testing.T) {
	store := new(mockStore)
	r := newRouter(store, models.AccessAdmin)

	w := do(r, http.MethodPost, "/api/v1/admin/event", `{"event":{"title":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/admin/event",
		`{"event":{"title":"x","start":"2026-10-02T00:00:00Z","end":"2026-10-01T00:00:00Z","attendanceCode":"c"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Event must start before it ends")

	w = do(r, http.MethodPost, "/api/v1/admin/event",
		`{"event":{"title":"x","start":"2026-10-01T00:00:00Z","end":"2026-10-01T00:00:00Z","attendanceCode":"c","pointValue":-1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_CodeTaken(t *testing.T) {
	store := new(mockStore)
	store.On("Create", mock.Anything, mock.Anything).Return(models.ErrCodeTaken)

	w := do(newRouter(store, models.AccessAdmin), http.MethodPost, "/api/v1/admin/event",
		`{"event":{"title":"x","start":"2026-10-01T00:00:00Z","end":"2026-10-01T01:00:00Z","attendanceCode":"dup"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Attendance code in use")
}

func TestUpdate_PatchesOnlyGivenFields(t *testing.T) {
	store := new(mockStore)
	e := sampleEvent()
	store.On("GetByID", mock.Anything, e.ID).Return(e, nil)
	store.On("Update", mock.Anything, mock.MatchedBy(func(got *models.Event) bool {
		return got.Title == "Hack Night" && got.AttendancePoints == 25
	})).Return(nil)

	w := do(newRouter(store, models.AccessAdmin), http.MethodPatch, "/api/v1/admin/event/"+e.ID.String(), `{"event":{"pointValue":25}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDelete_WithAttendanceIsConflict(t *testing.T) {
	store := new(mockStore)
	id := uuid.New()
	store.On("Delete", mock.Anything, id).Return(models.ErrEventHasAttendees)

	w := do(newRouter(store, models.AccessAdmin), http.MethodDelete, "/api/v1/admin/event/"+id.String(), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdate_RejectsNewAttendanceCode(t *testing.T) {
	store := new(mockStore)
	e := sampleEvent()
	store.On("GetByID", mock.Anything, e.ID).Return(e, nil)

	w := do(newRouter(store, models.AccessAdmin), http.MethodPatch, "/api/v1/admin/event/"+e.ID.String(), `{"event":{"attendanceCode":"new-code"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":{"status":400,"message":"The attendance code of an event cannot be changed"}}`, w.Body.String())
	assert.Equal(t, "secret-code", e.AttendanceCode)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdate_AcceptsUnchangedAttendanceCode(t *testing.T) {
	store := new(mockStore)
	e := sampleEvent()
	store.On("GetByID", mock.Anything, e.ID).Return(e, nil)
	store.On("Update", mock.Anything, mock.MatchedBy(func(got *models.Event) bool {
		return got.AttendanceCode == "secret-code" && got.Title == "Renamed"
	})).Return(nil)

	w := do(newRouter(store, models.AccessAdmin), http.MethodPatch, "/api/v1/admin/event/"+e.ID.String(),
		`{"event":{"title":"Renamed","attendanceCode":" SECRET-CODE "}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}
