package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/membership-portal/backend/internal/auth"
	"github.com/membership-portal/backend/internal/models"
)

type stubTokens map[string]uuid.UUID

func (s stubTokens) Validate(token string) (*auth.Claims, error) {
	id, ok := s[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: id}, nil
}

type mockLoader struct{ mock.Mock }

func (m *mockLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newJWTRouter(tokens TokenValidator, loader UserLoader, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(tokens, loader, nil)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uuid": CurrentUser(c).ID})
	})
	r.GET("/me", chain...)
	return r
}

func get(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT_LoadsCurrentUser(t *testing.T) {
	u := &models.User{ID: uuid.New(), State: models.StateActive, AccessType: models.AccessStandard}
	loader := new(mockLoader)
	loader.On("GetByID", mock.Anything, u.ID).Return(u, nil)

	w := get(newJWTRouter(stubTokens{"good": u.ID}, loader), "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), u.ID.String())
}

func TestJWT_RejectsBadHeaders(t *testing.T) {
	loader := new(mockLoader)
	r := newJWTRouter(stubTokens{"good": uuid.New()}, loader)

	for name, header := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic good",
		"no token":      "Bearer",
		"unknown token": "Bearer forged",
	} {
		t.Run(name, func(t *testing.T) {
			w := get(r, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"status":401`)
		})
	}
	loader.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestJWT_DeletedUserIsUnauthorized(t *testing.T) {
	id := uuid.New()
	loader := new(mockLoader)
	loader.On("GetByID", mock.Anything, id).Return(nil, models.ErrUserNotFound)

	w := get(newJWTRouter(stubTokens{"good": id}, loader), "Bearer good")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "account no longer exists")
}

func TestJWT_BlockedUserIsForbidden(t *testing.T) {
	u := &models.User{ID: uuid.New(), State: models.StateBlocked, AccessType: models.AccessAdmin}
	loader := new(mockLoader)
	loader.On("GetByID", mock.Anything, u.ID).Return(u, nil)

	w := get(newJWTRouter(stubTokens{"good": u.ID}, loader), "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Your account has been blocked")
}

func TestJWT_LoaderFailureIsInternal(t *testing.T) {
	id := uuid.New()
	loader := new(mockLoader)
	loader.On("GetByID", mock.Anything, id).Return(nil, errors.New("connection refused"))

	w := get(newJWTRouter(stubTokens{"good": id}, loader), "Bearer good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
