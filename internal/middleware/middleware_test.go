package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/pkg/apperrors"
	"mmh_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens() *auth.TokenManager {
	return auth.NewTokenManager(auth.TokenConfig{Secret: "middleware-secret", AccessTTL: time.Minute, RefreshTTL: time.Hour})
}

func protectedRouter(tokens *auth.TokenManager, guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(tokens, nil)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{
			"userId":    GetUserID(c),
			"role":      role,
			"ctxUserId": logger.GetUserID(c.Request.Context()),
		})
	})
	r.GET("/protected", handlers...)
	return r
}

func call(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	tokens := newTokens()
	pair, err := tokens.IssuePair("user-1", "media@example.com", string(models.UserRoleMedia))
	require.NoError(t, err)
	r := protectedRouter(tokens)

	w := call(r, "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["userId"])
	assert.Equal(t, "media", body["role"])
	assert.Equal(t, "user-1", body["ctxUserId"])

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"not bearer", "Basic abc", "UNAUTHORIZED"},
		{"garbage token", "Bearer abc.def.ghi", "INVALID_TOKEN"},
		{"refresh token", "Bearer " + pair.RefreshToken, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(r, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	other := auth.NewTokenManager(auth.TokenConfig{Secret: "other-secret", AccessTTL: time.Minute})
	forged, err := other.IssuePair("user-1", "media@example.com", string(models.UserRoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+forged.AccessToken).Code)
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func TestAuthMiddleware_ChecksCurrentAccount(t *testing.T) {
	tokens := newTokens()
	users := fakeUsers{
		"active":    {Role: models.UserRoleAgency, Status: models.UserStatusVerified},
		"suspended": {Role: models.UserRoleMedia, Status: models.UserStatusSuspended},
	}
	bearer := func(id string) string {
		pair, err := tokens.IssuePair(id, id+"@example.com", string(models.UserRoleMedia))
		require.NoError(t, err)
		return "Bearer " + pair.AccessToken
	}
	echoRole := func(c *gin.Context) {
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"role": role})
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(contextkeys.DBContextKey), &gorm.DB{})
		c.Next()
	})
	r.GET("/protected", AuthMiddleware(tokens, users), echoRole)

	w := call(r, bearer("active"))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "agency", body["role"], "stored role wins over the token")

	w = call(r, bearer("suspended"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = call(r, bearer("deleted"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, w))

	noDB := gin.New()
	noDB.GET("/protected", AuthMiddleware(tokens, users), echoRole)
	assert.Equal(t, http.StatusInternalServerError, call(noDB, bearer("active")).Code)
}

func TestRequireRolesAndPermission(t *testing.T) {
	tokens := newTokens()
	agency, err := tokens.IssuePair("agency-1", "agency@example.com", string(models.UserRoleAgency))
	require.NoError(t, err)
	media, err := tokens.IssuePair("media-1", "media@example.com", string(models.UserRoleMedia))
	require.NoError(t, err)

	byRole := protectedRouter(tokens, RequireRoles(models.UserRoleAdmin, models.UserRoleMedia))
	assert.Equal(t, http.StatusOK, call(byRole, "Bearer "+media.AccessToken).Code)
	w := call(byRole, "Bearer "+agency.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	byPerm := protectedRouter(tokens, RequirePermission(auth.PermOrdersCreate))
	assert.Equal(t, http.StatusOK, call(byPerm, "Bearer "+agency.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, call(byPerm, "Bearer "+media.AccessToken).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.GetRequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get("X-Request-ID"))
}
