package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/infrastructure/auth"
	"github.com/reformshop/backend/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters!!",
		Issuer:                "reformshop-test",
		AccessTokenExpiration: time.Minute,
	})
}

func TestRequireDevice(t *testing.T) {
	router := gin.New()
	router.Use(RequireDevice())
	var captured cart.DeviceID
	router.GET("/", func(c *gin.Context) {
		captured = GetDevice(c)
		c.Status(http.StatusOK)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_DEVICE_ID")
	})

	t.Run("oversized header rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(DeviceHeaderKey, strings.Repeat("x", 200))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid header passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(DeviceHeaderKey, "device-42")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, cart.DeviceID("device-42"), captured)
	})
}

func TestIdentity(t *testing.T) {
	svc := testJWTService()
	router := gin.New()
	router.Use(Identity(svc, nil))
	var captured cart.Identity
	router.GET("/", func(c *gin.Context) {
		captured = GetIdentity(c)
		c.Status(http.StatusOK)
	})

	t.Run("no header resolves anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, captured.IsAuthenticated())
	})

	t.Run("valid token resolves user", func(t *testing.T) {
		userID := uuid.New()
		token, _, err := svc.GenerateToken(userID)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, captured.IsAuthenticated())
		assert.Equal(t, userID, captured.UserID())
	})

	t.Run("garbage token is rejected, not downgraded", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"garbage")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("expired token reported as expired", func(t *testing.T) {
		expiredSvc := auth.NewJWTService(config.JWTConfig{
			Secret:                "test-secret-at-least-32-characters!!",
			AccessTokenExpiration: -time.Minute,
		})
		token, _, err := expiredSvc.GenerateToken(uuid.New())
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given-id")
	router.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Header().Get("X-Request-ID"))
}

func TestCORSWithOrigins(t *testing.T) {
	router := gin.New()
	router.Use(CORSWithOrigins([]string{"https://shop.example.com"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
