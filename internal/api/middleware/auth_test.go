package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/pkg/jwthelper"
)

const signingKey = "test-signing-key"

func newProtectedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", middleware.NewAuthenticator(signingKey).VerifyJWT(), func(ctx *gin.Context) {
		userID := ctx.GetUint(middleware.ContextKeyUserID)
		ctx.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	return router
}

func TestVerifyJWT(t *testing.T) {
	t.Run("valid token passes and exposes the user ID", func(t *testing.T) {
		router := newProtectedRouter(t)

		token, err := jwthelper.GenerateToken([]byte(signingKey), 42, "test-agent/1.0")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "test-agent/1.0")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"user_id":42}`, resp.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		router := newProtectedRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		router := newProtectedRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		router := newProtectedRouter(t)

		token, err := jwthelper.GenerateToken([]byte("other-key"), 42, "test-agent/1.0")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "test-agent/1.0")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("token issued to a different client", func(t *testing.T) {
		router := newProtectedRouter(t)

		token, err := jwthelper.GenerateToken([]byte(signingKey), 42, "test-agent/1.0")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "another-agent/2.0")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
