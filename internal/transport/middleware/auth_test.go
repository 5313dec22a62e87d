package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	key := []byte("secret")

	valid, err := IssueToken("secret", "roombooker", "alice", "", time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(key, "roombooker", valid)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, RoleUser, claims.Role, "role defaults to user")

	wrongKey, err := IssueToken("other", "roombooker", "alice", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(key, "roombooker", wrongKey)
	assert.Error(t, err)

	expired, err := IssueToken("secret", "roombooker", "alice", RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(key, "roombooker", expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(key, "roombooker", unsigned)
	assert.Error(t, err)

	foreign, err := IssueToken("secret", "billing", "alice", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(key, "roombooker", foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	// without a configured issuer any iss is accepted
	_, err = ParseToken(key, "", foreign)
	assert.NoError(t, err)

	anonymous, err := IssueToken("secret", "roombooker", "", RoleUser, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(key, "roombooker", anonymous)
	assert.Error(t, err)
}

func TestAuthAndRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/me", Auth("secret", "test"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "admin": IsAdmin(c)})
	})
	router.GET("/admin", Auth("secret", "test"), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	userToken, err := IssueToken("secret", "test", "alice", RoleUser, time.Hour)
	require.NoError(t, err)
	adminToken, err := IssueToken("secret", "test", "root", RoleAdmin, time.Hour)
	require.NoError(t, err)
	foreignToken, err := IssueToken("secret", "other-service", "root", RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"bearer header", "/me", "Bearer " + userToken, http.StatusOK},
		{"query token", "/me?token=" + userToken, "", http.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminToken, http.StatusNoContent},
		{"foreign issuer", "/admin", "Bearer " + foreignToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
