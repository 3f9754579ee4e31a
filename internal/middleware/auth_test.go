package middleware

import (
	"net/http"
	"testing"
	"time"

	"orderflow/internal/model"
	"orderflow/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseActor(t *testing.T) {
	secret := []byte(testutil.JWTSecret)

	actor, err := ParseActor(testutil.GenerateTestToken(testutil.Actor("s1")), secret)
	require.NoError(t, err)
	assert.Equal(t, "s1", actor.UID)
	assert.Equal(t, model.RoleSales, actor.Role)
	assert.Equal(t, "m1", actor.ManagerIDValue())

	actor, err = ParseActor(testutil.GenerateTestToken(testutil.Actor("director")), secret)
	require.NoError(t, err)
	assert.True(t, actor.IsTopLevel())

	_, err = ParseActor("", secret)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = ParseActor(testutil.GenerateTestToken(testutil.Actor("s1")), []byte("other"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	unknownRole := sign(t, jwt.MapClaims{"sub": "x", "role": "janitor", "exp": time.Now().Add(time.Hour).Unix()}, testutil.JWTSecret)
	_, err = ParseActor(unknownRole, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := sign(t, jwt.MapClaims{"sub": "x", "role": "sales", "exp": time.Now().Add(-time.Hour).Unix()}, testutil.JWTSecret)
	_, err = ParseActor(expired, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(Authenticate([]byte(testutil.JWTSecret)))
	r.GET("/me", func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"uid": actor.UID})
	})
	r.GET("/warehouse", RequireRole(model.RoleWarehouseManager), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := testutil.DoRequest(r, http.MethodGet, "/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/me", nil, testutil.GenerateTestToken(testutil.Actor("p1")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", testutil.ParseResponse(w)["uid"])

	w = testutil.DoRequest(r, http.MethodGet, "/warehouse", nil, testutil.GenerateTestToken(testutil.Actor("p1")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = testutil.DoRequest(r, http.MethodGet, "/warehouse", nil, testutil.GenerateTestToken(testutil.Actor("w1")))
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = testutil.DoRequest(r, http.MethodGet, "/warehouse", nil, testutil.GenerateTestToken(testutil.Actor("admin")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := testutil.DoRequest(r, http.MethodGet, "/", nil, "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
}
