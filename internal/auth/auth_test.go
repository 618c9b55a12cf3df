package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
)

type fakeUsers map[uint]*model.User

func (f fakeUsers) GetUser(_ context.Context, id uint) (*model.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(&model.User{ID: 42, Role: model.RoleTechnician})
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.RoleTechnician, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	issuer, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)
	token, err := issuer.Issue(&model.User{ID: 1, Role: model.RoleAdmin})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *issuer
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewIssuer("other", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: model.RoleAdmin}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(unsigned)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
}

func newRouter(t *testing.T, users fakeUsers) (*gin.Engine, *Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Middleware(issuer, users))
	r.GET("/whoami", func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	r.DELETE("/alerts/1", Require(policy.AlertDelete), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, issuer
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Role: model.RoleAdmin, IsActive: true},
		2: {ID: 2, Role: model.RoleUser, IsActive: true},
		3: {ID: 3, Role: model.RoleTechnician, IsActive: false},
	}
	r, issuer := newRouter(t, users)
	tokenFor := func(u *model.User) string {
		tok, err := issuer.Issue(u)
		require.NoError(t, err)
		return tok
	}

	w := do(r, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authorization header required","code":"unauthorized"}`, w.Body.String())

	w = do(r, http.MethodGet, "/whoami", "bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/whoami", tokenFor(users[1]))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"role":"admin"}`, w.Body.String())

	w = do(r, http.MethodGet, "/whoami", tokenFor(users[3]))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/whoami", tokenFor(&model.User{ID: 99, Role: model.RoleAdmin}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the stored role wins over the one baked into the token
	w = do(r, http.MethodDelete, "/alerts/1", tokenFor(&model.User{ID: 2, Role: model.RoleAdmin}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodDelete, "/alerts/1", tokenFor(users[1]))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
