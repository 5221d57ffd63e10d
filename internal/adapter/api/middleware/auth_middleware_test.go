package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complainthub/internal/domain/entity"
)

const testSecret = "test-secret"

func signToken(t *testing.T, uid, role, name string, expiry time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  uid,
		"role": role,
		"name": name,
		"exp":  time.Now().Add(expiry).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func invoke(m *AuthMiddleware, req *http.Request) (echo.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := m.Authenticate(func(c echo.Context) error { return nil })
	return c, handler(c)
}

func TestAuthenticateSetsIdentity(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s1", "student", "Asha", time.Hour))

	c, err := invoke(m, req)
	require.NoError(t, err)
	assert.Equal(t, "s1", c.Get("uid"))
	assert.Equal(t, "student", c.Get("role"))
	assert.Equal(t, "Asha", c.Get("name"))
}

func TestAuthenticateAcceptsCookie(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: signToken(t, "a1", "admin", "Dr. Rao", time.Hour)})

	c, err := invoke(m, req)
	require.NoError(t, err)
	assert.Equal(t, "a1", c.Get("uid"))
	assert.Equal(t, "admin", c.Get("role"))
}

func TestAuthenticateRejections(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	cases := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{"missing token", func(*http.Request) {}},
		{"malformed header", func(req *http.Request) {
			req.Header.Set("Authorization", "Token abc")
		}},
		{"expired token", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signToken(t, "s1", "student", "", -time.Hour))
		}},
		{"unknown role", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signToken(t, "s1", "superadmin", "", time.Hour))
		}},
		{"wrong signature", func(req *http.Request) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "s1", "role": "student", "exp": time.Now().Add(time.Hour).Unix(),
			}).SignedString([]byte("other-secret"))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)

			_, err := invoke(m, req)
			require.Error(t, err)

			httpErr, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestParseToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	uid, role, name, err := m.ParseToken(signToken(t, "s1", "student", "Asha", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "s1", uid)
	assert.Equal(t, entity.RoleStudent, role)
	assert.Equal(t, "Asha", name)

	_, _, _, err = m.ParseToken("not-a-token")
	assert.Error(t, err)
}
