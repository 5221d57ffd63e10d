package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"complainthub/internal/domain/entity"
)

// AuthMiddleware consumes the identity issued by the authentication
// collaborator: a JWT carrying an already-validated {userId, role} pair. This
// package verifies the token; it does not implement authentication itself.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
	}
}

type identityClaims struct {
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie("token"); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization is required")
		}

		uid, role, name, err := m.ParseToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", uid)
		c.Set("role", string(role))
		c.Set("name", name)

		return next(c)
	}
}

// ParseToken verifies a token and returns the identity it carries. Used by
// both the HTTP middleware and the WebSocket upgrade path.
func (m *AuthMiddleware) ParseToken(tokenString string) (uid string, role entity.Role, name string, err error) {
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return "", "", "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", "", "", jwt.ErrTokenInvalidClaims
	}

	parsedRole, err := entity.ParseRole(claims.Role)
	if err != nil {
		return "", "", "", err
	}

	return claims.Subject, parsedRole, claims.DisplayName, nil
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
