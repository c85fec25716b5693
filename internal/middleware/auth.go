package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/jwtutil"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// UserKey is the echo context key holding *jwtutil.UserClaims
const UserKey = "user"

// tokensFromRequest lists the session cookie, the auth-token cookie and the
// bearer header, in that order, skipping empty ones
func tokensFromRequest(c echo.Context) []string {
	var tokens []string
	for _, name := range []string{SessionCookie, AuthTokenCookie} {
		if cookie, err := c.Cookie(name); err == nil && cookie.Value != "" {
			tokens = append(tokens, cookie.Value)
		}
	}

	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if token := strings.TrimSpace(parts[1]); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// RequireAuth validates the session token and stores its claims in the context.
// A stale cookie does not shadow a valid token from a later source.
func RequireAuth(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokens := tokensFromRequest(c)
			if len(tokens) == 0 {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}

			var lastErr error
			phoneOnly := false
			for _, token := range tokens {
				claims, err := jwtUtil.ValidateToken(token)
				if err != nil {
					lastErr = err
					continue
				}
				// a verified phone alone does not grant access to CRM data
				if !claims.HasUser() {
					phoneOnly = true
					continue
				}

				c.Set(UserKey, claims)
				logger.With(c, zap.Uint("user_id", claims.UserID), zap.String("role", claims.Role))
				return next(c)
			}

			if phoneOnly {
				prometheus.RecordAuthError("phone_only_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}
			log.Warn("Invalid or expired token", zap.Error(lastErr))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
		}
	}
}

// RequireAdmin rejects sessions whose role is not admin. It must run after RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := CurrentUser(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}
		if claims.Role != model.RoleAdmin {
			logger.FromEcho(c).Warn("Admin access denied", zap.String("role", claims.Role))
			prometheus.RecordAuthError("forbidden")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Unauthorized: Admin access required"})
		}
		return next(c)
	}
}

// CurrentUser returns the claims stored by RequireAuth
func CurrentUser(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(UserKey).(*jwtutil.UserClaims)
	return claims, ok && claims != nil
}
