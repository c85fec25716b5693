package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"qawafel-crm/pkg/jwtutil"
)

// Cookie names
const (
	SessionCookie   = "session"
	AuthTokenCookie = "auth-token"
)

// Sessions issues and clears the session and auth-token cookies
type Sessions struct {
	JWT    *jwtutil.JWTUtil
	Secure bool
}

// NewSessions creates a cookie manager. secure marks cookies HTTPS-only.
func NewSessions(jwt *jwtutil.JWTUtil, secure bool) *Sessions {
	return &Sessions{JWT: jwt, Secure: secure}
}

// StartSession signs a session token for the user and sets it as a cookie
func (s *Sessions) StartSession(c echo.Context, userID uint, email, name, role string) (string, error) {
	token, err := s.JWT.GenerateSessionToken(userID, email, name, role)
	if err != nil {
		return "", err
	}
	c.SetCookie(s.cookie(SessionCookie, token, s.JWT.SessionTTL()))
	return token, nil
}

// StartPhoneSession sets the auth-token cookie for a verified phone
func (s *Sessions) StartPhoneSession(c echo.Context, phone string, user *jwtutil.UserClaims) (string, error) {
	token, err := s.JWT.GeneratePhoneToken(phone, user)
	if err != nil {
		return "", err
	}
	c.SetCookie(s.cookie(AuthTokenCookie, token, s.JWT.PhoneTokenTTL()))
	return token, nil
}

// Clear expires both cookies
func (s *Sessions) Clear(c echo.Context) {
	for _, name := range []string{SessionCookie, AuthTokenCookie} {
		cookie := s.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		c.SetCookie(cookie)
	}
}

// SetTemporary sets a short-lived HttpOnly cookie such as the OAuth state
func (s *Sessions) SetTemporary(c echo.Context, name, value string, ttl time.Duration) {
	c.SetCookie(s.cookie(name, value, ttl))
}

func (s *Sessions) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
