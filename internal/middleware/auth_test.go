package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/jwtutil"
)

func newJWT() *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&config.JWTConfig{
		SigningKey:    "test-secret",
		SessionTTL:    time.Hour,
		PhoneTokenTTL: time.Hour,
	})
}

func newProtectedServer(jwt *jwtutil.JWTUtil) *echo.Echo {
	e := echo.New()
	api := e.Group("/api", RequireAuth(jwt))
	api.GET("/me", func(c echo.Context) error {
		claims, _ := CurrentUser(c)
		return c.JSON(http.StatusOK, echo.Map{"email": claims.Email})
	})
	api.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, RequireAdmin)
	return e
}

func TestRequireAuthSources(t *testing.T) {
	jwt := newJWT()
	token, err := jwt.GenerateSessionToken(1, "a@b.sa", "A", "user")
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{name: "no credentials", prepare: func(r *http.Request) {}, want: http.StatusUnauthorized},
		{name: "session cookie", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		}, want: http.StatusOK},
		{name: "auth-token cookie", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthTokenCookie, Value: token})
		}, want: http.StatusOK},
		{name: "bearer header", prepare: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, want: http.StatusOK},
		{name: "garbage token", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-jwt"})
		}, want: http.StatusUnauthorized},
	}

	e := newProtectedServer(jwt)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAuthFallsThroughStaleCookies(t *testing.T) {
	jwt := newJWT()
	token, err := jwt.GenerateSessionToken(1, "a@b.sa", "A", "user")
	require.NoError(t, err)

	expired, err := jwtutil.NewJWTUtil(&config.JWTConfig{
		SigningKey:    "test-secret",
		SessionTTL:    -time.Hour,
		PhoneTokenTTL: time.Hour,
	}).GenerateSessionToken(2, "old@b.sa", "Old", "user")
	require.NoError(t, err)
	phoneToken, err := jwt.GeneratePhoneToken("966501234567", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{name: "expired session cookie with bearer header", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: expired})
			r.Header.Set("Authorization", "Bearer "+token)
		}, want: http.StatusOK},
		{name: "garbage session cookie with auth-token cookie", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-jwt"})
			r.AddCookie(&http.Cookie{Name: AuthTokenCookie, Value: token})
		}, want: http.StatusOK},
		{name: "phone token cookie with bearer header", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthTokenCookie, Value: phoneToken})
			r.Header.Set("Authorization", "Bearer "+token)
		}, want: http.StatusOK},
		{name: "only stale tokens", prepare: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: expired})
			r.Header.Set("Authorization", "Bearer not-a-jwt")
		}, want: http.StatusUnauthorized},
	}

	e := newProtectedServer(jwt)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "a@b.sa")
			}
		})
	}
}

func TestRequireAuthRejectsPhoneOnlyToken(t *testing.T) {
	jwt := newJWT()
	token, err := jwt.GeneratePhoneToken("966501234567", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: AuthTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	newProtectedServer(jwt).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	jwt := newJWT()
	e := newProtectedServer(jwt)

	for role, want := range map[string]int{
		"admin":  http.StatusNoContent,
		"editor": http.StatusForbidden,
		"user":   http.StatusForbidden,
	} {
		token, err := jwt.GenerateSessionToken(1, "a@b.sa", "", role)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestSessionsSetAndClearCookies(t *testing.T) {
	sessions := NewSessions(newJWT(), true)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	_, err := sessions.StartSession(c, 9, "a@b.sa", "A", "admin")
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	sessions.Clear(c)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, ck := range cleared {
		assert.Equal(t, "", ck.Value)
		assert.True(t, ck.MaxAge < 0)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware)
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestIDMiddlewareReplacesInvalidIDs(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware)
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, id := range []string{"has space", "line\nbreak", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, id)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		got := rec.Header().Get(echo.HeaderXRequestID)
		assert.NotEqual(t, id, got)
		assert.Len(t, got, 36)
	}
}
