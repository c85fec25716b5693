package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qawafel-crm/internal/model"
)

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/health?check=db", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db_status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "staff@qawafel.sa", "correct", model.RoleEditor, true)
	app.createUser(t, "pending@qawafel.sa", "correct", model.RoleUser, false)
	app.createUser(t, "google@qawafel.sa", "", model.RoleUser, true)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"missing password", "staff@qawafel.sa", "", http.StatusBadRequest, "Email and password are required"},
		{"unknown user", "nobody@qawafel.sa", "correct", http.StatusUnauthorized, "Invalid email or password"},
		{"wrong password", "staff@qawafel.sa", "wrong", http.StatusUnauthorized, "Invalid email or password"},
		{"no password set", "google@qawafel.sa", "anything", http.StatusUnauthorized, "Invalid email or password"},
		{"not approved", "pending@qawafel.sa", "correct", http.StatusForbidden, "Your account is pending approval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/auth/login", map[string]string{"email": tt.email, "password": tt.password})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
			assert.Nil(t, findCookie(rec, "session"))
		})
	}
}

func TestLoginSessionRoundTrip(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "staff@qawafel.sa", "correct", model.RoleEditor, true)

	rec := app.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "Staff@Qawafel.sa ", "password": "correct"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := findCookie(rec, "session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)

	var body struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(t, rec, &body)
	assert.Equal(t, cookie.Value, body.Token)
	assert.Empty(t, body.User.Password)

	rec = app.do(t, http.MethodGet, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var session struct {
		User map[string]interface{} `json:"user"`
	}
	decode(t, rec, &session)
	assert.Equal(t, "staff@qawafel.sa", session.User["email"])
	assert.Equal(t, model.RoleEditor, session.User["role"])
	assert.Equal(t, model.ProviderCredentials, session.User["provider"])

	// bearer tokens are accepted too
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	bearer := httptest.NewRecorder()
	app.e.ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/customers", nil, &http.Cookie{Name: "session", Value: "not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookies(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, name := range []string{"session", "auth-token"} {
		c := findCookie(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestSignupRequestRules(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "existing@qawafel.sa", "pw", model.RoleUser, true)

	rec := app.do(t, http.MethodPost, "/auth/signup-requests", map[string]string{"email": "existing@qawafel.sa"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/auth/signup-requests", map[string]string{"email": "new@qawafel.sa", "name": "New Person"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var request model.SignupRequest
	decode(t, rec, &request)
	assert.Equal(t, model.SignupPending, request.Status)
	assert.Equal(t, model.ProviderGoogle, request.Provider)

	rec = app.do(t, http.MethodPost, "/auth/signup-requests", map[string]string{"email": "new@qawafel.sa"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Signup request is pending approval", errorMessage(t, rec))

	require.NoError(t, app.db.Model(&request).Update("status", model.SignupRejected).Error)
	rec = app.do(t, http.MethodPost, "/auth/signup-requests", map[string]string{"email": "new@qawafel.sa"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/auth/google/login", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newOTPProvider(t *testing.T, verified *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if verified.Load() {
			_, _ = w.Write([]byte(`{"verified":true,"request_id":"req-1"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Wrong code"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendOTP(t *testing.T) {
	var verified atomic.Bool
	verified.Store(true)
	app := newTestAppWithOTP(t, newOTPProvider(t, &verified).URL)

	rec := app.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"phone": "501234567"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "req-1", body["sessionId"])
	assert.NotContains(t, body, "session_id")

	rec = app.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"phone": "+966501234567"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"phone": "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid phone number format", errorMessage(t, rec))

	rec = app.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"phone": "966412345678"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errorMessage(t, rec), "Please enter a valid Saudi phone number"))
}

func TestVerifyOTPForwardsSessionID(t *testing.T) {
	var mu sync.Mutex
	var sessions []interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		sessions = append(sessions, body["session_id"])
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"verified":true}`))
	}))
	t.Cleanup(srv.Close)
	app := newTestAppWithOTP(t, srv.URL)

	rec := app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567", "otp": "1234", "sessionId": "req-new"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567", "otp": "1234", "session_id": "req-old"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567", "otp": "1234", "sessionId": "req-new", "session_id": "req-old"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []interface{}{"req-new", "req-old", "req-new"}, sessions)
}

func TestSendOTPNotConfigured(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/send-otp", map[string]string{"phone": "501234567"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVerifyOTPSetsCookieOnlyOnSuccess(t *testing.T) {
	var verified atomic.Bool
	app := newTestAppWithOTP(t, newOTPProvider(t, &verified).URL)

	rec := app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567", "otp": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Wrong code", errorMessage(t, rec))
	assert.Nil(t, findCookie(rec, "auth-token"))

	verified.Store(true)
	rec = app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "501234567", "otp": "1234", "session_id": "req-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "966501234567", body["phone"])

	cookie := findCookie(rec, "auth-token")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// a verified phone without a matching user does not open the CRM
	rec = app.do(t, http.MethodGet, "/api/session", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyOTPSignsInUserWithPhone(t *testing.T) {
	var verified atomic.Bool
	verified.Store(true)
	app := newTestAppWithOTP(t, newOTPProvider(t, &verified).URL)

	user := app.createUser(t, "field@qawafel.sa", "", model.RoleUser, true)
	require.NoError(t, app.db.Model(&user).Update("phone", "0501234567").Error)

	rec := app.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"phone": "+966 50 123 4567", "otp": "1234"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := findCookie(rec, "auth-token")
	require.NotNil(t, cookie)

	rec = app.do(t, http.MethodGet, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "field@qawafel.sa")
}

func TestOTPCallback(t *testing.T) {
	app := newTestApp(t)

	rec := app.doRaw(t, http.MethodPost, "/api/auth/callback", "application/json", `{"status":"delivered","phone":"966501234567"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Callback received")

	rec = app.do(t, http.MethodGet, "/api/auth/callback?status=delivered", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.doRaw(t, http.MethodPost, "/api/auth/callback", "application/json", `{not json`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
