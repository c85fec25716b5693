package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"qawafel-crm/internal/ai"
	"qawafel-crm/internal/events"
	"qawafel-crm/internal/model"
	"qawafel-crm/internal/testutil"
	"qawafel-crm/pkg/config"
)

type testApp struct {
	e      *echo.Echo
	db     *gorm.DB
	cfg    *config.Config
	events *events.Recorder
}

func testConfig(otpURL string) *config.Config {
	return &config.Config{
		ServiceName: "qawafel-crm-test",
		Server: config.ServerConfig{
			Env:            "test",
			AppURL:         "http://crm.test",
			AllowedOrigins: []string{"*"},
		},
		JWT: config.JWTConfig{
			SigningKey:    "test-signing-key",
			SessionTTL:    time.Hour,
			PhoneTokenTTL: time.Hour,
		},
		Metrics: config.MetricsConfig{Prefix: "qawafel-crm-test"},
		OTP: config.OTPConfig{
			SendURL:          otpURL,
			VerifyURL:        otpURL,
			APIKey:           "otp-key",
			AuthHeader:       "Authorization",
			AuthPrefix:       "Bearer",
			PhoneField:       "phone",
			CountryCodeField: "country_code",
			ChannelField:     "channel",
			OTPField:         "otp",
			SessionIDField:   "session_id",
			SessionIDFields:  []string{"session_id", "request_id", "id"},
			SuccessFields:    []string{"verified", "success", "valid"},
			Channel:          "sms",
			SenderID:         "Qawafel CRM",
			Timeout:          time.Second,
		},
		AMQP: config.AMQPConfig{Exchange: "crm.events"},
	}
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWithOTP(t, "")
}

func newTestAppWithOTP(t *testing.T, otpURL string) *testApp {
	t.Helper()
	return newTestAppWithConfig(t, testConfig(otpURL))
}

func newTestAppWithConfig(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &events.Recorder{}
	e := New(Options{
		Config:    cfg,
		Publisher: rec,
		Messages:  ai.NewMessageService(nil),
	})
	return &testApp{e: e, db: db, cfg: cfg, events: rec}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doRaw(t *testing.T, method, path, contentType, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, contentType)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) createUser(t *testing.T, email, password, role string, approved bool) model.User {
	t.Helper()
	user := model.User{
		Email:    email,
		Name:     strings.Split(email, "@")[0],
		Role:     role,
		Approved: approved,
		Provider: model.ProviderCredentials,
	}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		user.Password = string(hashed)
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

// signIn creates an approved user with role and returns its session cookie
func (a *testApp) signIn(t *testing.T, email, role string) *http.Cookie {
	t.Helper()
	a.createUser(t, email, "password", role, true)
	return a.login(t, email, "password")
}

func (a *testApp) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := findCookie(rec, "session")
	require.NotNil(t, c)
	return c
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, rec, &body)
	msg, _ := body["error"].(string)
	return msg
}
