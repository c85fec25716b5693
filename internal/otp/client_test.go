package otp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qawafel-crm/pkg/config"
)

type capturedRequest struct {
	header http.Header
	body   map[string]any
}

func newProvider(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.header = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testConfig(url string) *config.OTPConfig {
	return &config.OTPConfig{
		SendURL:          url,
		VerifyURL:        url,
		APIKey:           "secret",
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
	}
}

func TestSendBuildsPayloadWithFallbacks(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK, `{"request_id":"abc-1"}`)
	client := NewClient(testConfig(srv.URL), "https://crm.example.com/")

	res, err := client.Send(context.Background(), "501234567")
	require.NoError(t, err)
	assert.Equal(t, "abc-1", res.SessionID)
	assert.Equal(t, "966501234567", res.Phone)

	assert.Equal(t, "+966501234567", captured.body["phone"])
	assert.Equal(t, "+966501234567", captured.body["phoneNumber"])
	assert.Equal(t, "+966501234567", captured.body["to"])
	assert.Equal(t, "501234567", captured.body["mobile"])
	assert.Equal(t, "966", captured.body["country_code"])
	assert.Equal(t, "sms", captured.body["channel"])
	assert.Equal(t, "Qawafel CRM", captured.body["sender_id"])
	assert.Equal(t, "https://crm.example.com/api/auth/callback", captured.body["callback_url"])

	assert.Equal(t, "Bearer secret", captured.header.Get("Authorization"))
	assert.Equal(t, "secret", captured.header.Get("x-api-key"))
}

func TestSendSkipsFallbackMatchingConfiguredField(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK, `{}`)
	cfg := testConfig(srv.URL)
	cfg.PhoneField = "mobile"
	cfg.AuthHeader = "x-api-key"
	cfg.AuthPrefix = ""

	_, err := NewClient(cfg, "").Send(context.Background(), "501234567")
	require.NoError(t, err)

	assert.Equal(t, "+966501234567", captured.body["mobile"])
	assert.Equal(t, "secret", captured.header.Get("x-api-key"))
	assert.Empty(t, captured.header.Get("Authorization"))
}

func TestSendFallsBackToGeneratedSessionID(t *testing.T) {
	srv, _ := newProvider(t, http.StatusOK, `not json`)
	client := NewClient(testConfig(srv.URL), "")
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	res, err := client.Send(context.Background(), "501234567")
	require.NoError(t, err)
	assert.Equal(t, "session-1700000000000", res.SessionID)
}

func TestSendProviderErrors(t *testing.T) {
	t.Run("json error", func(t *testing.T) {
		srv, _ := newProvider(t, http.StatusTooManyRequests, `{"msg":"slow down"}`)
		_, err := NewClient(testConfig(srv.URL), "").Send(context.Background(), "501234567")

		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusTooManyRequests, pe.Status)
		assert.Equal(t, "Failed to send OTP: slow down", pe.Message)
	})

	t.Run("plain text error", func(t *testing.T) {
		srv, _ := newProvider(t, http.StatusBadGateway, `upstream down`)
		_, err := NewClient(testConfig(srv.URL), "").Send(context.Background(), "501234567")

		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusBadGateway, pe.Status)
		assert.Equal(t, "OTP service error (502): upstream down", pe.Message)
	})
}

func TestSendValidatesBeforeCallingProvider(t *testing.T) {
	_, err := NewClient(testConfig("http://127.0.0.1:0"), "").Send(context.Background(), "123")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestSendNotConfigured(t *testing.T) {
	cfg := testConfig("")
	_, err := NewClient(cfg, "").Send(context.Background(), "501234567")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerifyPayload(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK, `{"verified":true}`)

	phone, err := NewClient(testConfig(srv.URL), "").Verify(context.Background(), "501234567", "1234", "sess-9")
	require.NoError(t, err)
	assert.Equal(t, "966501234567", phone)

	assert.Equal(t, "1234", captured.body["otp"])
	assert.Equal(t, "1234", captured.body["code"])
	assert.Equal(t, "1234", captured.body["verification_code"])
	assert.Equal(t, "sess-9", captured.body["session_id"])
	assert.Equal(t, "sess-9", captured.body["request_id"])
}

func TestVerifyWithoutSessionOmitsSessionFields(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK, `{}`)

	_, err := NewClient(testConfig(srv.URL), "").Verify(context.Background(), "501234567", "1234", "")
	require.NoError(t, err)
	assert.NotContains(t, captured.body, "session_id")
	assert.NotContains(t, captured.body, "request_id")
}

func TestVerifyOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		wantMsg  string
	}{
		{name: "success flag as number", status: http.StatusOK, response: `{"valid":1}`},
		{name: "http 200 without flag", status: http.StatusOK, response: `{"verified":false}`},
		{name: "accepted with string flag", status: http.StatusAccepted, response: `{"success":"true"}`},
		{name: "accepted without flag", status: http.StatusAccepted, response: `{}`, wantMsg: "Invalid OTP"},
		{name: "provider rejection message", status: http.StatusBadRequest, response: `{"message":"Code expired"}`, wantMsg: "Code expired"},
		{name: "provider rejection plain text", status: http.StatusBadRequest, response: `nope`, wantMsg: "Invalid OTP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newProvider(t, tt.status, tt.response)
			_, err := NewClient(testConfig(srv.URL), "").Verify(context.Background(), "501234567", "0000", "")
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, http.StatusUnauthorized, pe.Status)
			assert.Equal(t, tt.wantMsg, pe.Message)
		})
	}
}

func TestVerifyConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(testConfig(url), "").Verify(context.Background(), "501234567", "0000", "")
	require.Error(t, err)
	var pe *ProviderError
	assert.False(t, errors.As(err, &pe))
}
