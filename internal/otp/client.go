package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/logger"
)

// ErrNotConfigured is returned when the provider URL or API key is missing
var ErrNotConfigured = errors.New("OTP service not configured")

// ProviderError is an error answer from the OTP provider. Status is the
// HTTP status the caller should respond with.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// SendResult is the outcome of a successful send
type SendResult struct {
	Phone     string
	SessionID string
}

// Client talks to the third-party OTP provider
type Client struct {
	cfg        *config.OTPConfig
	appURL     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates an OTP client. appURL is used to build the delivery callback URL.
func NewClient(cfg *config.OTPConfig, appURL string) *Client {
	return &Client{
		cfg:        cfg,
		appURL:     strings.TrimRight(appURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Send validates the phone and asks the provider to deliver a code
func (c *Client) Send(ctx context.Context, rawPhone string) (*SendResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	if c.cfg.SendURL == "" || c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	international := "+" + phone
	body := map[string]any{
		c.cfg.PhoneField: international,
	}
	if c.cfg.PhoneField != "phoneNumber" {
		body["phoneNumber"] = international
	}
	if c.cfg.PhoneField != "to" {
		body["to"] = international
	}
	if c.cfg.PhoneField != "mobile" {
		body["mobile"] = phone[len(phone)-9:]
	}
	if c.cfg.CountryCodeField != "" {
		body[c.cfg.CountryCodeField] = SaudiCountryCode
	}
	if c.cfg.ChannelField != "" {
		body[c.cfg.ChannelField] = c.cfg.Channel
	}
	body["app_name"] = c.cfg.SenderID
	body["sender_id"] = c.cfg.SenderID
	body["callback_url"] = c.appURL + "/api/auth/callback"

	status, raw, data, err := c.post(ctx, c.cfg.SendURL, body)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		if data == nil {
			return nil, &ProviderError{
				Status:  status,
				Message: fmt.Sprintf("OTP service error (%d): %s", status, raw),
			}
		}
		msg := firstString(data, "message", "error", "msg")
		if msg == "" {
			msg = "Failed to send OTP"
		}
		return nil, &ProviderError{Status: status, Message: "Failed to send OTP: " + msg}
	}

	sessionID := fmt.Sprintf("session-%d", c.now().UnixMilli())
	if s := firstString(data, c.cfg.SessionIDFields...); s != "" {
		sessionID = s
	}

	return &SendResult{Phone: phone, SessionID: sessionID}, nil
}

// Verify checks a code with the provider and returns the phone with country code
func (c *Client) Verify(ctx context.Context, rawPhone, code, sessionID string) (string, error) {
	phone := WithCountryCode(rawPhone)
	if c.cfg.VerifyURL == "" || c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	international := "+" + phone
	body := map[string]any{
		c.cfg.PhoneField: international,
	}
	if c.cfg.PhoneField != "phoneNumber" {
		body["phoneNumber"] = international
	}
	if c.cfg.PhoneField != "to" {
		body["to"] = international
	}
	body[c.cfg.OTPField] = code
	if c.cfg.OTPField != "code" {
		body["code"] = code
	}
	if c.cfg.OTPField != "verification_code" {
		body["verification_code"] = code
	}
	if sessionID != "" && c.cfg.SessionIDField != "" {
		body[c.cfg.SessionIDField] = sessionID
		if c.cfg.SessionIDField != "request_id" {
			body["request_id"] = sessionID
		}
	}

	status, _, data, err := c.post(ctx, c.cfg.VerifyURL, body)
	if err != nil {
		return "", err
	}

	if status < 200 || status > 299 {
		msg := firstString(data, "message", "error")
		if msg == "" {
			msg = "Invalid OTP"
		}
		return "", &ProviderError{Status: http.StatusUnauthorized, Message: msg}
	}

	if !isVerified(data, c.cfg.SuccessFields) && status != http.StatusOK {
		return "", &ProviderError{Status: http.StatusUnauthorized, Message: "Invalid OTP"}
	}

	return phone, nil
}

// post sends a JSON body and returns the status, raw body and the decoded
// JSON object (nil when the body is not a JSON object)
func (c *Client) post(ctx context.Context, url string, body map[string]any) (int, string, map[string]any, error) {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to encode OTP request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to build OTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	authValue := c.cfg.APIKey
	if c.cfg.AuthPrefix != "" {
		authValue = c.cfg.AuthPrefix + " " + c.cfg.APIKey
	}
	req.Header.Set(c.cfg.AuthHeader, authValue)
	if !strings.EqualFold(c.cfg.AuthHeader, "x-api-key") {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("OTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to read OTP response: %w", err)
	}

	log.Debug("OTP provider response",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", raw),
	)

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		data = nil
	}
	return resp.StatusCode, string(raw), data, nil
}

func isVerified(data map[string]any, fields []string) bool {
	for _, field := range fields {
		switch v := data[strings.TrimSpace(field)].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if v == "true" {
				return true
			}
		case float64:
			if v == 1 {
				return true
			}
		}
	}
	return false
}

// firstString returns the first truthy value among keys, formatted as a string
func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := data[strings.TrimSpace(key)].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			if v {
				return "true"
			}
		}
	}
	return ""
}
