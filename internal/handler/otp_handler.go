package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/internal/otp"
	"qawafel-crm/pkg/jwtutil"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// OTPHandler proxies phone verification to the OTP provider
type OTPHandler struct {
	Client   *otp.Client
	Sessions *middleware.Sessions
}

// NewOTPHandler creates an OTP handler
func NewOTPHandler(client *otp.Client, sessions *middleware.Sessions) *OTPHandler {
	return &OTPHandler{Client: client, Sessions: sessions}
}

// SendOTPRequest asks for a code to be sent to a phone
type SendOTPRequest struct {
	Phone string `json:"phone"`
}

// VerifyOTPRequest checks a code received on a phone. Older clients send the
// session id as session_id.
type VerifyOTPRequest struct {
	Phone           string `json:"phone"`
	OTP             string `json:"otp"`
	SessionID       string `json:"sessionId"`
	LegacySessionID string `json:"session_id"`
}

func (r VerifyOTPRequest) session() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.LegacySessionID
}

// otpError maps client errors to responses
func otpError(c echo.Context, op string, err error) error {
	var providerErr *otp.ProviderError
	switch {
	case errors.Is(err, otp.ErrInvalidPhone), errors.Is(err, otp.ErrNotSaudiMobile):
		prometheus.RecordOTPRequest(op, "invalid_phone")
		return badRequest(c, err.Error())
	case errors.Is(err, otp.ErrNotConfigured):
		logger.FromEcho(c).Error("OTP service is not configured")
		prometheus.RecordOTPRequest(op, "not_configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "OTP service is not configured"})
	case errors.As(err, &providerErr):
		prometheus.RecordOTPRequest(op, "rejected")
		return c.JSON(providerErr.Status, echo.Map{"error": providerErr.Message})
	}
	logger.FromEcho(c).Error("OTP provider request failed", zap.String("op", op), zap.Error(err))
	prometheus.RecordOTPRequest(op, "error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to connect to OTP service"})
}

// SendOTP sends a verification code to a Saudi mobile number
func (h *OTPHandler) SendOTP(c echo.Context) error {
	var req SendOTPRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return badRequest(c, "Phone number is required")
	}

	result, err := h.Client.Send(logger.RequestContext(c), req.Phone)
	if err != nil {
		return otpError(c, "send", err)
	}

	prometheus.RecordOTPRequest("send", "success")
	logger.FromEcho(c).Info("OTP sent", zap.String("phone", result.Phone), zap.String("session_id", result.SessionID))
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "OTP sent successfully",
		"sessionId": result.SessionID,
	})
}

// VerifyOTP checks the code and, on success, sets the auth-token cookie. When
// an approved user owns the phone the token also signs that user in.
func (h *OTPHandler) VerifyOTP(c echo.Context) error {
	log := logger.FromEcho(c)

	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.OTP) == "" {
		return badRequest(c, "Phone number and OTP are required")
	}

	phone, err := h.Client.Verify(logger.RequestContext(c), req.Phone, strings.TrimSpace(req.OTP), req.session())
	if err != nil {
		return otpError(c, "verify", err)
	}

	var claims *jwtutil.UserClaims
	if user, ok := h.userByPhone(c, phone); ok {
		claims = &jwtutil.UserClaims{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
		}
	}

	if _, err := h.Sessions.StartPhoneSession(c, phone, claims); err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to verify OTP"})
	}

	prometheus.RecordOTPRequest("verify", "success")
	if claims != nil {
		prometheus.RecordLogin("phone", "success")
	}
	log.Info("OTP verified", zap.String("phone", phone), zap.Bool("user", claims != nil))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "OTP verified successfully",
		"phone":   phone,
	})
}

// userByPhone finds an approved user whose phone matches in any common notation
func (h *OTPHandler) userByPhone(c echo.Context, phone string) (*model.User, bool) {
	local := strings.TrimPrefix(phone, otp.SaudiCountryCode)
	candidates := []string{phone, "+" + phone, "0" + local, local}

	var user model.User
	err := dbFor(c).Where("phone IN ? AND approved = ?", candidates, true).First(&user).Error
	if err != nil {
		return nil, false
	}
	return &user, true
}

// OTPCallback receives delivery reports from the OTP provider
func (h *OTPHandler) OTPCallback(c echo.Context) error {
	log := logger.FromEcho(c)

	data := map[string]interface{}{}
	if c.Request().Method == http.MethodPost {
		if err := json.NewDecoder(c.Request().Body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to parse OTP callback", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process callback"})
		}
	} else {
		for key, values := range c.QueryParams() {
			if len(values) > 0 {
				data[key] = values[0]
			}
		}
	}

	log.Info("OTP callback received",
		zap.Any("status", data["status"]),
		zap.Any("phone", data["phone"]),
		zap.Any("session_id", data["session_id"]),
		zap.Any("verified", data["verified"]))

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Callback received"})
}
