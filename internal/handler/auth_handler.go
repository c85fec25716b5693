package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// AuthHandler signs staff in and out with email and password
type AuthHandler struct {
	Sessions *middleware.Sessions
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(sessions *middleware.Sessions) *AuthHandler {
	return &AuthHandler{Sessions: sessions}
}

// LoginRequest is the body of a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequestBody asks for access to the CRM
type SignupRequestBody struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

var (
	errUserExists      = errors.New("a user with this email already exists")
	errSignupPending   = errors.New("signup request is pending approval")
	errSignupRejected  = errors.New("signup request was rejected")
	errPendingApproval = errors.New("account pending approval")
)

// Login checks the credentials and starts a session
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return badRequest(c, "Invalid request data")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		prometheus.RecordLogin(model.ProviderCredentials, "invalid_request")
		return badRequest(c, "Email and password are required")
	}

	user, err := authenticate(dbFor(c), email, req.Password)
	switch {
	case errors.Is(err, errPendingApproval):
		log.Warn("Login for unapproved user", zap.String("email", email))
		prometheus.RecordLogin(model.ProviderCredentials, "pending")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Your account is pending approval"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("Invalid login attempt", zap.String("email", email))
		prometheus.RecordLogin(model.ProviderCredentials, "invalid_credentials")
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
	case err != nil:
		log.Error("Failed to load user", zap.Error(err))
		prometheus.RecordAuthError("db_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign in"})
	}

	token, err := h.Sessions.StartSession(c, user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign in"})
	}

	prometheus.RecordLogin(model.ProviderCredentials, "success")
	log.Info("User logged in", zap.String("email", user.Email), zap.String("role", user.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

// authenticate returns the approved user with this email and password.
// Unknown users, accounts without a password and wrong passwords all
// yield gorm.ErrRecordNotFound.
func authenticate(db *gorm.DB, email, password string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, gorm.ErrRecordNotFound
	}
	if !user.Approved {
		return nil, errPendingApproval
	}
	return &user, nil
}

// Logout clears the session cookies
func (h *AuthHandler) Logout(c echo.Context) error {
	h.Sessions.Clear(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Session returns the signed-in user
func (h *AuthHandler) Session(c echo.Context) error {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	provider := model.ProviderCredentials
	var user model.User
	if err := dbFor(c).Select("provider").First(&user, claims.UserID).Error; err == nil {
		provider = user.Provider
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":       claims.UserID,
			"email":    claims.Email,
			"name":     claims.Name,
			"role":     claims.Role,
			"provider": provider,
		},
		"expires_at": claims.ExpiresAt,
	})
}

// CreateSignupRequest records a request for access to the CRM
func (h *AuthHandler) CreateSignupRequest(c echo.Context) error {
	log := logger.FromEcho(c)

	var req SignupRequestBody
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if strings.TrimSpace(req.Email) == "" {
		return badRequest(c, "Email is required")
	}

	request, err := createSignupRequest(dbFor(c), req.Email, req.Name, req.Image, model.ProviderGoogle)
	if err != nil {
		return signupError(c, err)
	}

	log.Info("Signup request created", zap.String("email", request.Email))
	return c.JSON(http.StatusCreated, request)
}

// createSignupRequest creates a pending request unless the email already
// belongs to a user or an earlier request
func createSignupRequest(db *gorm.DB, email, name, image, provider string) (*model.SignupRequest, error) {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	email = strings.ToLower(strings.TrimSpace(email))

	var users int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&users).Error; err != nil {
		return nil, err
	}
	if users > 0 {
		return nil, errUserExists
	}

	var existing model.SignupRequest
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Status == model.SignupRejected {
			return nil, errSignupRejected
		}
		return nil, errSignupPending
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	request := model.SignupRequest{
		Email:    email,
		Name:     strings.TrimSpace(name),
		Image:    image,
		Provider: provider,
		Status:   model.SignupPending,
	}
	if err := db.Create(&request).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, errSignupPending
		}
		return nil, err
	}
	return &request, nil
}

func signupError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errUserExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "User with this email already exists"})
	case errors.Is(err, errSignupPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "Signup request is pending approval"})
	case errors.Is(err, errSignupRejected):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Signup request was rejected"})
	}
	logger.FromEcho(c).Error("Failed to create signup request", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create signup request"})
}
