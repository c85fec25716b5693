package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// ProfileRequest updates the signed-in user's profile
type ProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// PasswordRequest changes the signed-in user's password
type PasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile updates the name and email of the signed-in user
func UpdateProfile(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if req.Email != nil && trimmed(req.Email) == "" {
		return badRequest(c, "Email cannot be empty")
	}

	var user model.User
	if err := dbFor(c).First(&user, claims.UserID).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to get user")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = trimmed(req.Name)
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(trimmed(req.Email))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		err := dbFor(c).Model(&user).Updates(updates).Error
		if isUniqueViolation(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email is already in use"})
		}
		if err != nil {
			log.Error("Failed to update profile", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update profile"})
		}
	}

	log.Info("Profile updated")
	return c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the password of a credentials account after
// checking the current one
func ChangePassword(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
	}

	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest(c, "Current and new password are required")
	}

	var user model.User
	if err := dbFor(c).First(&user, claims.UserID).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to get user")
	}

	if user.Provider != model.ProviderCredentials {
		return badRequest(c, "Cannot change password for Google users")
	}

	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		prometheus.RecordAuthError("wrong_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process password"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := dbFor(c).Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to update password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update password"})
	}

	log.Info("Password changed")
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password updated successfully"})
}
