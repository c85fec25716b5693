package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/events"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// ApprovalRequest toggles a user's access
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

// RoleRequest assigns a role to a user
type RoleRequest struct {
	Role string `json:"role"`
}

// ListSignupRequests returns every signup request, newest first
func ListSignupRequests(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var requests []model.SignupRequest
	if err := dbFor(c).Order("created_at desc, id desc").Find(&requests).Error; err != nil {
		return dbError(c, err, "Signup request not found", "Failed to list signup requests")
	}
	return c.JSON(http.StatusOK, requests)
}

// ApproveSignupRequest creates an approved user for the request and marks it approved
func ApproveSignupRequest(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid signup request ID")
	}

	var request model.SignupRequest
	if err := dbFor(c).First(&request, id).Error; err != nil {
		return dbError(c, err, "Signup request not found", "Failed to get signup request")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	user := model.User{
		Email:    request.Email,
		Name:     request.Name,
		Image:    request.Image,
		Provider: request.Provider,
		Role:     model.RoleUser,
		Approved: true,
	}
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Model(&request).Update("status", model.SignupApproved).Error
	})
	if isUniqueViolation(err) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "User with this email already exists"})
	}
	if err != nil {
		log.Error("Failed to approve signup request", zap.Uint("request_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to approve signup request"})
	}

	log.Info("Signup request approved", zap.Uint("request_id", id), zap.Uint("user_id", user.ID))
	recordActivity(c, "signup_request", events.TypeApproved, id,
		fmt.Sprintf("Access approved for %s", request.Email), "user")
	return c.JSON(http.StatusOK, user)
}

// RejectSignupRequest marks a signup request rejected
func RejectSignupRequest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid signup request ID")
	}

	var request model.SignupRequest
	if err := dbFor(c).First(&request, id).Error; err != nil {
		return dbError(c, err, "Signup request not found", "Failed to get signup request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := dbFor(c).Model(&request).Update("status", model.SignupRejected).Error; err != nil {
		return dbError(c, err, "Signup request not found", "Failed to reject signup request")
	}

	recordActivity(c, "signup_request", events.TypeRejected, id,
		fmt.Sprintf("Access rejected for %s", request.Email), "user")
	return c.JSON(http.StatusOK, request)
}

// ListUsers returns every CRM user
func ListUsers(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	if err := dbFor(c).Order("created_at desc, id desc").Find(&users).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to list users")
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateUserApproval grants or revokes a user's access
func UpdateUserApproval(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	var req ApprovalRequest
	if err := c.Bind(&req); err != nil || req.Approved == nil {
		return badRequest(c, "Approved flag is required")
	}

	var user model.User
	if err := dbFor(c).First(&user, id).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to get user")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := dbFor(c).Model(&user).Update("approved", *req.Approved).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to update user")
	}

	recordActivity(c, "user", events.TypeUpdated, id,
		fmt.Sprintf("Access for %s set to %t", user.Email, *req.Approved), "user")
	return c.JSON(http.StatusOK, user)
}

// UpdateUserRole assigns user, editor or admin to a user
func UpdateUserRole(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	var req RoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if !model.ValidRole(req.Role) {
		return badRequest(c, "Invalid role")
	}

	var user model.User
	if err := dbFor(c).First(&user, id).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to get user")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := dbFor(c).Model(&user).Update("role", req.Role).Error; err != nil {
		return dbError(c, err, "User not found", "Failed to update user")
	}

	recordActivity(c, "user", events.TypeUpdated, id,
		fmt.Sprintf("%s is now %s", user.Email, req.Role), "user")
	return c.JSON(http.StatusOK, user)
}
