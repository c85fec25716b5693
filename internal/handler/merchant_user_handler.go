package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/model"
	"qawafel-crm/internal/otp"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// MerchantUserRequest is the body of a request to add a user to a merchant
type MerchantUserRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone string  `json:"phone"`
	Role  *string `json:"role"`
}

var errAlreadyMapped = errors.New("merchant user already mapped")

// ListMerchantUsers returns the users mapped to a merchant, newest mapping first
func ListMerchantUsers(c echo.Context) error {
	merchantID, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var mappings []model.MerchantUserMapping
	err = dbFor(c).Preload("MerchantUser").
		Where("merchant_id = ?", merchantID).
		Order("created_at desc, id desc").
		Find(&mappings).Error
	if err != nil {
		return dbError(c, err, "Merchant not found", "Failed to list merchant users")
	}
	return c.JSON(http.StatusOK, mappings)
}

// AddMerchantUser maps a merchant user to a merchant, creating the user when
// no merchant user has the email yet
func AddMerchantUser(c echo.Context) error {
	log := logger.FromEcho(c)

	merchantID, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant ID")
	}

	var req MerchantUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return badRequest(c, "Name and email are required")
	}

	var merchant model.Merchant
	if err := dbFor(c).First(&merchant, merchantID).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}

	var role *string
	if r := trimmed(req.Role); r != "" {
		role = &r
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var mapping model.MerchantUserMapping
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		user := model.MerchantUser{Email: email}
		err := tx.Where("email = ?", email).
			Attrs(model.MerchantUser{Name: name, Phone: otp.Digits(req.Phone)}).
			FirstOrCreate(&user).Error
		if err != nil {
			return err
		}

		var count int64
		err = tx.Model(&model.MerchantUserMapping{}).
			Where("merchant_id = ? AND merchant_user_id = ?", merchantID, user.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return errAlreadyMapped
		}

		mapping = model.MerchantUserMapping{
			MerchantID:     merchantID,
			MerchantUserID: user.ID,
			Role:           role,
		}
		if err := tx.Create(&mapping).Error; err != nil {
			return err
		}
		mapping.MerchantUser = &user
		return nil
	})
	if errors.Is(err, errAlreadyMapped) || isUniqueViolation(err) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "User is already mapped to this merchant"})
	}
	if err != nil {
		log.Error("Failed to add merchant user", zap.Uint("merchant_id", merchantID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to add merchant user"})
	}

	recordActivity(c, "merchant_user", "created", mapping.MerchantUserID,
		fmt.Sprintf("%s added to merchant %s", name, merchant.Name), "user")
	return c.JSON(http.StatusCreated, mapping)
}

// DeleteMerchantUserMapping removes a user from a merchant, keeping the user
func DeleteMerchantUserMapping(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid mapping ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := dbFor(c).Delete(&model.MerchantUserMapping{}, id)
	if result.Error != nil {
		return dbError(c, result.Error, "Mapping not found", "Failed to delete mapping")
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Mapping not found"})
	}

	prometheus.RecordEntityOperation("merchant_user_mapping", "deleted")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// DeleteMerchantUser deletes a merchant user together with all its mappings
func DeleteMerchantUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant user ID")
	}

	var user model.MerchantUser
	if err := dbFor(c).First(&user, id).Error; err != nil {
		return dbError(c, err, "Merchant user not found", "Failed to get merchant user")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_user_id = ?", id).Delete(&model.MerchantUserMapping{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return dbError(c, err, "Merchant user not found", "Failed to delete merchant user")
	}

	recordActivity(c, "merchant_user", "deleted", id,
		fmt.Sprintf("Merchant user %s deleted", user.Name), "user")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
