package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// MerchantRequest is the body of merchant create and update requests.
// Nil fields are left untouched on update; empty strings clear optional fields.
type MerchantRequest struct {
	Name                    *string `json:"name"`
	BusinessName            *string `json:"business_name"`
	Category                *string `json:"category"`
	Email                   *string `json:"email"`
	Phone                   *string `json:"phone"`
	AccountStatus           *string `json:"account_status"`
	MarketplaceStatus       *string `json:"marketplace_status"`
	Plan                    *string `json:"plan"`
	TrialFlag               *bool   `json:"trial_flag"`
	SignUpDate              *string `json:"sign_up_date"`
	SaasStartDate           *string `json:"saas_start_date"`
	SaasEndDate             *string `json:"saas_end_date"`
	CRID                    *string `json:"cr_id"`
	CRCertificate           *string `json:"cr_certificate"`
	VATID                   *string `json:"vat_id"`
	VATCertificate          *string `json:"vat_certificate"`
	ZatcaIdentificationType *string `json:"zatca_identification_type"`
	ZatcaID                 *string `json:"zatca_id"`
	VerificationStatus      *string `json:"verification_status"`
	LastPaymentDueDate      *string `json:"last_payment_due_date"`
	RetentionStatus         *string `json:"retention_status"`
}

// updates converts the request into column updates
func (r *MerchantRequest) updates() (map[string]interface{}, string) {
	if r.AccountStatus != nil && !model.ValidAccountStatus(*r.AccountStatus) {
		return nil, "Invalid account status"
	}
	if r.MarketplaceStatus != nil && !model.ValidMarketplaceStatus(*r.MarketplaceStatus) {
		return nil, "Invalid marketplace status"
	}

	out := map[string]interface{}{}
	required := map[string]*string{
		"name":          r.Name,
		"business_name": r.BusinessName,
		"category":      r.Category,
	}
	for column, v := range required {
		if v == nil {
			continue
		}
		if trimmed(v) == "" {
			return nil, "Name, business name and category cannot be empty"
		}
		out[column] = trimmed(v)
	}
	if r.Email != nil {
		if trimmed(r.Email) == "" {
			return nil, "Email cannot be empty"
		}
		out["email"] = strings.ToLower(trimmed(r.Email))
	}

	optional := map[string]*string{
		"phone":                     r.Phone,
		"account_status":            r.AccountStatus,
		"marketplace_status":        r.MarketplaceStatus,
		"plan":                      r.Plan,
		"cr_id":                     r.CRID,
		"cr_certificate":            r.CRCertificate,
		"vat_id":                    r.VATID,
		"vat_certificate":           r.VATCertificate,
		"zatca_identification_type": r.ZatcaIdentificationType,
		"zatca_id":                  r.ZatcaID,
		"verification_status":       r.VerificationStatus,
		"retention_status":          r.RetentionStatus,
	}
	for column, v := range optional {
		if v != nil {
			out[column] = trimmed(v)
		}
	}
	if r.TrialFlag != nil {
		out["trial_flag"] = *r.TrialFlag
	}

	dates := map[string]*string{
		"sign_up_date":          r.SignUpDate,
		"saas_start_date":       r.SaasStartDate,
		"saas_end_date":         r.SaasEndDate,
		"last_payment_due_date": r.LastPaymentDueDate,
	}
	for column, v := range dates {
		if v == nil {
			continue
		}
		t, err := parseOptionalDate(v)
		if err != nil {
			return nil, fmt.Sprintf("Invalid date for %s", column)
		}
		out[column] = t
	}
	return out, ""
}

// ListMerchants returns every merchant ordered by id
func ListMerchants(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var merchants []model.Merchant
	if err := dbFor(c).Order("id asc").Find(&merchants).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to list merchants")
	}
	return c.JSON(http.StatusOK, merchants)
}

// GetMerchant returns one merchant
func GetMerchant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var merchant model.Merchant
	if err := dbFor(c).First(&merchant, id).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}
	return c.JSON(http.StatusOK, merchant)
}

// CreateMerchant creates a merchant joining today
func CreateMerchant(c echo.Context) error {
	log := logger.FromEcho(c)

	var req MerchantRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if trimmed(req.Name) == "" || trimmed(req.BusinessName) == "" ||
		trimmed(req.Category) == "" || trimmed(req.Email) == "" {
		return badRequest(c, "Name, business name, category and email are required")
	}
	updates, msg := req.updates()
	if msg != "" {
		return badRequest(c, msg)
	}

	merchant := model.Merchant{
		AccountStatus:     model.AccountActive,
		MarketplaceStatus: model.MarketplaceActivated,
		JoinDate:          time.Now(),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	err := dbFor(c).Transaction(func(tx *gorm.DB) error {
		merchant.Name = updates["name"].(string)
		merchant.BusinessName = updates["business_name"].(string)
		merchant.Category = updates["category"].(string)
		merchant.Email = updates["email"].(string)
		if err := tx.Create(&merchant).Error; err != nil {
			return err
		}
		return tx.Model(&merchant).Updates(updates).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "A merchant with this email already exists"})
		}
		log.Error("Failed to create merchant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create merchant"})
	}

	if err := dbFor(c).First(&merchant, merchant.ID).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}

	log.Info("Merchant created", zap.Uint("merchant_id", merchant.ID))
	recordActivity(c, "merchant", "created", merchant.ID,
		fmt.Sprintf("New merchant %s added", merchant.BusinessName), "store")
	return c.JSON(http.StatusCreated, merchant)
}

// UpdateMerchant applies the provided fields to a merchant
func UpdateMerchant(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant ID")
	}

	var req MerchantRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	updates, msg := req.updates()
	if msg != "" {
		return badRequest(c, msg)
	}

	var merchant model.Merchant
	if err := dbFor(c).First(&merchant, id).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := dbFor(c).Model(&merchant).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "A merchant with this email already exists"})
			}
			log.Error("Failed to update merchant", zap.Uint("merchant_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update merchant"})
		}
	}

	if err := dbFor(c).First(&merchant, id).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}

	recordActivity(c, "merchant", "updated", merchant.ID,
		fmt.Sprintf("Merchant %s updated", merchant.BusinessName), "store")
	return c.JSON(http.StatusOK, merchant)
}

// DeleteMerchant removes a merchant with its notes and user mappings
func DeleteMerchant(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid merchant ID")
	}

	var merchant model.Merchant
	if err := dbFor(c).First(&merchant, id).Error; err != nil {
		return dbError(c, err, "Merchant not found", "Failed to get merchant")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_id = ?", id).Delete(&model.MerchantUserMapping{}).Error; err != nil {
			return err
		}
		if err := tx.Where("merchant_id = ?", id).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		return tx.Delete(&merchant).Error
	})
	if err != nil {
		return dbError(c, err, "Merchant not found", "Failed to delete merchant")
	}

	recordActivity(c, "merchant", "deleted", id,
		fmt.Sprintf("Merchant %s deleted", merchant.BusinessName), "store")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
