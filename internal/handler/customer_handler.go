package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// CustomerRequest is the body of customer create and update requests.
// Nil fields are left untouched on update.
type CustomerRequest struct {
	Name              *string `json:"name"`
	Company           *string `json:"company"`
	Email             *string `json:"email"`
	Phone             *string `json:"phone"`
	AccountStatus     *string `json:"account_status"`
	MarketplaceStatus *string `json:"marketplace_status"`
}

func (r *CustomerRequest) validateStatuses() string {
	if r.AccountStatus != nil && !model.ValidAccountStatus(*r.AccountStatus) {
		return "Invalid account status"
	}
	if r.MarketplaceStatus != nil && !model.ValidMarketplaceStatus(*r.MarketplaceStatus) {
		return "Invalid marketplace status"
	}
	return ""
}

// ListCustomers returns every customer ordered by id
func ListCustomers(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var customers []model.Customer
	if err := dbFor(c).Order("id asc").Find(&customers).Error; err != nil {
		return dbError(c, err, "Customer not found", "Failed to list customers")
	}
	return c.JSON(http.StatusOK, customers)
}

// GetCustomer returns one customer
func GetCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var customer model.Customer
	if err := dbFor(c).First(&customer, id).Error; err != nil {
		return dbError(c, err, "Customer not found", "Failed to get customer")
	}
	return c.JSON(http.StatusOK, customer)
}

// CreateCustomer creates a customer joining today
func CreateCustomer(c echo.Context) error {
	log := logger.FromEcho(c)

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if trimmed(req.Name) == "" || trimmed(req.Company) == "" || trimmed(req.Email) == "" {
		return badRequest(c, "Name, company and email are required")
	}
	if msg := req.validateStatuses(); msg != "" {
		return badRequest(c, msg)
	}

	customer := model.Customer{
		Name:              trimmed(req.Name),
		Company:           trimmed(req.Company),
		Email:             strings.ToLower(trimmed(req.Email)),
		Phone:             trimmed(req.Phone),
		AccountStatus:     model.AccountActive,
		MarketplaceStatus: model.MarketplaceActivated,
		JoinDate:          time.Now(),
	}
	if req.AccountStatus != nil {
		customer.AccountStatus = *req.AccountStatus
	}
	if req.MarketplaceStatus != nil {
		customer.MarketplaceStatus = *req.MarketplaceStatus
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := dbFor(c).Create(&customer).Error; err != nil {
		if isUniqueViolation(err) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "A customer with this email already exists"})
		}
		log.Error("Failed to create customer", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create customer"})
	}

	log.Info("Customer created", zap.Uint("customer_id", customer.ID))
	recordActivity(c, "customer", "created", customer.ID,
		fmt.Sprintf("New customer %s added", customer.Name), "user")
	return c.JSON(http.StatusCreated, customer)
}

// UpdateCustomer applies the provided fields to a customer
func UpdateCustomer(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer ID")
	}

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if msg := req.validateStatuses(); msg != "" {
		return badRequest(c, msg)
	}

	var customer model.Customer
	if err := dbFor(c).First(&customer, id).Error; err != nil {
		return dbError(c, err, "Customer not found", "Failed to get customer")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if trimmed(req.Name) == "" {
			return badRequest(c, "Name cannot be empty")
		}
		updates["name"] = trimmed(req.Name)
	}
	if req.Company != nil {
		updates["company"] = trimmed(req.Company)
	}
	if req.Email != nil {
		if trimmed(req.Email) == "" {
			return badRequest(c, "Email cannot be empty")
		}
		updates["email"] = strings.ToLower(trimmed(req.Email))
	}
	if req.Phone != nil {
		updates["phone"] = trimmed(req.Phone)
	}
	if req.AccountStatus != nil {
		updates["account_status"] = *req.AccountStatus
	}
	if req.MarketplaceStatus != nil {
		updates["marketplace_status"] = *req.MarketplaceStatus
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := dbFor(c).Model(&customer).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "A customer with this email already exists"})
			}
			log.Error("Failed to update customer", zap.Uint("customer_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update customer"})
		}
	}

	if err := dbFor(c).First(&customer, id).Error; err != nil {
		return dbError(c, err, "Customer not found", "Failed to get customer")
	}

	recordActivity(c, "customer", "updated", customer.ID,
		fmt.Sprintf("Customer %s updated", customer.Name), "user")
	return c.JSON(http.StatusOK, customer)
}

// DeleteCustomer removes a customer and its notes
func DeleteCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid customer ID")
	}

	var customer model.Customer
	if err := dbFor(c).First(&customer, id).Error; err != nil {
		return dbError(c, err, "Customer not found", "Failed to get customer")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := deleteWithNotes(c, &customer, "customer_id", id); err != nil {
		return dbError(c, err, "Customer not found", "Failed to delete customer")
	}

	recordActivity(c, "customer", "deleted", id,
		fmt.Sprintf("Customer %s deleted", customer.Name), "user")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
