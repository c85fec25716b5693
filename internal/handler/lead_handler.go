package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/lookup"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// LeadRequest is the body of lead create and update requests. Status and
// source may be given by id or by name.
type LeadRequest struct {
	Company          *string  `json:"company"`
	ContactName      *string  `json:"contact_name"`
	Email            *string  `json:"email"`
	Phone            *string  `json:"phone"`
	StatusID         *uint    `json:"status_id"`
	Status           *string  `json:"status"`
	SourceID         *uint    `json:"source_id"`
	Source           *string  `json:"source"`
	Value            *float64 `json:"value"`
	BusinessSize     *string  `json:"business_size"`
	NumberOfBranches *int     `json:"number_of_branches"`
}

// LeadFormRequest is what a prospect may fill in through the public form
type LeadFormRequest struct {
	BusinessSize     *string `json:"business_size"`
	NumberOfBranches *int    `json:"number_of_branches"`
}

var errUnknownLookup = errors.New("unknown lookup id")

// resolveStatus returns the status id for the request, or fallback when none is given
func resolveStatus(tx *gorm.DB, id *uint, name *string, fallback string) (uint, error) {
	if id != nil {
		var status model.LeadStatus
		if err := tx.First(&status, *id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, errUnknownLookup
			}
			return 0, err
		}
		return status.ID, nil
	}
	if n := trimmed(name); n != "" {
		fallback = n
	} else if fallback == "" {
		return 0, nil
	}
	status, err := lookup.LeadStatus(tx, fallback)
	if err != nil {
		return 0, err
	}
	return status.ID, nil
}

func resolveSource(tx *gorm.DB, id *uint, name *string, fallback string) (uint, error) {
	if id != nil {
		var source model.LeadSource
		if err := tx.First(&source, *id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, errUnknownLookup
			}
			return 0, err
		}
		return source.ID, nil
	}
	if n := trimmed(name); n != "" {
		fallback = n
	} else if fallback == "" {
		return 0, nil
	}
	source, err := lookup.LeadSource(tx, fallback)
	if err != nil {
		return 0, err
	}
	return source.ID, nil
}

func newFormToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func loadLead(db *gorm.DB, id uint) (*model.Lead, error) {
	var lead model.Lead
	if err := db.Preload("Status").Preload("Source").First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// ListLeads returns every lead, newest first
func ListLeads(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var leads []model.Lead
	if err := dbFor(c).Preload("Status").Preload("Source").Order("id desc").Find(&leads).Error; err != nil {
		return dbError(c, err, "Lead not found", "Failed to list leads")
	}
	return c.JSON(http.StatusOK, leads)
}

// GetLead returns one lead
func GetLead(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	lead, err := loadLead(dbFor(c), id)
	if err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}
	return c.JSON(http.StatusOK, lead)
}

// CreateLead creates a lead with a fresh public form token
func CreateLead(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LeadRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if trimmed(req.Company) == "" || trimmed(req.ContactName) == "" {
		return badRequest(c, "Company and contact name are required")
	}
	if req.NumberOfBranches != nil && *req.NumberOfBranches < 0 {
		return badRequest(c, "Number of branches cannot be negative")
	}

	token := newFormToken()
	lead := model.Lead{
		Company:      trimmed(req.Company),
		ContactName:  trimmed(req.ContactName),
		Email:        strings.ToLower(trimmed(req.Email)),
		Phone:        trimmed(req.Phone),
		BusinessSize: trimmed(req.BusinessSize),
		FormToken:    &token,
	}
	if req.Value != nil {
		lead.Value = *req.Value
	}
	if req.NumberOfBranches != nil {
		lead.NumberOfBranches = *req.NumberOfBranches
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	err := dbFor(c).Transaction(func(tx *gorm.DB) error {
		var err error
		if lead.StatusID, err = resolveStatus(tx, req.StatusID, req.Status, model.DefaultLeadStatus); err != nil {
			return err
		}
		if lead.SourceID, err = resolveSource(tx, req.SourceID, req.Source, model.DefaultLeadSource); err != nil {
			return err
		}
		return tx.Create(&lead).Error
	})
	if errors.Is(err, errUnknownLookup) {
		return badRequest(c, "Unknown lead status or source")
	}
	if err != nil {
		log.Error("Failed to create lead", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create lead"})
	}

	created, err := loadLead(dbFor(c), lead.ID)
	if err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}

	log.Info("Lead created", zap.Uint("lead_id", lead.ID))
	recordActivity(c, "lead", "created", lead.ID,
		fmt.Sprintf("New lead from %s", lead.Company), "lead")
	return c.JSON(http.StatusCreated, created)
}

// UpdateLead applies the provided fields to a lead
func UpdateLead(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead ID")
	}

	var req LeadRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if req.NumberOfBranches != nil && *req.NumberOfBranches < 0 {
		return badRequest(c, "Number of branches cannot be negative")
	}

	var lead model.Lead
	if err := dbFor(c).First(&lead, id).Error; err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Company != nil {
			if trimmed(req.Company) == "" {
				return errEmptyRequired
			}
			updates["company"] = trimmed(req.Company)
		}
		if req.ContactName != nil {
			if trimmed(req.ContactName) == "" {
				return errEmptyRequired
			}
			updates["contact_name"] = trimmed(req.ContactName)
		}
		if req.Email != nil {
			updates["email"] = strings.ToLower(trimmed(req.Email))
		}
		if req.Phone != nil {
			updates["phone"] = trimmed(req.Phone)
		}
		if req.Value != nil {
			updates["value"] = *req.Value
		}
		if req.BusinessSize != nil {
			updates["business_size"] = trimmed(req.BusinessSize)
		}
		if req.NumberOfBranches != nil {
			updates["number_of_branches"] = *req.NumberOfBranches
		}
		statusID, err := resolveStatus(tx, req.StatusID, req.Status, "")
		if err != nil {
			return err
		}
		if statusID != 0 {
			updates["status_id"] = statusID
		}
		sourceID, err := resolveSource(tx, req.SourceID, req.Source, "")
		if err != nil {
			return err
		}
		if sourceID != 0 {
			updates["source_id"] = sourceID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&lead).Updates(updates).Error
	})
	switch {
	case errors.Is(err, errUnknownLookup):
		return badRequest(c, "Unknown lead status or source")
	case errors.Is(err, errEmptyRequired):
		return badRequest(c, "Company and contact name cannot be empty")
	case err != nil:
		log.Error("Failed to update lead", zap.Uint("lead_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update lead"})
	}

	updated, err := loadLead(dbFor(c), id)
	if err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}

	recordActivity(c, "lead", "updated", id,
		fmt.Sprintf("Lead %s updated", updated.Company), "lead")
	return c.JSON(http.StatusOK, updated)
}

// DeleteLead removes a lead and its notes
func DeleteLead(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead ID")
	}

	var lead model.Lead
	if err := dbFor(c).First(&lead, id).Error; err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := deleteWithNotes(c, &lead, "lead_id", id); err != nil {
		return dbError(c, err, "Lead not found", "Failed to delete lead")
	}

	recordActivity(c, "lead", "deleted", id,
		fmt.Sprintf("Lead %s deleted", lead.Company), "lead")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RegenerateLeadFormToken issues a new public form token, invalidating the old link
func RegenerateLeadFormToken(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid lead ID")
	}

	var lead model.Lead
	if err := dbFor(c).First(&lead, id).Error; err != nil {
		return dbError(c, err, "Lead not found", "Failed to get lead")
	}

	token := newFormToken()
	if err := dbFor(c).Model(&lead).Update("form_token", token).Error; err != nil {
		return dbError(c, err, "Lead not found", "Failed to update lead")
	}
	return c.JSON(http.StatusOK, echo.Map{"form_token": token})
}

// GetLeadForm returns the fields a prospect sees on the public form
func GetLeadForm(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return badRequest(c, "Invalid form token")
	}

	var lead model.Lead
	if err := dbFor(c).Where("form_token = ?", token).First(&lead).Error; err != nil {
		return dbError(c, err, "Form not found", "Failed to load form")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"company":            lead.Company,
		"contact_name":       lead.ContactName,
		"business_size":      lead.BusinessSize,
		"number_of_branches": lead.NumberOfBranches,
	})
}

// SubmitLeadForm stores the prospect's answers
func SubmitLeadForm(c echo.Context) error {
	log := logger.FromEcho(c)
	token := c.Param("token")

	var req LeadFormRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request data")
	}
	if req.NumberOfBranches != nil && *req.NumberOfBranches < 0 {
		return badRequest(c, "Number of branches cannot be negative")
	}

	var lead model.Lead
	if err := dbFor(c).Where("form_token = ?", token).First(&lead).Error; err != nil {
		return dbError(c, err, "Form not found", "Failed to load form")
	}

	updates := map[string]interface{}{}
	if req.BusinessSize != nil {
		updates["business_size"] = trimmed(req.BusinessSize)
	}
	if req.NumberOfBranches != nil {
		updates["number_of_branches"] = *req.NumberOfBranches
	}
	if len(updates) > 0 {
		if err := dbFor(c).Model(&lead).Updates(updates).Error; err != nil {
			log.Error("Failed to save lead form", zap.Uint("lead_id", lead.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save form"})
		}
	}

	log.Info("Lead form submitted", zap.Uint("lead_id", lead.ID))
	recordActivity(c, "lead", "updated", lead.ID,
		fmt.Sprintf("%s completed their lead form", lead.Company), "lead")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
