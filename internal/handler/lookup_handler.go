package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"qawafel-crm/internal/model"
	"qawafel-crm/prometheus"
)

// Lookups are the configurable pick lists of the CRM
type Lookups struct {
	LeadStatuses []model.LeadStatus `json:"lead_statuses"`
	LeadSources  []model.LeadSource `json:"lead_sources"`
	DealStages   []model.DealStage  `json:"deal_stages"`
}

func loadLookups(db *gorm.DB) (*Lookups, error) {
	var l Lookups
	if err := db.Order("sort_order asc, id asc").Find(&l.LeadStatuses).Error; err != nil {
		return nil, err
	}
	if err := db.Order("name asc").Find(&l.LeadSources).Error; err != nil {
		return nil, err
	}
	if err := db.Order("sort_order asc, id asc").Find(&l.DealStages).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLookups returns lead statuses, lead sources and deal stages
func GetLookups(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	lookups, err := loadLookups(dbFor(c))
	if err != nil {
		return dbError(c, err, "Lookup not found", "Failed to load lookups")
	}
	return c.JSON(http.StatusOK, lookups)
}
