package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/prometheus"
)

// DashboardStats are the headline numbers of the dashboard
type DashboardStats struct {
	TotalLeads       int64            `json:"total_leads"`
	ActiveDeals      int64            `json:"active_deals"`
	TotalMerchants   int64            `json:"total_merchants"`
	TotalCustomers   int64            `json:"total_customers"`
	TotalDealsValue  float64          `json:"total_deals_value"`
	RecentActivities []model.Activity `json:"recent_activities"`
}

// Bootstrap is everything the client loads after signing in. Signup
// requests and users are only filled for admins.
type Bootstrap struct {
	Customers      []model.Customer      `json:"customers"`
	Merchants      []model.Merchant      `json:"merchants"`
	Leads          []model.Lead          `json:"leads"`
	Deals          []model.Deal          `json:"deals"`
	Proposals      []model.Proposal      `json:"proposals"`
	Activities     []model.Activity      `json:"activities"`
	Lookups        *Lookups              `json:"lookups"`
	Profile        *model.User           `json:"profile,omitempty"`
	SignupRequests []model.SignupRequest `json:"signup_requests,omitempty"`
	Users          []model.User          `json:"users,omitempty"`
}

func dashboardStats(db *gorm.DB) (*DashboardStats, error) {
	var s DashboardStats
	if err := db.Model(&model.Lead{}).Count(&s.TotalLeads).Error; err != nil {
		return nil, err
	}
	err := db.Model(&model.Deal{}).
		Joins("JOIN deal_stages ON deal_stages.id = deals.stage_id").
		Where("deal_stages.is_won = ? AND deal_stages.is_lost = ?", false, false).
		Count(&s.ActiveDeals).Error
	if err != nil {
		return nil, err
	}
	if err := db.Model(&model.Merchant{}).Count(&s.TotalMerchants).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Customer{}).Count(&s.TotalCustomers).Error; err != nil {
		return nil, err
	}
	err = db.Model(&model.Deal{}).
		Select("COALESCE(SUM(value), 0)").
		Scan(&s.TotalDealsValue).Error
	if err != nil {
		return nil, err
	}
	if s.RecentActivities, err = recentActivities(db, 10); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetDashboard returns totals and the latest activity
func GetDashboard(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	stats, err := dashboardStats(dbFor(c))
	if err != nil {
		return dbError(c, err, "Dashboard not found", "Failed to load dashboard")
	}
	return c.JSON(http.StatusOK, stats)
}

// GetBootstrap loads every list the client needs in one request
func GetBootstrap(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	db := dbFor(c)
	var b Bootstrap
	queries := []func() error{
		func() error { return db.Order("id asc").Find(&b.Customers).Error },
		func() error { return db.Order("id asc").Find(&b.Merchants).Error },
		func() error { return db.Preload("Status").Preload("Source").Order("id desc").Find(&b.Leads).Error },
		func() error { return db.Preload("Stage").Order("id desc").Find(&b.Deals).Error },
		func() error { return db.Order("created_at desc, id desc").Find(&b.Proposals).Error },
		func() (err error) {
			b.Activities, err = recentActivities(db, recentActivityLimit)
			return err
		},
		func() (err error) {
			b.Lookups, err = loadLookups(db)
			return err
		},
	}
	for _, q := range queries {
		if err := q(); err != nil {
			return dbError(c, err, "Data not found", "Failed to load data")
		}
	}

	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusOK, b)
	}

	var profile model.User
	if err := db.First(&profile, claims.UserID).Error; err == nil {
		b.Profile = &profile
	}

	if claims.Role == model.RoleAdmin {
		if err := db.Order("created_at desc, id desc").Find(&b.SignupRequests).Error; err != nil {
			return dbError(c, err, "Data not found", "Failed to load data")
		}
		if err := db.Order("created_at desc, id desc").Find(&b.Users).Error; err != nil {
			return dbError(c, err, "Data not found", "Failed to load data")
		}
	}
	return c.JSON(http.StatusOK, b)
}
