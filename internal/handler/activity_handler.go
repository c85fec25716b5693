package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// recentActivityLimit caps the activity feed
const recentActivityLimit = 50

// ActivityRequest is the body of an activity create request
type ActivityRequest struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

func recentActivities(db *gorm.DB, limit int) ([]model.Activity, error) {
	var activities []model.Activity
	err := db.Order("timestamp desc, id desc").Limit(limit).Find(&activities).Error
	return activities, err
}

// ListActivities returns the most recent activities
func ListActivities(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	activities, err := recentActivities(dbFor(c), recentActivityLimit)
	if err != nil {
		return dbError(c, err, "Activity not found", "Failed to list activities")
	}
	return c.JSON(http.StatusOK, activities)
}

// CreateActivity appends a free-form entry to the activity feed
func CreateActivity(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ActivityRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	text := trimmed(&req.Text)
	if text == "" {
		return badRequest(c, "Text is required")
	}

	activity := model.Activity{
		Text:      text,
		Icon:      trimmed(&req.Icon),
		UserType:  "system",
		Timestamp: time.Now().UnixMilli(),
	}
	if claims, ok := middleware.CurrentUser(c); ok {
		userID := claims.UserID
		activity.UserID = &userID
		activity.UserType = claims.Role
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := dbFor(c).Create(&activity).Error; err != nil {
		log.Error("Failed to create activity", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create activity"})
	}
	return c.JSON(http.StatusCreated, activity)
}
