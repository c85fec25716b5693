package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/events"
	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/database"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// dbFor returns the database bound to the request context
func dbFor(c echo.Context) *gorm.DB {
	return database.GetDB().WithContext(c.Request().Context())
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// dbError answers 404 for a missing record and 500 for anything else
func dbError(c echo.Context, err error, notFound, failed string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
	}
	logger.FromEcho(c).Error(failed, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": failed})
}

// isUniqueViolation reports whether err comes from a unique index, on PostgreSQL or SQLite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// recordActivity appends to the activity feed and publishes the change.
// Failures are logged and never fail the request.
func recordActivity(c echo.Context, entity, eventType string, entityID uint, text, icon string) {
	log := logger.FromEcho(c)
	now := time.Now()

	activity := model.Activity{
		Text:      text,
		Icon:      icon,
		UserType:  "system",
		Timestamp: now.UnixMilli(),
	}
	var userID uint
	if claims, ok := middleware.CurrentUser(c); ok {
		userID = claims.UserID
		activity.UserID = &userID
		activity.UserType = claims.Role
	}

	if err := dbFor(c).Create(&activity).Error; err != nil {
		log.Warn("Failed to record activity", zap.String("entity", entity), zap.Error(err))
	}
	prometheus.RecordEntityOperation(entity, eventType)

	err := events.FromEcho(c).Publish(logger.RequestContext(c), events.Event{
		Type:       eventType,
		Entity:     entity,
		EntityID:   entityID,
		Text:       text,
		UserID:     userID,
		OccurredAt: now,
	})
	if err != nil {
		log.Warn("Failed to publish event", zap.String("entity", entity), zap.Error(err))
		prometheus.RecordEventPublish("error")
		return
	}
	prometheus.RecordEventPublish("success")
}

// parseOptionalDate turns "" into nil and anything else into a parsed date
func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := model.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// trimmed returns the trimmed value of an optional string, "" when nil
func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// deleteWithNotes deletes record together with the notes attached to it
func deleteWithNotes(c echo.Context, record interface{}, column string, id uint) error {
	return dbFor(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(column+" = ?", id).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		return tx.Delete(record).Error
	})
}

var errEmptyRequired = errors.New("required field is empty")
