package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// NoteRequest is the body of a note create request
type NoteRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	Content    string `json:"content"`
}

// noteColumn maps an entity type to its foreign key column on notes
func noteColumn(entityType string) string {
	switch entityType {
	case model.NoteEntityLead:
		return "lead_id"
	case model.NoteEntityCustomer:
		return "customer_id"
	case model.NoteEntityMerchant:
		return "merchant_id"
	}
	return ""
}

// noteTarget returns the record a note of entityType attaches to
func noteTarget(entityType string) interface{} {
	switch entityType {
	case model.NoteEntityLead:
		return &model.Lead{}
	case model.NoteEntityCustomer:
		return &model.Customer{}
	default:
		return &model.Merchant{}
	}
}

// ListNotes returns the notes of one lead, customer or merchant, newest first
func ListNotes(c echo.Context) error {
	entityType := c.QueryParam("entityType")
	if !model.ValidNoteEntity(entityType) {
		return badRequest(c, "Invalid entity type")
	}
	entityID, err := strconv.ParseUint(c.QueryParam("entityId"), 10, 32)
	if err != nil || entityID == 0 {
		return badRequest(c, "Invalid entity ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var notes []model.Note
	err = dbFor(c).
		Where("entity_type = ? AND "+noteColumn(entityType)+" = ?", entityType, entityID).
		Order("created_at desc, id desc").
		Find(&notes).Error
	if err != nil {
		return dbError(c, err, "Note not found", "Failed to list notes")
	}
	return c.JSON(http.StatusOK, notes)
}

// CreateNote attaches a note to a lead, customer or merchant. The author is
// taken from the session.
func CreateNote(c echo.Context) error {
	log := logger.FromEcho(c)

	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if !model.ValidNoteEntity(req.EntityType) {
		return badRequest(c, "Invalid entity type")
	}
	if req.EntityID == 0 {
		return badRequest(c, "Invalid entity ID")
	}
	content := trimmed(&req.Content)
	if content == "" {
		return badRequest(c, "Content is required")
	}

	if err := dbFor(c).First(noteTarget(req.EntityType), req.EntityID).Error; err != nil {
		return dbError(c, err, "Entity not found", "Failed to create note")
	}

	note := model.Note{
		Content:    content,
		EntityType: req.EntityType,
		UserName:   "Unknown User",
	}
	if claims, ok := middleware.CurrentUser(c); ok {
		note.UserID = claims.UserID
		switch {
		case claims.Name != "":
			note.UserName = claims.Name
		case claims.Email != "":
			note.UserName = claims.Email
		}
	}
	id := req.EntityID
	switch req.EntityType {
	case model.NoteEntityLead:
		note.LeadID = &id
	case model.NoteEntityCustomer:
		note.CustomerID = &id
	case model.NoteEntityMerchant:
		note.MerchantID = &id
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := dbFor(c).Create(&note).Error; err != nil {
		log.Error("Failed to create note", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create note"})
	}

	prometheus.RecordEntityOperation("note", "created")
	return c.JSON(http.StatusCreated, note)
}

// DeleteNote removes a note
func DeleteNote(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid note ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := dbFor(c).Delete(&model.Note{}, id)
	if result.Error != nil {
		return dbError(c, result.Error, "Note not found", "Failed to delete note")
	}
	if result.RowsAffected == 0 {
		return dbError(c, gorm.ErrRecordNotFound, "Note not found", "Failed to delete note")
	}

	prometheus.RecordEntityOperation("note", "deleted")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
