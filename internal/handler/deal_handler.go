package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qawafel-crm/internal/lookup"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

// DealRequest is the body of deal create and update requests. The stage may
// be given by id or by name.
type DealRequest struct {
	Title       *string  `json:"title"`
	Company     *string  `json:"company"`
	ContactName *string  `json:"contact_name"`
	Value       *float64 `json:"value"`
	StageID     *uint    `json:"stage_id"`
	Stage       *string  `json:"stage"`
	Probability *int     `json:"probability"`
	CloseDate   *string  `json:"close_date"`
}

// PipelineStage summarizes the deals in one stage
type PipelineStage struct {
	StageID    uint    `json:"stage_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	IsWon      bool    `json:"is_won"`
	IsLost     bool    `json:"is_lost"`
	Count      int64   `json:"count"`
	TotalValue float64 `json:"total_value"`
}

func resolveStage(tx *gorm.DB, id *uint, name *string, fallback string) (uint, error) {
	if id != nil {
		var stage model.DealStage
		if err := tx.First(&stage, *id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, errUnknownLookup
			}
			return 0, err
		}
		return stage.ID, nil
	}
	if n := trimmed(name); n != "" {
		fallback = n
	} else if fallback == "" {
		return 0, nil
	}
	stage, err := lookup.DealStage(tx, fallback)
	if err != nil {
		return 0, err
	}
	return stage.ID, nil
}

func validProbability(p *int) bool {
	return p == nil || (*p >= 0 && *p <= 100)
}

func loadDeal(db *gorm.DB, id uint) (*model.Deal, error) {
	var deal model.Deal
	if err := db.Preload("Stage").First(&deal, id).Error; err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListDeals returns every deal, newest first
func ListDeals(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var deals []model.Deal
	if err := dbFor(c).Preload("Stage").Order("id desc").Find(&deals).Error; err != nil {
		return dbError(c, err, "Deal not found", "Failed to list deals")
	}
	return c.JSON(http.StatusOK, deals)
}

// GetDeal returns one deal
func GetDeal(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid deal ID")
	}

	deal, err := loadDeal(dbFor(c), id)
	if err != nil {
		return dbError(c, err, "Deal not found", "Failed to get deal")
	}
	return c.JSON(http.StatusOK, deal)
}

// CreateDeal creates a deal
func CreateDeal(c echo.Context) error {
	log := logger.FromEcho(c)

	var req DealRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if trimmed(req.Title) == "" {
		return badRequest(c, "Title is required")
	}
	if !validProbability(req.Probability) {
		return badRequest(c, "Probability must be between 0 and 100")
	}

	deal := model.Deal{
		Title:       trimmed(req.Title),
		Company:     trimmed(req.Company),
		ContactName: trimmed(req.ContactName),
		CloseDate:   time.Now().AddDate(0, 1, 0),
	}
	if req.Value != nil {
		deal.Value = *req.Value
	}
	if req.Probability != nil {
		deal.Probability = *req.Probability
	}
	closeDate, err := parseOptionalDate(req.CloseDate)
	if err != nil {
		return badRequest(c, "Invalid close date")
	}
	if closeDate != nil {
		deal.CloseDate = *closeDate
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		var err error
		if deal.StageID, err = resolveStage(tx, req.StageID, req.Stage, model.DefaultDealStage); err != nil {
			return err
		}
		return tx.Create(&deal).Error
	})
	if errors.Is(err, errUnknownLookup) {
		return badRequest(c, "Unknown deal stage")
	}
	if err != nil {
		log.Error("Failed to create deal", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create deal"})
	}

	created, err := loadDeal(dbFor(c), deal.ID)
	if err != nil {
		return dbError(c, err, "Deal not found", "Failed to get deal")
	}

	log.Info("Deal created", zap.Uint("deal_id", deal.ID))
	recordActivity(c, "deal", "created", deal.ID,
		fmt.Sprintf("New deal %s created", deal.Title), "deal")
	return c.JSON(http.StatusCreated, created)
}

// UpdateDeal applies the provided fields to a deal
func UpdateDeal(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid deal ID")
	}

	var req DealRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if !validProbability(req.Probability) {
		return badRequest(c, "Probability must be between 0 and 100")
	}
	if req.Title != nil && trimmed(req.Title) == "" {
		return badRequest(c, "Title cannot be empty")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = trimmed(req.Title)
	}
	if req.Company != nil {
		updates["company"] = trimmed(req.Company)
	}
	if req.ContactName != nil {
		updates["contact_name"] = trimmed(req.ContactName)
	}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.Probability != nil {
		updates["probability"] = *req.Probability
	}
	if req.CloseDate != nil {
		closeDate, err := parseOptionalDate(req.CloseDate)
		if err != nil || closeDate == nil {
			return badRequest(c, "Invalid close date")
		}
		updates["close_date"] = *closeDate
	}

	var deal model.Deal
	if err := dbFor(c).First(&deal, id).Error; err != nil {
		return dbError(c, err, "Deal not found", "Failed to get deal")
	}
	previousStage := deal.StageID

	defer prometheus.TrackDBOperation("update")(time.Now())

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		stageID, err := resolveStage(tx, req.StageID, req.Stage, "")
		if err != nil {
			return err
		}
		if stageID != 0 {
			updates["stage_id"] = stageID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&deal).Updates(updates).Error
	})
	if errors.Is(err, errUnknownLookup) {
		return badRequest(c, "Unknown deal stage")
	}
	if err != nil {
		log.Error("Failed to update deal", zap.Uint("deal_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update deal"})
	}

	updated, err := loadDeal(dbFor(c), id)
	if err != nil {
		return dbError(c, err, "Deal not found", "Failed to get deal")
	}

	text := fmt.Sprintf("Deal %s updated", updated.Title)
	if updated.StageID != previousStage && updated.Stage != nil {
		text = fmt.Sprintf("Deal %s moved to %s", updated.Title, updated.Stage.Name)
	}
	recordActivity(c, "deal", "updated", id, text, "deal")
	return c.JSON(http.StatusOK, updated)
}

// DeleteDeal removes a deal
func DeleteDeal(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid deal ID")
	}

	var deal model.Deal
	if err := dbFor(c).First(&deal, id).Error; err != nil {
		return dbError(c, err, "Deal not found", "Failed to get deal")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := dbFor(c).Delete(&deal).Error; err != nil {
		return dbError(c, err, "Deal not found", "Failed to delete deal")
	}

	recordActivity(c, "deal", "deleted", id,
		fmt.Sprintf("Deal %s deleted", deal.Title), "deal")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// DealPipeline returns deal count and value per stage in pipeline order
func DealPipeline(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var stages []model.DealStage
	if err := dbFor(c).Order("sort_order asc, id asc").Find(&stages).Error; err != nil {
		return dbError(c, err, "Deal stage not found", "Failed to load pipeline")
	}

	type row struct {
		StageID    uint
		Count      int64
		TotalValue float64
	}
	var rows []row
	err := dbFor(c).Model(&model.Deal{}).
		Select("stage_id, COUNT(*) AS count, COALESCE(SUM(value), 0) AS total_value").
		Group("stage_id").
		Scan(&rows).Error
	if err != nil {
		return dbError(c, err, "Deal not found", "Failed to load pipeline")
	}

	byStage := make(map[uint]row, len(rows))
	for _, r := range rows {
		byStage[r.StageID] = r
	}

	pipeline := make([]PipelineStage, 0, len(stages))
	for _, s := range stages {
		r := byStage[s.ID]
		pipeline = append(pipeline, PipelineStage{
			StageID:    s.ID,
			Name:       s.Name,
			Color:      s.Color,
			IsWon:      s.IsWon,
			IsLost:     s.IsLost,
			Count:      r.Count,
			TotalValue: r.TotalValue,
		})
	}
	return c.JSON(http.StatusOK, pipeline)
}
