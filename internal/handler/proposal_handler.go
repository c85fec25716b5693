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

// ProposalRequest is the body of proposal create and update requests
type ProposalRequest struct {
	Title         *string  `json:"title"`
	ClientName    *string  `json:"client_name"`
	ClientCompany *string  `json:"client_company"`
	Value         *float64 `json:"value"`
	Currency      *string  `json:"currency"`
	Status        *string  `json:"status"`
	ValidUntil    *string  `json:"valid_until"`
	SentDate      *string  `json:"sent_date"`
}

// ListProposals returns every proposal, newest first
func ListProposals(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var proposals []model.Proposal
	if err := dbFor(c).Order("created_at desc, id desc").Find(&proposals).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to list proposals")
	}
	return c.JSON(http.StatusOK, proposals)
}

// GetProposal returns one proposal
func GetProposal(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid proposal ID")
	}

	var proposal model.Proposal
	if err := dbFor(c).First(&proposal, id).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to get proposal")
	}
	return c.JSON(http.StatusOK, proposal)
}

// CreateProposal creates a proposal, stamping the sent date when created as Sent
func CreateProposal(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ProposalRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if trimmed(req.Title) == "" || trimmed(req.ClientName) == "" {
		return badRequest(c, "Title and client name are required")
	}
	if req.Status != nil && !model.ValidProposalStatus(*req.Status) {
		return badRequest(c, "Invalid proposal status")
	}

	now := time.Now()
	proposal := model.Proposal{
		Title:         trimmed(req.Title),
		ClientName:    trimmed(req.ClientName),
		ClientCompany: trimmed(req.ClientCompany),
		Currency:      model.DefaultCurrency,
		Status:        model.ProposalDraft,
		ValidUntil:    now.AddDate(0, 0, 30),
	}
	if req.Value != nil {
		proposal.Value = *req.Value
	}
	if currency := strings.ToUpper(trimmed(req.Currency)); currency != "" {
		proposal.Currency = currency
	}
	if req.Status != nil {
		proposal.Status = *req.Status
	}
	validUntil, err := parseOptionalDate(req.ValidUntil)
	if err != nil {
		return badRequest(c, "Invalid valid until date")
	}
	if validUntil != nil {
		proposal.ValidUntil = *validUntil
	}
	if proposal.SentDate, err = parseOptionalDate(req.SentDate); err != nil {
		return badRequest(c, "Invalid sent date")
	}
	if proposal.Status == model.ProposalSent && proposal.SentDate == nil {
		proposal.SentDate = &now
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := dbFor(c).Create(&proposal).Error; err != nil {
		log.Error("Failed to create proposal", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create proposal"})
	}

	log.Info("Proposal created", zap.Uint("proposal_id", proposal.ID))
	recordActivity(c, "proposal", "created", proposal.ID,
		fmt.Sprintf("Proposal %s created for %s", proposal.Title, proposal.ClientName), "proposal")
	return c.JSON(http.StatusCreated, proposal)
}

// UpdateProposal applies the provided fields to a proposal
func UpdateProposal(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid proposal ID")
	}

	var req ProposalRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return badRequest(c, "Invalid request data")
	}
	if req.Status != nil && !model.ValidProposalStatus(*req.Status) {
		return badRequest(c, "Invalid proposal status")
	}
	if (req.Title != nil && trimmed(req.Title) == "") || (req.ClientName != nil && trimmed(req.ClientName) == "") {
		return badRequest(c, "Title and client name cannot be empty")
	}

	var proposal model.Proposal
	if err := dbFor(c).First(&proposal, id).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to get proposal")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = trimmed(req.Title)
	}
	if req.ClientName != nil {
		updates["client_name"] = trimmed(req.ClientName)
	}
	if req.ClientCompany != nil {
		updates["client_company"] = trimmed(req.ClientCompany)
	}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.Currency != nil && trimmed(req.Currency) != "" {
		updates["currency"] = strings.ToUpper(trimmed(req.Currency))
	}
	if req.ValidUntil != nil {
		validUntil, err := parseOptionalDate(req.ValidUntil)
		if err != nil || validUntil == nil {
			return badRequest(c, "Invalid valid until date")
		}
		updates["valid_until"] = *validUntil
	}
	if req.SentDate != nil {
		sentDate, err := parseOptionalDate(req.SentDate)
		if err != nil {
			return badRequest(c, "Invalid sent date")
		}
		updates["sent_date"] = sentDate
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		if *req.Status == model.ProposalSent && req.SentDate == nil && proposal.SentDate == nil {
			updates["sent_date"] = time.Now()
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if len(updates) > 0 {
		if err := dbFor(c).Model(&proposal).Updates(updates).Error; err != nil {
			log.Error("Failed to update proposal", zap.Uint("proposal_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update proposal"})
		}
	}

	if err := dbFor(c).First(&proposal, id).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to get proposal")
	}

	recordActivity(c, "proposal", "updated", id,
		fmt.Sprintf("Proposal %s is now %s", proposal.Title, proposal.Status), "proposal")
	return c.JSON(http.StatusOK, proposal)
}

// DeleteProposal removes a proposal
func DeleteProposal(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid proposal ID")
	}

	var proposal model.Proposal
	if err := dbFor(c).First(&proposal, id).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to get proposal")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := dbFor(c).Delete(&proposal).Error; err != nil {
		return dbError(c, err, "Proposal not found", "Failed to delete proposal")
	}

	recordActivity(c, "proposal", "deleted", id,
		fmt.Sprintf("Proposal %s deleted", proposal.Title), "proposal")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
