package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"qawafel-crm/internal/ai"
	"qawafel-crm/pkg/logger"
)

// GenerateMessage drafts a customer message with the configured AI model.
// Model failures are answered with a readable message rather than an error.
func GenerateMessage(svc *ai.MessageService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ai.MessageRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "Invalid request data")
		}
		req.UserType = strings.TrimSpace(req.UserType)
		req.MessageType = strings.TrimSpace(req.MessageType)
		req.Channel = strings.TrimSpace(req.Channel)
		req.CustomPrompt = strings.TrimSpace(req.CustomPrompt)
		if req.UserType == "" || req.MessageType == "" || req.Channel == "" {
			return badRequest(c, "User type, message type and channel are required")
		}

		ctx := logger.RequestContext(c)
		message, err := svc.Generate(ctx, req)
		if errors.Is(err, ai.ErrUnknownChannel) {
			return badRequest(c, "Unknown channel")
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": ai.FailedMessage})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": message})
	}
}
