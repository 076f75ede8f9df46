package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/api/errors"
	"github.com/pipeworks-za/backend/pkg/domain"
	"github.com/pipeworks-za/backend/pkg/intake"
)

// ChatHandler handles the website chat endpoint
type ChatHandler struct {
	intakeService *intake.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(intakeService *intake.Service) *ChatHandler {
	return &ChatHandler{
		intakeService: intakeService,
	}
}

// Chat handles one visitor message
// POST /api/chat
func (h *ChatHandler) Chat(c echo.Context) error {
	var req intake.ChatRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	// Completion round-trips are slow; give the turn room to finish
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	resp, err := h.intakeService.Chat(ctx, req)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			return errors.ValidationError(c, err)
		case domain.IsNotFound(err):
			return errors.NotFoundError(c, "conversation")
		case domain.IsUpstreamUnavailable(err):
			return errors.UnavailableError(c, err)
		default:
			return errors.InternalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}
