package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/telegram"
)

// TelegramHandler ingests bot webhook updates
type TelegramHandler struct {
	telegramService *telegram.Service
	webhookSecret   string
}

// NewTelegramHandler creates a new telegram handler
func NewTelegramHandler(telegramService *telegram.Service, webhookSecret string) *TelegramHandler {
	return &TelegramHandler{
		telegramService: telegramService,
		webhookSecret:   webhookSecret,
	}
}

// Webhook handles a Telegram update. Telegram only looks at the status
// code; errors are logged and answered 200 so updates are not redelivered
// forever.
// POST /api/telegram/webhook
func (h *TelegramHandler) Webhook(c echo.Context) error {
	if h.webhookSecret != "" {
		token := c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookSecret)) != 1 {
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var update telegram.Update
	if err := c.Bind(&update); err != nil {
		log.Printf("⚠️  Malformed telegram update: %v", err)
		return c.NoContent(http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.telegramService.HandleUpdate(ctx, &update); err != nil {
		log.Printf("❌ Telegram update failed: %v", err)
	}

	return c.NoContent(http.StatusOK)
}
