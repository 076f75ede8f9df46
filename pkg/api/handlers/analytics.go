package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/analytics"
)

// AnalyticsHandler handles the public tracking endpoints. Both always
// answer success shaped; tracking must never break the website.
type AnalyticsHandler struct {
	analyticsService *analytics.Service
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

type trackVisitRequest struct {
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
}

type trackInteractionRequest struct {
	SessionID string `json:"sessionId"`
}

// TrackVisit records a page visit
// POST /api/analytics/track-visit
func (h *AnalyticsHandler) TrackVisit(c echo.Context) error {
	var req trackVisitRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
	if req.Path == "" {
		req.Path = "/"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.analyticsService.TrackVisit(ctx, req.Path, req.SessionID); err != nil {
		log.Printf("⚠️  Track visit failed: %v", err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TrackInteraction marks a session as engaged
// POST /api/analytics/track-interaction
func (h *AnalyticsHandler) TrackInteraction(c echo.Context) error {
	var req trackInteractionRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.analyticsService.TrackInteraction(ctx, req.SessionID); err != nil {
		log.Printf("⚠️  Track interaction failed: %v", err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
