package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/analytics"
	"github.com/pipeworks-za/backend/pkg/api/errors"
	"github.com/pipeworks-za/backend/pkg/followup"
)

// CronHandler exposes the scheduled operations to external schedulers
type CronHandler struct {
	followupService  *followup.Service
	analyticsService *analytics.Service
}

// NewCronHandler creates a new cron handler
func NewCronHandler(followupService *followup.Service, analyticsService *analytics.Service) *CronHandler {
	return &CronHandler{
		followupService:  followupService,
		analyticsService: analyticsService,
	}
}

// FollowUps runs one follow-up scan
// GET /api/cron/follow-ups
func (h *CronHandler) FollowUps(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	result, err := h.followupService.Run(ctx)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// CalculateStats recomputes the lead breakdown. ?date=YYYY-MM-DD picks
// the day; the default is yesterday.
// GET /api/cron/calculate-stats
func (h *CronHandler) CalculateStats(c echo.Context) error {
	day := time.Now().AddDate(0, 0, -1)
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return errors.ValidationErrorWithMessage(c, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Minute)
	defer cancel()

	stats, err := h.analyticsService.CalculateDailyStats(ctx, day)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, stats)
}
