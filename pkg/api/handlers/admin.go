package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/analytics"
	"github.com/pipeworks-za/backend/pkg/api/errors"
	"github.com/pipeworks-za/backend/pkg/export"
	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/store"
)

// AdminHandler serves the operator dashboard API
type AdminHandler struct {
	store            *store.Store
	analyticsService *analytics.Service
	exportService    *export.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(st *store.Store, analyticsService *analytics.Service, exportService *export.Service) *AdminHandler {
	return &AdminHandler{
		store:            st,
		analyticsService: analyticsService,
		exportService:    exportService,
	}
}

// Stats returns the aggregated counters for the last n days (default 30)
// GET /api/admin/stats
func (h *AdminHandler) Stats(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 && d <= 365 {
			days = d
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	summary, err := h.analyticsService.StatsForPeriod(ctx, days)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// ExportLeads streams all leads as an xlsx workbook
// GET /api/admin/leads/export
func (h *AdminHandler) ExportLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	data, filename, err := h.exportService.ExportLeads(ctx)
	if err != nil {
		return errors.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

type updateStatusRequest struct {
	Status models.LeadStatus `json:"status"`
}

// UpdateLeadStatus moves a lead along its lifecycle
// PATCH /api/admin/leads/:id/status
func (h *AdminHandler) UpdateLeadStatus(c echo.Context) error {
	id := c.Param("id")

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	lead, err := h.store.GetLead(ctx, id)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	if lead == nil {
		return errors.NotFoundError(c, "lead")
	}

	if !models.CanTransition(lead.Status, req.Status) {
		return errors.ValidationErrorWithMessage(c,
			"Cannot move lead from "+string(lead.Status)+" to "+string(req.Status))
	}

	if err := h.store.UpdateLeadStatus(ctx, id, req.Status); err != nil {
		return errors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": req.Status,
	})
}
