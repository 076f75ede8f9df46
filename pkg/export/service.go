// Package export renders leads to spreadsheets for the admin dashboard.
package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pipeworks-za/backend/pkg/models"
)

// LeadLister provides the leads to export
type LeadLister interface {
	AllLeads(ctx context.Context) ([]models.Lead, error)
}

// Service exports leads as xlsx workbooks
type Service struct {
	store LeadLister
}

// NewService creates a new export service
func NewService(store LeadLister) *Service {
	return &Service{store: store}
}

var headers = []string{
	"ID", "Name", "Phone", "Email", "Message", "Location", "Service",
	"Source", "Status", "Urgency", "Priority", "Created At",
}

// ExportLeads builds an xlsx workbook with one row per lead and
// returns it as bytes ready to stream to the client
func (s *Service) ExportLeads(ctx context.Context) ([]byte, string, error) {
	leads, err := s.store.AllLeads(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load leads: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leads"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", err
		}
	}

	for row, lead := range leads {
		values := []interface{}{
			lead.ID,
			lead.Name,
			lead.Phone,
			lead.Email,
			lead.Message,
			lead.Location,
			lead.ServiceType,
			string(lead.Source),
			string(lead.Status),
			string(lead.Urgency),
			lead.Priority,
			lead.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, "", err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, "", err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("leads-%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
