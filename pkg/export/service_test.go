package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pipeworks-za/backend/pkg/models"
)

type fakeLister struct {
	leads []models.Lead
}

func (f *fakeLister) AllLeads(context.Context) ([]models.Lead, error) {
	return f.leads, nil
}

func TestExportLeads(t *testing.T) {
	lister := &fakeLister{leads: []models.Lead{
		{
			ID:        "lead-1",
			Name:      "Peter Smith",
			Phone:     "+27821234567",
			Message:   "Burst pipe",
			Source:    models.SourceWebsiteChat,
			Status:    models.StatusNew,
			Urgency:   models.UrgencyEmergency,
			Priority:  10,
			CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:      "lead-2",
			Name:    "Anna Botha",
			Phone:   "+27829999999",
			Message: "Quote for geyser",
			Source:  models.SourceContactForm,
			Status:  models.StatusContacted,
			Urgency: models.UrgencyNormal,
		},
	}}

	svc := NewService(lister)
	data, filename, err := svc.ExportLeads(context.Background())
	require.NoError(t, err)
	assert.Contains(t, filename, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Peter Smith", rows[1][1])
	assert.Equal(t, "+27821234567", rows[1][2])
	assert.Equal(t, "EMERGENCY", rows[1][9])
	assert.Equal(t, "Anna Botha", rows[2][1])
}

func TestExportLeadsEmpty(t *testing.T) {
	svc := NewService(&fakeLister{})
	data, _, err := svc.ExportLeads(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
