package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pipeworks-za/backend/pkg/database"
	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	st := store.NewStore(db)
	return NewService(st), st
}

func TestTrackVisitAndInteraction(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.TrackVisit(ctx, "/", "sess-1"))
	require.NoError(t, svc.TrackVisit(ctx, "/services", "sess-2"))

	row, err := st.GetDailyStats(ctx, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 2, row.TotalVisits)
	assert.Equal(t, 2, row.BouncedVisits)

	// First interaction removes the bounce, the second is a no-op
	require.NoError(t, svc.TrackInteraction(ctx, "sess-1"))
	require.NoError(t, svc.TrackInteraction(ctx, "sess-1"))

	row, err = st.GetDailyStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, row.TotalVisits)
	assert.Equal(t, 1, row.BouncedVisits)
}

func TestTrackInteractionUnknownSession(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.TrackVisit(ctx, "/", "sess-1"))
	require.NoError(t, svc.TrackInteraction(ctx, "sess-unknown"))

	row, err := st.GetDailyStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, row.BouncedVisits)
}

func TestRecordLeadCreated(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordLeadCreated(ctx, &models.Lead{
		Source: models.SourceWebsiteChat, Urgency: models.UrgencyEmergency,
	}))
	require.NoError(t, svc.RecordLeadCreated(ctx, &models.Lead{
		Source: models.SourceContactForm, Urgency: models.UrgencyNormal,
	}))
	require.NoError(t, svc.RecordLeadCreated(ctx, &models.Lead{
		Source: models.SourceServicesQuote, Urgency: models.UrgencyNormal,
	}))

	row, err := st.GetDailyStats(ctx, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 3, row.TotalLeads)
	assert.Equal(t, 3, row.NewLeads)
	assert.Equal(t, 1, row.ChatLeads)
	assert.Equal(t, 2, row.FormLeads)
	assert.Equal(t, 1, row.EmergencyLeads)
}

func TestCalculateDailyStats(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// Live counters drifted: say two leads were double counted
	require.NoError(t, st.IncrementDailyStats(ctx, time.Now(), map[string]int{
		"total_visits": 10, "bounced_visits": 4, "total_leads": 6,
	}))

	leads := []*models.Lead{
		{Phone: "+27821111111", Source: models.SourceWebsiteChat, Status: models.StatusNew, Urgency: models.UrgencyEmergency},
		{Phone: "+27822222222", Source: models.SourceContactForm, Status: models.StatusContacted, Urgency: models.UrgencyNormal},
		{Phone: "+27823333333", Source: models.SourceWebsiteChat, Status: models.StatusConverted, Urgency: models.UrgencyNormal},
		{Phone: "+27824444444", Source: models.SourceWebsiteChat, Status: models.StatusConverted, Urgency: models.UrgencyNormal},
	}
	for _, l := range leads {
		require.NoError(t, st.CreateLead(ctx, l))
	}

	row, err := svc.CalculateDailyStats(ctx, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.Equal(t, 4, row.TotalLeads)
	assert.Equal(t, 1, row.NewLeads)
	assert.Equal(t, 1, row.ContactedLeads)
	assert.Equal(t, 2, row.ConvertedLeads)
	assert.Equal(t, 1, row.EmergencyLeads)
	assert.Equal(t, 3, row.ChatLeads)
	assert.Equal(t, 1, row.FormLeads)
	assert.InDelta(t, 50.0, row.ConversionRate, 0.001)

	// Visit counters stay as tracked
	assert.Equal(t, 10, row.TotalVisits)
	assert.Equal(t, 4, row.BouncedVisits)
}

func TestStatsForPeriod(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.IncrementDailyStats(ctx, time.Now(), map[string]int{
		"total_visits": 20, "total_leads": 4, "converted_leads": 1,
	}))
	require.NoError(t, st.RecordAIUsage(ctx, time.Now(), 500, 0.002))

	summary, err := svc.StatsForPeriod(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.TotalVisits)
	assert.Equal(t, 4, summary.TotalLeads)
	assert.Equal(t, 1, summary.ConvertedLeads)
	assert.InDelta(t, 25.0, summary.ConversionRate, 0.001)
	assert.Equal(t, 500, summary.AITokens)
	assert.InDelta(t, 0.002, summary.AICost, 0.00001)
}
