package store

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
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps the in-memory database alive for the test
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return NewStore(db)
}

func TestFindLeadByPhoneWithinWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &models.Lead{Phone: "+27821234567", Message: "old", Source: models.SourceWebsiteChat}
	require.NoError(t, s.CreateLead(ctx, old))
	require.NoError(t, s.DB().Model(old).Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	recent := &models.Lead{Phone: "+27821234567", Message: "recent", Source: models.SourceContactForm}
	require.NoError(t, s.CreateLead(ctx, recent))

	found, err := s.FindLeadByPhoneWithinWindow(ctx, "+27821234567", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, recent.ID, found.ID)

	none, err := s.FindLeadByPhoneWithinWindow(ctx, "+27829999999", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindLeadByPhoneWithinWindowIgnoresSentinel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLead(ctx, &models.Lead{Phone: models.PhoneUnknown, Message: "anon"}))

	found, err := s.FindLeadByPhoneWithinWindow(ctx, models.PhoneUnknown, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestClaimFollowUpOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := &models.Lead{Phone: "+27821234567", Name: "Peter", Status: models.StatusNew}
	require.NoError(t, s.CreateLead(ctx, lead))

	now := time.Now()
	won, err := s.ClaimFollowUp(ctx, lead.ID, now)
	require.NoError(t, err)
	assert.True(t, won)

	again, err := s.ClaimFollowUp(ctx, lead.ID, now)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.ReleaseFollowUp(ctx, lead.ID))
	third, err := s.ClaimFollowUp(ctx, lead.ID, now)
	require.NoError(t, err)
	assert.True(t, third)
}

func TestFollowUpCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := &models.Lead{Phone: "+27821234567", Name: "Peter", Status: models.StatusNew}
	require.NoError(t, s.CreateLead(ctx, stale))
	require.NoError(t, s.DB().Model(stale).Update("created_at", time.Now().Add(-3*time.Hour)).Error)

	fresh := &models.Lead{Phone: "+27829999999", Name: "Anna", Status: models.StatusNew}
	require.NoError(t, s.CreateLead(ctx, fresh))

	contacted := &models.Lead{Phone: "+27825555555", Name: "Jan", Status: models.StatusContacted}
	require.NoError(t, s.CreateLead(ctx, contacted))
	require.NoError(t, s.DB().Model(contacted).Update("created_at", time.Now().Add(-3*time.Hour)).Error)

	candidates, err := s.FollowUpCandidates(ctx, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, stale.ID, candidates[0].ID)
}

func TestFindActiveConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := &models.Lead{Name: "Anna", Phone: "+27829998877"}
	require.NoError(t, s.CreateLead(ctx, lead))

	conv, err := s.FindActiveConversation(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, conv)

	closed := &models.Conversation{LeadID: lead.ID, IsActive: false}
	require.NoError(t, s.CreateConversation(ctx, closed))

	open := &models.Conversation{LeadID: lead.ID, IsActive: true}
	require.NoError(t, s.CreateConversation(ctx, open))

	conv, err = s.FindActiveConversation(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, open.ID, conv.ID)
}

func TestAppendMessageBumpsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := &models.Lead{Phone: models.PhoneUnknown}
	require.NoError(t, s.CreateLead(ctx, lead))

	conv := &models.Conversation{LeadID: lead.ID, IsActive: true}
	require.NoError(t, s.CreateConversation(ctx, conv))

	require.NoError(t, s.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID, Role: models.RoleUser, Content: "hi",
	}))
	require.NoError(t, s.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID, Role: models.RoleAssistant, Content: "hello",
	}))

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.MessageCount)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestIncrementDailyStatsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Now()

	require.NoError(t, s.IncrementDailyStats(ctx, day, map[string]int{
		"total_visits": 1, "bounced_visits": 1,
	}))
	require.NoError(t, s.IncrementDailyStats(ctx, day, map[string]int{
		"total_visits": 1, "bounced_visits": 1,
	}))
	require.NoError(t, s.IncrementDailyStats(ctx, day, map[string]int{
		"bounced_visits": -1,
	}))

	row, err := s.GetDailyStats(ctx, day)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 2, row.TotalVisits)
	assert.Equal(t, 1, row.BouncedVisits)
}

func TestReplaceDailyLeadBreakdownKeepsVisits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Now()

	require.NoError(t, s.IncrementDailyStats(ctx, day, map[string]int{
		"total_visits": 5, "bounced_visits": 2,
	}))

	require.NoError(t, s.ReplaceDailyLeadBreakdown(ctx, day, models.DailyStats{
		TotalLeads:     4,
		NewLeads:       1,
		ContactedLeads: 2,
		ConvertedLeads: 1,
		ChatLeads:      3,
		FormLeads:      1,
		ConversionRate: 25,
	}))

	row, err := s.GetDailyStats(ctx, day)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 5, row.TotalVisits)
	assert.Equal(t, 2, row.BouncedVisits)
	assert.Equal(t, 4, row.TotalLeads)
	assert.Equal(t, 1, row.ConvertedLeads)
	assert.InDelta(t, 25.0, row.ConversionRate, 0.001)
}

func TestRecordAIUsageAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Now()

	require.NoError(t, s.RecordAIUsage(ctx, day, 100, 0.0005))
	require.NoError(t, s.RecordAIUsage(ctx, day, 250, 0.0012))

	rows, err := s.AIUsageBetween(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 350, rows[0].TotalTokens)
	assert.Equal(t, 2, rows[0].RequestCount)
	assert.InDelta(t, 0.0017, rows[0].TotalCost, 0.00001)
}

func TestMarkVisitInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateVisit(ctx, &models.Visit{
		Path: "/services", SessionID: "sess-1", OccurredAt: time.Now(),
	}))

	changed, err := s.MarkVisitInteraction(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, changed)

	again, err := s.MarkVisitInteraction(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, again)

	missing, err := s.MarkVisitInteraction(ctx, "sess-404")
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestUpdateLeadStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := &models.Lead{Phone: "+27821234567", Name: "Peter"}
	require.NoError(t, s.CreateLead(ctx, lead))

	require.NoError(t, s.UpdateLeadStatus(ctx, lead.ID, models.StatusContacted))

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusContacted, got.Status)

	err = s.UpdateLeadStatus(ctx, "no-such-id", models.StatusLost)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
