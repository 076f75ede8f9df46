package followup

import (
	"context"
	"errors"
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

type fakeReminder struct {
	sent []string
	fail map[string]error
}

func (f *fakeReminder) FollowUpReminder(_ context.Context, lead *models.Lead) error {
	if err := f.fail[lead.ID]; err != nil {
		return err
	}
	f.sent = append(f.sent, lead.ID)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return store.NewStore(db)
}

func createLeadAgedHours(t *testing.T, st *store.Store, lead *models.Lead, hours int) {
	t.Helper()
	require.NoError(t, st.CreateLead(context.Background(), lead))
	require.NoError(t, st.DB().Model(lead).
		Update("created_at", time.Now().Add(-time.Duration(hours)*time.Hour)).Error)
}

func TestRunSendsRemindersForStaleLeads(t *testing.T) {
	st := newTestStore(t)
	reminder := &fakeReminder{fail: map[string]error{}}
	svc := NewService(st, reminder, nil)

	stale := &models.Lead{Name: "Peter", Phone: "+27821234567", Status: models.StatusNew}
	createLeadAgedHours(t, st, stale, 3)

	fresh := &models.Lead{Name: "Anna", Phone: "+27829999999", Status: models.StatusNew}
	require.NoError(t, st.CreateLead(context.Background(), fresh))

	anonymous := &models.Lead{Phone: models.PhoneUnknown, Status: models.StatusNew}
	createLeadAgedHours(t, st, anonymous, 3)

	contacted := &models.Lead{Name: "Jan", Phone: "+27825555555", Status: models.StatusContacted}
	createLeadAgedHours(t, st, contacted, 3)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Checked) // stale + anonymous
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, []string{stale.ID}, reminder.sent)

	got, err := st.GetLead(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.True(t, got.FollowUpSent)
	require.NotNil(t, got.FollowUpAt)
}

func TestRunTwiceSendsOnce(t *testing.T) {
	st := newTestStore(t)
	reminder := &fakeReminder{fail: map[string]error{}}
	svc := NewService(st, reminder, nil)

	stale := &models.Lead{Name: "Peter", Phone: "+27821234567", Status: models.StatusNew}
	createLeadAgedHours(t, st, stale, 3)

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, reminder.sent, 1)
}

func TestRunReleasesClaimOnSendFailure(t *testing.T) {
	st := newTestStore(t)
	stale := &models.Lead{Name: "Peter", Phone: "+27821234567", Status: models.StatusNew}
	createLeadAgedHours(t, st, stale, 3)

	reminder := &fakeReminder{fail: map[string]error{stale.ID: errors.New("telegram down")}}
	svc := NewService(st, reminder, nil)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.Sent)

	// Claim released, next run retries and succeeds
	reminder.fail = map[string]error{}
	result, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
}

func TestRunEmpty(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, &fakeReminder{}, nil)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Checked)
}
