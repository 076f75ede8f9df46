// Package jobs schedules the recurring pipeline work. The same
// operations are also exposed as /api/cron endpoints for external
// schedulers.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pipeworks-za/backend/pkg/analytics"
	"github.com/pipeworks-za/backend/pkg/email"
	"github.com/pipeworks-za/backend/pkg/followup"
	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/store"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron      *cron.Cron
	followups *followup.Service
	analytics *analytics.Service
	email     *email.Service
	store     *store.Store
}

// NewCronManager creates a new cron manager
func NewCronManager(
	followups *followup.Service,
	an *analytics.Service,
	mailer *email.Service,
	st *store.Store,
) *CronManager {
	return &CronManager{
		cron:      cron.New(),
		followups: followups,
		analytics: an,
		email:     mailer,
		store:     st,
	}
}

// SetupJobs registers all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	// Follow-up scan every 15 minutes
	if _, err := cm.cron.AddFunc("*/15 * * * *", cm.runFollowUps); err != nil {
		return err
	}

	// Nightly stats recalculation for yesterday, plus the operator
	// summary email
	if _, err := cm.cron.AddFunc("0 1 * * *", cm.runDailyStats); err != nil {
		return err
	}

	log.Println("⏰ Cron jobs registered: follow-ups (*/15m), daily stats (01:00)")
	return nil
}

// Start begins the cron scheduler
func (cm *CronManager) Start() {
	cm.cron.Start()
	log.Println("✅ Cron scheduler started")
}

// Stop gracefully stops the cron scheduler
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Cron scheduler stopped")
}

func (cm *CronManager) runFollowUps() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := cm.followups.Run(ctx); err != nil {
		log.Printf("❌ Follow-up job failed: %v", err)
	}
}

func (cm *CronManager) runDailyStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	yesterday := time.Now().AddDate(0, 0, -1)
	stats, err := cm.analytics.CalculateDailyStats(ctx, yesterday)
	if err != nil {
		log.Printf("❌ Daily stats job failed: %v", err)
		return
	}

	if cm.email == nil {
		return
	}
	usage, err := cm.store.AIUsageBetween(ctx, yesterday, yesterday)
	if err != nil {
		log.Printf("⚠️  Could not load AI usage for summary: %v", err)
	}
	var usageRow *models.AIUsageStats
	if len(usage) > 0 {
		usageRow = &usage[0]
	}
	if err := cm.email.SendDailySummary(stats, usageRow); err != nil {
		log.Printf("⚠️  Daily summary email failed: %v", err)
	}
}
