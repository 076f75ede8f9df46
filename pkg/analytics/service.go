// Package analytics maintains the daily traffic and lead counters.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/store"
)

// Service updates and aggregates the daily counters
type Service struct {
	store *store.Store
}

// NewService creates a new analytics service
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// TrackVisit records a page visit. Every visit starts as a bounce until
// an interaction arrives for its session.
func (s *Service) TrackVisit(ctx context.Context, path, sessionID string) error {
	if err := s.store.CreateVisit(ctx, &models.Visit{
		Path:       path,
		SessionID:  sessionID,
		OccurredAt: time.Now(),
	}); err != nil {
		return err
	}

	return s.store.IncrementDailyStats(ctx, time.Now(), map[string]int{
		"total_visits":   1,
		"bounced_visits": 1,
	})
}

// TrackInteraction marks a session as engaged. The first interaction per
// session removes its bounce; repeats are no-ops.
func (s *Service) TrackInteraction(ctx context.Context, sessionID string) error {
	changed, err := s.store.MarkVisitInteraction(ctx, sessionID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	return s.store.IncrementDailyStats(ctx, time.Now(), map[string]int{
		"bounced_visits": -1,
	})
}

// RecordLeadCreated bumps today's lead counters for a fresh lead
func (s *Service) RecordLeadCreated(ctx context.Context, lead *models.Lead) error {
	deltas := map[string]int{
		"total_leads": 1,
		"new_leads":   1,
	}
	switch lead.Source {
	case models.SourceWebsiteChat:
		deltas["chat_leads"] = 1
	case models.SourceContactForm, models.SourceServicesQuote:
		deltas["form_leads"] = 1
	}
	if lead.Urgency == models.UrgencyEmergency {
		deltas["emergency_leads"] = 1
	}

	return s.store.IncrementDailyStats(ctx, time.Now(), deltas)
}

// RecordAIUsage accumulates today's LLM spend
func (s *Service) RecordAIUsage(ctx context.Context, tokens int, cost float64) error {
	return s.store.RecordAIUsage(ctx, time.Now(), tokens, cost)
}

// CalculateDailyStats recomputes the day's lead breakdown from the
// authoritative lead rows. Counters drift when increments race or a
// process dies mid-update; the recalculation makes the lead-derived
// fields exact while leaving the live visit counters alone.
func (s *Service) CalculateDailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	leads, err := s.store.LeadsCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads for %s: %w", start.Format("2006-01-02"), err)
	}

	stats := models.DailyStats{TotalLeads: len(leads)}
	for _, lead := range leads {
		switch lead.Status {
		case models.StatusNew:
			stats.NewLeads++
		case models.StatusContacted, models.StatusQuoted:
			stats.ContactedLeads++
		case models.StatusConverted:
			stats.ConvertedLeads++
		}
		switch lead.Source {
		case models.SourceWebsiteChat:
			stats.ChatLeads++
		case models.SourceContactForm, models.SourceServicesQuote:
			stats.FormLeads++
		}
		if lead.Urgency == models.UrgencyEmergency {
			stats.EmergencyLeads++
		}
	}
	if stats.TotalLeads > 0 {
		stats.ConversionRate = float64(stats.ConvertedLeads) / float64(stats.TotalLeads) * 100
	}

	if err := s.store.ReplaceDailyLeadBreakdown(ctx, day, stats); err != nil {
		return nil, fmt.Errorf("failed to save daily stats: %w", err)
	}

	row, err := s.store.GetDailyStats(ctx, day)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &stats, nil
	}

	log.Printf("📊 Daily stats for %s: %d leads, %.1f%% conversion",
		start.Format("2006-01-02"), row.TotalLeads, row.ConversionRate)
	return row, nil
}

// Summary is an aggregated view over a period of daily rows
type Summary struct {
	From           time.Time             `json:"from"`
	To             time.Time             `json:"to"`
	TotalVisits    int                   `json:"total_visits"`
	BouncedVisits  int                   `json:"bounced_visits"`
	TotalLeads     int                   `json:"total_leads"`
	ConvertedLeads int                   `json:"converted_leads"`
	EmergencyLeads int                   `json:"emergency_leads"`
	ConversionRate float64               `json:"conversion_rate"`
	Days           []models.DailyStats   `json:"days"`
	AIUsage        []models.AIUsageStats `json:"ai_usage"`
	AITokens       int                   `json:"ai_tokens"`
	AICost         float64               `json:"ai_cost"`
}

// StatsForPeriod aggregates the last n days of counters and AI usage
func (s *Service) StatsForPeriod(ctx context.Context, days int) (*Summary, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -(days - 1))

	rows, err := s.store.DailyStatsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	usage, err := s.store.AIUsageBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{From: from, To: to, Days: rows, AIUsage: usage}
	for _, row := range rows {
		summary.TotalVisits += row.TotalVisits
		summary.BouncedVisits += row.BouncedVisits
		summary.TotalLeads += row.TotalLeads
		summary.ConvertedLeads += row.ConvertedLeads
		summary.EmergencyLeads += row.EmergencyLeads
	}
	if summary.TotalLeads > 0 {
		summary.ConversionRate = float64(summary.ConvertedLeads) / float64(summary.TotalLeads) * 100
	}
	for _, row := range usage {
		summary.AITokens += row.TotalTokens
		summary.AICost += row.TotalCost
	}

	return summary, nil
}
