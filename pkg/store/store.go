// Package store is the persistence layer for leads, conversations and
// the daily analytics counters.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pipeworks-za/backend/pkg/models"
)

// Store wraps the database handle with lead-pipeline queries
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for admin-surface queries
func (s *Store) DB() *gorm.DB {
	return s.db
}

// --- Leads ---

// CreateLead persists a new lead
func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	return s.db.WithContext(ctx).Create(lead).Error
}

// FindLeadByPhoneWithinWindow returns the most recent lead with the given
// normalized phone created at or after since, or nil when none exists.
// The unknown-phone sentinel never matches.
func (s *Store) FindLeadByPhoneWithinWindow(ctx context.Context, phone string, since time.Time) (*models.Lead, error) {
	if phone == "" || phone == models.PhoneUnknown {
		return nil, nil
	}

	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("phone = ? AND created_at >= ?", phone, since).
		Order("created_at DESC").
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetLead loads a lead with its conversations and their messages
func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Preload("Conversations").
		Preload("Conversations.Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.created_at ASC")
		}).
		First(&lead, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// UpdateLeadFields applies a partial update to a lead
func (s *Store) UpdateLeadFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateLeadStatus moves a lead to a new lifecycle status
func (s *Store) UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LeadsCreatedBetween returns all leads created in [from, to)
func (s *Store) LeadsCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at DESC").
		Find(&leads).Error
	return leads, err
}

// RecentLeadsSince returns up to limit leads created at or after since,
// newest first, optionally filtered to NEW status.
func (s *Store) RecentLeadsSince(ctx context.Context, since time.Time, onlyNew bool, limit int) ([]models.Lead, error) {
	q := s.db.WithContext(ctx).Where("created_at >= ?", since)
	if onlyNew {
		q = q.Where("status = ?", models.StatusNew)
	}
	var leads []models.Lead
	err := q.Order("created_at DESC").Limit(limit).Find(&leads).Error
	return leads, err
}

// AllLeads returns every lead, newest first. Used by the admin export.
func (s *Store) AllLeads(ctx context.Context) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&leads).Error
	return leads, err
}

// --- Follow-ups ---

// FollowUpCandidates returns NEW leads created before cutoff whose
// follow-up flag is still unset.
func (s *Store) FollowUpCandidates(ctx context.Context, cutoff time.Time) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("status = ? AND follow_up_sent = ? AND created_at < ?",
			models.StatusNew, false, cutoff).
		Order("created_at ASC").
		Find(&leads).Error
	return leads, err
}

// ClaimFollowUp atomically sets the follow-up flag and reports whether
// this caller won the claim. A false return means another scanner run
// already claimed the lead.
func (s *Store) ClaimFollowUp(ctx context.Context, leadID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ? AND follow_up_sent = ?", leadID, false).
		Updates(map[string]interface{}{
			"follow_up_sent": true,
			"follow_up_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseFollowUp unsets the follow-up flag so a later run retries the lead
func (s *Store) ReleaseFollowUp(ctx context.Context, leadID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"follow_up_sent": false,
			"follow_up_at":   nil,
		}).Error
}

// --- Conversations and messages ---

// CreateConversation persists a new conversation thread
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

// GetConversation loads a conversation by id, or nil when absent
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindActiveConversation returns the lead's most recent active
// conversation, or nil when none is open
func (s *Store) FindActiveConversation(ctx context.Context, leadID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND is_active = ?", leadID, true).
		Order("created_at DESC").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessage stores a message and bumps the conversation counter
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("message_count", gorm.Expr("message_count + 1")).Error
	})
}

// ListMessages returns a conversation's messages oldest first
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

// --- Daily stats ---

// statsDate truncates to the calendar day so each day maps to one row
func statsDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IncrementDailyStats increment-or-creates the day's counter row.
// The deltas map uses column names; unknown days start from zeros.
func (s *Store) IncrementDailyStats(ctx context.Context, day time.Time, deltas map[string]int) error {
	row := models.DailyStats{Date: statsDate(day), UpdatedAt: time.Now()}
	assignments := map[string]interface{}{"updated_at": time.Now()}
	for col, delta := range deltas {
		switch col {
		case "total_visits":
			row.TotalVisits = delta
		case "bounced_visits":
			row.BouncedVisits = delta
		case "total_leads":
			row.TotalLeads = delta
		case "new_leads":
			row.NewLeads = delta
		case "contacted_leads":
			row.ContactedLeads = delta
		case "converted_leads":
			row.ConvertedLeads = delta
		case "emergency_leads":
			row.EmergencyLeads = delta
		case "chat_leads":
			row.ChatLeads = delta
		case "form_leads":
			row.FormLeads = delta
		}
		assignments[col] = gorm.Expr("daily_stats."+col+" + excluded."+col)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&row).Error
}

// ReplaceDailyLeadBreakdown overwrites the day's lead-derived fields with
// recalculated values while leaving the live visit counters untouched.
func (s *Store) ReplaceDailyLeadBreakdown(ctx context.Context, day time.Time, stats models.DailyStats) error {
	row := models.DailyStats{
		Date:           statsDate(day),
		TotalLeads:     stats.TotalLeads,
		NewLeads:       stats.NewLeads,
		ContactedLeads: stats.ContactedLeads,
		ConvertedLeads: stats.ConvertedLeads,
		EmergencyLeads: stats.EmergencyLeads,
		ChatLeads:      stats.ChatLeads,
		FormLeads:      stats.FormLeads,
		ConversionRate: stats.ConversionRate,
		UpdatedAt:      time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_leads", "new_leads", "contacted_leads", "converted_leads",
				"emergency_leads", "chat_leads", "form_leads", "conversion_rate",
				"updated_at",
			}),
		}).
		Create(&row).Error
}

// DailyStatsBetween returns counter rows for days in [from, to], oldest first
func (s *Store) DailyStatsBetween(ctx context.Context, from, to time.Time) ([]models.DailyStats, error) {
	var rows []models.DailyStats
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", statsDate(from), statsDate(to)).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}

// GetDailyStats returns the day's counter row, or nil when none exists
func (s *Store) GetDailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error) {
	var row models.DailyStats
	err := s.db.WithContext(ctx).First(&row, "date = ?", statsDate(day)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// --- AI usage ---

// RecordAIUsage increment-or-creates the day's LLM usage row
func (s *Store) RecordAIUsage(ctx context.Context, day time.Time, tokens int, cost float64) error {
	row := models.AIUsageStats{
		Date:         statsDate(day),
		TotalTokens:  tokens,
		TotalCost:    cost,
		RequestCount: 1,
		UpdatedAt:    time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_tokens":  gorm.Expr("ai_usage_stats.total_tokens + excluded.total_tokens"),
				"total_cost":    gorm.Expr("ai_usage_stats.total_cost + excluded.total_cost"),
				"request_count": gorm.Expr("ai_usage_stats.request_count + excluded.request_count"),
				"updated_at":    time.Now(),
			}),
		}).
		Create(&row).Error
}

// AIUsageBetween returns usage rows for days in [from, to], oldest first
func (s *Store) AIUsageBetween(ctx context.Context, from, to time.Time) ([]models.AIUsageStats, error) {
	var rows []models.AIUsageStats
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", statsDate(from), statsDate(to)).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}

// --- Visits ---

// CreateVisit records a page visit
func (s *Store) CreateVisit(ctx context.Context, visit *models.Visit) error {
	return s.db.WithContext(ctx).Create(visit).Error
}

// MarkVisitInteraction flips the session's visit to interacted and reports
// whether a row actually changed. Already-interacted sessions change nothing.
func (s *Store) MarkVisitInteraction(ctx context.Context, sessionID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Visit{}).
		Where("session_id = ? AND has_interaction = ?", sessionID, false).
		Update("has_interaction", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
