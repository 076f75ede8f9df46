// Package followup scans for leads that went stale in NEW and nudges
// the operator about them.
package followup

import (
	"context"
	"log"
	"time"

	"github.com/pipeworks-za/backend/pkg/metrics"
	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/store"
)

// Delay is how long a lead may sit in NEW before a reminder fires
const Delay = 2 * time.Hour

// Reminder delivers the follow-up nudge for one lead
type Reminder interface {
	FollowUpReminder(ctx context.Context, lead *models.Lead) error
}

// Service runs the follow-up scan
type Service struct {
	store    *store.Store
	reminder Reminder
	metrics  *metrics.Metrics
}

// NewService creates a new follow-up service
func NewService(st *store.Store, reminder Reminder, m *metrics.Metrics) *Service {
	return &Service{store: st, reminder: reminder, metrics: m}
}

// Result summarizes one scanner run
type Result struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Run scans once. Each lead is claimed before its reminder goes out so
// overlapping runs never double-send; a failed send releases the claim
// for the next run. Per-lead failures never abort the scan.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	cutoff := time.Now().Add(-Delay)
	candidates, err := s.store.FollowUpCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range candidates {
		lead := &candidates[i]
		result.Checked++

		if !lead.HasContactInfo() {
			result.Skipped++
			continue
		}

		won, err := s.store.ClaimFollowUp(ctx, lead.ID, time.Now())
		if err != nil {
			log.Printf("❌ Follow-up claim failed for lead %s: %v", lead.ID, err)
			result.Errors++
			continue
		}
		if !won {
			result.Skipped++
			continue
		}

		if err := s.reminder.FollowUpReminder(ctx, lead); err != nil {
			log.Printf("❌ Follow-up reminder failed for lead %s: %v", lead.ID, err)
			if relErr := s.store.ReleaseFollowUp(ctx, lead.ID); relErr != nil {
				log.Printf("⚠️  Failed to release follow-up claim for lead %s: %v", lead.ID, relErr)
			}
			result.Errors++
			continue
		}

		result.Sent++
		if s.metrics != nil {
			s.metrics.RecordFollowUp()
		}
	}

	if result.Checked > 0 {
		log.Printf("⏰ Follow-up scan: %d checked, %d sent, %d skipped, %d errors",
			result.Checked, result.Sent, result.Skipped, result.Errors)
	}
	return result, nil
}
