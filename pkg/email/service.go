// Package email sends the operator's daily summary through SendGrid.
package email

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/pipeworks-za/backend/pkg/models"
)

// Service sends operator emails
type Service struct {
	client       *sendgrid.Client
	from         string
	operatorAddr string
	businessName string
	enabled      bool
}

// NewService creates a new email service. Without an API key or an
// operator address the service stays disabled and sends nothing.
func NewService(apiKey, from, operatorAddr, businessName string) *Service {
	return &Service{
		client:       sendgrid.NewSendClient(apiKey),
		from:         from,
		operatorAddr: operatorAddr,
		businessName: businessName,
		enabled:      apiKey != "" && operatorAddr != "",
	}
}

// SendDailySummary emails yesterday's numbers to the operator
func (s *Service) SendDailySummary(stats *models.DailyStats, usage *models.AIUsageStats) error {
	if !s.enabled {
		log.Println("📧 Email disabled, skipping daily summary")
		return nil
	}

	subject := fmt.Sprintf("%s - Daily summary for %s",
		s.businessName, stats.Date.Format("Mon 2 Jan 2006"))

	body := fmt.Sprintf(
		"Daily summary for %s\n\n"+
			"Visits: %d (bounced: %d)\n"+
			"Leads: %d (new: %d, contacted: %d, converted: %d)\n"+
			"Emergencies: %d\n"+
			"Conversion rate: %.1f%%\n",
		stats.Date.Format("2006-01-02"),
		stats.TotalVisits, stats.BouncedVisits,
		stats.TotalLeads, stats.NewLeads, stats.ContactedLeads, stats.ConvertedLeads,
		stats.EmergencyLeads,
		stats.ConversionRate)

	if usage != nil {
		body += fmt.Sprintf("\nAI usage: %d tokens across %d requests ($%.4f)\n",
			usage.TotalTokens, usage.RequestCount, usage.TotalCost)
	}

	from := mail.NewEmail(s.businessName, s.from)
	to := mail.NewEmail("Operator", s.operatorAddr)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send daily summary: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected daily summary: status %d", resp.StatusCode)
	}

	log.Printf("📧 Daily summary sent to %s", s.operatorAddr)
	return nil
}
