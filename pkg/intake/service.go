// Package intake is the front door of the lead pipeline: the website
// chat and the contact form both land here, get their signals
// extracted, deduplicate against recent leads and fan out to the
// operator notification.
package intake

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pipeworks-za/backend/pkg/ai/llm"
	"github.com/pipeworks-za/backend/pkg/analytics"
	"github.com/pipeworks-za/backend/pkg/domain"
	"github.com/pipeworks-za/backend/pkg/metrics"
	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/phone"
	"github.com/pipeworks-za/backend/pkg/store"
	"github.com/pipeworks-za/backend/pkg/textsignal"
)

const (
	// MaxMessages caps a chat conversation; past it the visitor is
	// pointed at the phone line
	MaxMessages = 15

	// DedupWindow is how far back a phone number is considered the
	// same inquiry
	DedupWindow = time.Hour

	claimPrefix = "lead_claim:"
)

// DuplicateMessage is returned to form submitters whose number already
// has a recent lead
const DuplicateMessage = "We already have your request! David will contact you soon."

const showFormReply = "I'd be happy to connect you with David from our team! Please fill out the contact form below and he'll get back to you as soon as possible."

// Notifier delivers the operator notification for a qualifying lead
type Notifier interface {
	NotifyLead(ctx context.Context, lead *models.Lead, photo []byte, photoName string) error
}

// Claimer is the distributed claim used to narrow the dedup insert race
type Claimer interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, key string) error
}

// Uploader stores form attachments
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// Config carries the business identity the intake surfaces reference
type Config struct {
	BusinessName  string
	ServiceArea   string
	BusinessPhone string
}

// Service handles chat and form lead intake
type Service struct {
	store     *store.Store
	claims    Claimer
	completer llm.Completer
	notifier  Notifier
	uploader  Uploader
	analytics *analytics.Service
	metrics   *metrics.Metrics
	cfg       Config
	validate  *validator.Validate
}

// NewService creates a new intake service. The claimer, completer,
// notifier, uploader and metrics may be nil; the corresponding step is
// then skipped or degraded.
func NewService(
	st *store.Store,
	claims Claimer,
	completer llm.Completer,
	notifier Notifier,
	uploader Uploader,
	an *analytics.Service,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	return &Service{
		store:     st,
		claims:    claims,
		completer: completer,
		notifier:  notifier,
		uploader:  uploader,
		analytics: an,
		metrics:   m,
		cfg:       cfg,
		validate:  validator.New(),
	}
}

// --- Chat ---

// ChatRequest is one visitor turn in the website chat
type ChatRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversationId"`
	MessageCount   int    `json:"messageCount"`
}

// ChatResponse is the assistant turn returned to the widget
type ChatResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	LeadCreated    bool   `json:"leadCreated"`
	MessageCount   int    `json:"messageCount"`
	ShowForm       bool   `json:"showForm"`
}

// Chat handles one visitor message: persists it, runs the assistant,
// extracts contact signals and notifies the operator the moment the
// lead qualifies.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	text := textsignal.SanitizeText(req.Message)
	if text == "" {
		return nil, domain.NewValidationError("Message is required")
	}

	if req.MessageCount >= MaxMessages {
		return &ChatResponse{
			Message: fmt.Sprintf(
				"You've reached the chat limit. Please call us directly at %s and we'll help you right away.",
				s.cfg.BusinessPhone),
			ConversationID: req.ConversationID,
			MessageCount:   req.MessageCount,
		}, nil
	}

	conv, lead, leadCreated, err := s.resolveConversation(ctx, req.ConversationID, text)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        text,
	}); err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	if s.metrics != nil {
		s.metrics.RecordChatTurn()
	}

	resp := &ChatResponse{
		ConversationID: conv.ID,
		LeadCreated:    leadCreated,
		MessageCount:   req.MessageCount + 1,
	}

	// Handoff intent skips the assistant entirely
	if textsignal.WantsHuman(text) {
		if err := s.store.AppendMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleAssistant,
			Content:        showFormReply,
		}); err != nil {
			return nil, domain.NewPersistenceError(err)
		}
		s.enrichLead(ctx, lead, text, "")
		resp.Message = showFormReply
		resp.ShowForm = true
		return resp, nil
	}

	reply, tokens, cost := s.completeReply(ctx, conv.ID)
	if err := s.store.AppendMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        reply,
		Tokens:         tokens,
		Cost:           cost,
	}); err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	s.enrichLead(ctx, lead, text, reply)
	resp.Message = reply
	return resp, nil
}

// resolveConversation loads the thread for a returning visitor. A first
// message runs extraction and dedup up front: a phone we saw within the
// window reattaches to its recent lead, anything else creates a fresh
// lead-plus-conversation pair.
func (s *Service) resolveConversation(ctx context.Context, conversationID, firstText string) (*models.Conversation, *models.Lead, bool, error) {
	if conversationID != "" {
		conv, err := s.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, nil, false, domain.NewPersistenceError(err)
		}
		if conv != nil {
			lead, err := s.store.GetLead(ctx, conv.LeadID)
			if err != nil {
				return nil, nil, false, domain.NewPersistenceError(err)
			}
			if lead == nil {
				return nil, nil, false, domain.NewNotFoundError("lead")
			}
			return conv, lead, false, nil
		}
		// Unknown id, fall through and start fresh
	}

	normalized := ""
	if raw := textsignal.ExtractPhone(firstText); raw != "" {
		if n := phone.Normalize(raw); n != "" && phone.IsValid(n) {
			normalized = n
		}
	}

	if normalized != "" {
		conv, lead, reused, err := s.reuseRecentLead(ctx, normalized)
		if err != nil {
			return nil, nil, false, err
		}
		if reused {
			return conv, lead, false, nil
		}

		if s.claims != nil {
			won, err := s.claims.ClaimOnce(ctx, claimPrefix+normalized, DedupWindow)
			if err != nil {
				log.Printf("⚠️  Dedup claim failed: %v", err)
			} else if !won {
				// A concurrent submission holds the number; its row may
				// be visible by now
				conv, lead, reused, err := s.reuseRecentLead(ctx, normalized)
				if err != nil {
					return nil, nil, false, err
				}
				if reused {
					return conv, lead, false, nil
				}
				// Not yet written; keep this session anonymous
				normalized = ""
			}
		}
	}

	lead := s.buildChatLead(firstText, normalized)
	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, nil, false, domain.NewPersistenceError(err)
	}

	conv := &models.Conversation{LeadID: lead.ID, IsActive: true}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, false, domain.NewPersistenceError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordLeadCreated(string(lead.Source))
	}
	if err := s.analytics.RecordLeadCreated(ctx, lead); err != nil {
		log.Printf("⚠️  Failed to record lead analytics: %v", err)
	}

	if lead.Status == models.StatusNew && lead.HasContactInfo() {
		s.notify(ctx, lead, nil, "")
	}

	return conv, lead, true, nil
}

// reuseRecentLead looks up the dedup window for a lead already owning
// the number and, on a hit, hands back its open conversation. A lead
// whose thread was closed gets a fresh one.
func (s *Service) reuseRecentLead(ctx context.Context, normalized string) (*models.Conversation, *models.Lead, bool, error) {
	existing, err := s.store.FindLeadByPhoneWithinWindow(ctx, normalized, time.Now().Add(-DedupWindow))
	if err != nil {
		return nil, nil, false, domain.NewPersistenceError(err)
	}
	if existing == nil {
		return nil, nil, false, nil
	}

	log.Printf("♻️  Reusing recent lead %s for phone %s", existing.ID, normalized)
	if s.metrics != nil {
		s.metrics.RecordDuplicateMerged()
	}

	conv, err := s.store.FindActiveConversation(ctx, existing.ID)
	if err != nil {
		return nil, nil, false, domain.NewPersistenceError(err)
	}
	if conv == nil {
		conv = &models.Conversation{LeadID: existing.ID, IsActive: true}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return nil, nil, false, domain.NewPersistenceError(err)
		}
	}
	return conv, existing, true, nil
}

// buildChatLead assembles a new lead from first-message signals and
// classifies the service area at creation time
func (s *Service) buildChatLead(firstText, normalized string) *models.Lead {
	urgency := textsignal.DetectUrgency(firstText)
	lead := &models.Lead{
		Name:     textsignal.ExtractName(firstText),
		Phone:    models.PhoneUnknown,
		Email:    textsignal.ExtractEmail(firstText),
		Message:  firstText,
		Source:   models.SourceWebsiteChat,
		Status:   models.StatusNew,
		Urgency:  urgency,
		Priority: models.UrgencyPriority(urgency),
	}
	if normalized != "" {
		lead.Phone = normalized
	}

	lower := strings.ToLower(firstText)
	if strings.Contains(lower, "location") || strings.Contains(lower, "area") {
		lead.Location = firstText
	}

	if textsignal.IsOutOfServiceArea(firstText, s.cfg.ServiceArea) {
		lead.Status = models.StatusOutOfArea
		lead.Notes = fmt.Sprintf("Customer is outside service area (%s only)", s.cfg.ServiceArea)
	}
	return lead
}

// completeReply runs the assistant over the conversation so far.
// Backend trouble degrades to the fixed apology.
func (s *Service) completeReply(ctx context.Context, conversationID string) (string, int, float64) {
	fallback := llm.FallbackReply(s.cfg.BusinessPhone)
	if s.completer == nil {
		return fallback, 0, 0
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		log.Printf("⚠️  Failed to load chat history: %v", err)
		return fallback, 0, 0
	}

	history := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		history = append(history, llm.ChatMessage{Role: role, Content: m.Content})
	}

	system := llm.SystemPrompt(s.cfg.BusinessName, s.cfg.ServiceArea, s.cfg.BusinessPhone)
	comp, err := s.completer.Complete(ctx, system, history)
	if err != nil {
		log.Printf("❌ Completion failed: %v", err)
		if s.metrics != nil {
			s.metrics.RecordLLMUsage(false, 0, 0)
		}
		return fallback, 0, 0
	}

	if s.metrics != nil {
		s.metrics.RecordLLMUsage(true, comp.TotalTokens, comp.Cost)
	}
	if err := s.analytics.RecordAIUsage(ctx, comp.TotalTokens, comp.Cost); err != nil {
		log.Printf("⚠️  Failed to record AI usage: %v", err)
	}

	return comp.Message, comp.TotalTokens, comp.Cost
}

// enrichLead folds freshly extracted signals into a NEW lead and fires
// the operator notification the moment both phone and name are known
func (s *Service) enrichLead(ctx context.Context, lead *models.Lead, userText, assistantReply string) {
	if lead == nil || lead.Status != models.StatusNew {
		return
	}

	updates := map[string]interface{}{}
	qualifiedBefore := lead.HasContactInfo()

	if lead.Phone == models.PhoneUnknown {
		if raw := textsignal.ExtractPhone(userText); raw != "" {
			if normalized := phone.Normalize(raw); normalized != "" && phone.IsValid(normalized) {
				s.adoptPhone(ctx, lead, normalized, updates)
			}
		}
	}

	if lead.Email == "" {
		if email := textsignal.ExtractEmail(userText); email != "" {
			updates["email"] = email
			lead.Email = email
		}
	}

	if lead.Name == "" {
		if name := textsignal.ExtractName(userText); name != "" {
			updates["name"] = name
			lead.Name = name
		}
	}

	urgency := textsignal.DetectUrgency(userText)
	if priority := models.UrgencyPriority(urgency); priority > lead.Priority {
		updates["urgency"] = urgency
		updates["priority"] = priority
		lead.Urgency = urgency
		lead.Priority = priority
	}

	if assistantConfirmsOutOfArea(assistantReply) {
		updates["status"] = models.StatusOutOfArea
		updates["notes"] = "Customer confirmed to be outside service area"
		lead.Status = models.StatusOutOfArea
		lead.Notes = "Customer confirmed to be outside service area"
	}

	if len(updates) > 0 {
		if err := s.store.UpdateLeadFields(ctx, lead.ID, updates); err != nil {
			log.Printf("⚠️  Failed to enrich lead %s: %v", lead.ID, err)
			return
		}
	}

	if !qualifiedBefore && lead.HasContactInfo() && lead.Status == models.StatusNew {
		s.notify(ctx, lead, nil, "")
	}
}

// adoptPhone runs the dedup check before a chat lead takes a phone
// number. An existing recent lead with the number means this chat is
// the same inquiry; the current lead is left anonymous.
func (s *Service) adoptPhone(ctx context.Context, lead *models.Lead, normalized string, updates map[string]interface{}) {
	existing, err := s.store.FindLeadByPhoneWithinWindow(ctx, normalized, time.Now().Add(-DedupWindow))
	if err != nil {
		log.Printf("⚠️  Dedup lookup failed: %v", err)
		return
	}
	if existing != nil && existing.ID != lead.ID {
		log.Printf("♻️  Phone %s already belongs to recent lead %s", normalized, existing.ID)
		if s.metrics != nil {
			s.metrics.RecordDuplicateMerged()
		}
		return
	}

	if s.claims != nil {
		won, err := s.claims.ClaimOnce(ctx, claimPrefix+normalized, DedupWindow)
		if err != nil {
			log.Printf("⚠️  Dedup claim failed: %v", err)
		} else if !won {
			if s.metrics != nil {
				s.metrics.RecordDuplicateMerged()
			}
			return
		}
	}

	updates["phone"] = normalized
	lead.Phone = normalized
}

func assistantConfirmsOutOfArea(reply string) bool {
	if reply == "" {
		return false
	}
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "outside") ||
		strings.Contains(lower, "not in our service area")
}

// --- Contact form ---

// FormRequest is a contact or quote form submission
type FormRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Message     string `json:"message" validate:"required,min=5,max=2000"`
	Location    string `json:"location" validate:"max=200"`
	ServiceType string `json:"serviceType" validate:"max=100"`
	Source      string `json:"source"`

	Attachment     []byte `json:"-"`
	AttachmentName string `json:"-"`
	AttachmentType string `json:"-"`
}

// SubmitForm validates and persists a form submission, deduplicates by
// phone and notifies the operator. A recent lead with the same number
// returns a duplicate error instead of a second lead.
func (s *Service) SubmitForm(ctx context.Context, req FormRequest) (*models.Lead, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidationError("Invalid form data")
	}

	normalized := phone.Normalize(req.Phone)
	if normalized == "" || !phone.IsValid(normalized) {
		return nil, domain.NewValidationError("Please provide a valid South African phone number")
	}

	existing, err := s.store.FindLeadByPhoneWithinWindow(ctx, normalized, time.Now().Add(-DedupWindow))
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}
	if existing != nil {
		if s.metrics != nil {
			s.metrics.RecordDuplicateMerged()
		}
		return nil, domain.NewDuplicateError(DuplicateMessage)
	}

	claimed := false
	if s.claims != nil {
		won, err := s.claims.ClaimOnce(ctx, claimPrefix+normalized, DedupWindow)
		if err != nil {
			log.Printf("⚠️  Dedup claim failed: %v", err)
		} else if !won {
			if s.metrics != nil {
				s.metrics.RecordDuplicateMerged()
			}
			return nil, domain.NewDuplicateError(DuplicateMessage)
		} else {
			claimed = true
		}
	}

	message := textsignal.SanitizeText(req.Message)
	urgency := textsignal.DetectUrgency(message)

	status := models.StatusNew
	notes := "Customer submitted via contact form"
	if textsignal.IsOutOfServiceArea(message, s.cfg.ServiceArea) {
		status = models.StatusOutOfArea
		notes = "Customer submitted via contact form - outside service area"
	}

	lead := &models.Lead{
		Name:        textsignal.SanitizeText(req.Name),
		Phone:       normalized,
		Email:       strings.TrimSpace(req.Email),
		Message:     message,
		Location:    textsignal.SanitizeText(req.Location),
		ServiceType: textsignal.SanitizeText(req.ServiceType),
		Source:      formSource(req.Source),
		Status:      status,
		Urgency:     urgency,
		Priority:    models.UrgencyPriority(urgency),
		Notes:       notes,
	}

	if len(req.Attachment) > 0 && s.uploader != nil {
		url, err := s.uploader.Upload(ctx, req.Attachment, req.AttachmentName, req.AttachmentType)
		if err != nil {
			log.Printf("⚠️  Attachment upload failed: %v", err)
		} else {
			lead.AttachmentURL = url
		}
	}

	if err := s.store.CreateLead(ctx, lead); err != nil {
		if claimed {
			_ = s.claims.ReleaseClaim(ctx, claimPrefix+normalized)
		}
		return nil, domain.NewPersistenceError(err)
	}

	conv := &models.Conversation{LeadID: lead.ID, IsActive: false}
	if err := s.store.CreateConversation(ctx, conv); err == nil {
		_ = s.store.AppendMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        message,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordLeadCreated(string(lead.Source))
	}
	if err := s.analytics.RecordLeadCreated(ctx, lead); err != nil {
		log.Printf("⚠️  Failed to record lead analytics: %v", err)
	}

	// Out-of-area submissions are stored for the record but never
	// pinged to the operator
	if lead.Status == models.StatusNew {
		s.notify(ctx, lead, req.Attachment, req.AttachmentName)
	}

	return lead, nil
}

// notify makes the single delivery attempt; failures are logged, never
// retried and never surfaced to the submitter
func (s *Service) notify(ctx context.Context, lead *models.Lead, photo []byte, photoName string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLead(ctx, lead, photo, photoName); err != nil {
		log.Printf("❌ Notification failed for lead %s: %v", lead.ID, err)
		if s.metrics != nil {
			s.metrics.RecordNotification("failed")
		}
		return
	}
	if lead.HasContactInfo() {
		if s.metrics != nil {
			s.metrics.RecordNotification("sent")
		}
	} else if s.metrics != nil {
		s.metrics.RecordNotification("skipped")
	}
}

func formSource(raw string) models.LeadSource {
	switch models.LeadSource(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.SourceServicesQuote:
		return models.SourceServicesQuote
	case models.SourceWebsiteChat:
		return models.SourceWebsiteChat
	}
	return models.SourceContactForm
}
