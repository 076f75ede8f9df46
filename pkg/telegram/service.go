package telegram

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pipeworks-za/backend/pkg/models"
	"github.com/pipeworks-za/backend/pkg/phone"
)

// BotAPI is the Telegram surface the service drives. Satisfied by *Client.
type BotAPI interface {
	Enabled() bool
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chatID int64, photo []byte, filename, caption string, markup *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *InlineKeyboardMarkup) error
}

// LeadStore is the persistence surface the bot commands read and mutate
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error
	RecentLeadsSince(ctx context.Context, since time.Time, onlyNew bool, limit int) ([]models.Lead, error)
	DailyStatsBetween(ctx context.Context, from, to time.Time) ([]models.DailyStats, error)
	AIUsageBetween(ctx context.Context, from, to time.Time) ([]models.AIUsageStats, error)
}

// Service handles operator notifications and bot commands
type Service struct {
	bot        BotAPI
	store      LeadStore
	operatorID int64
}

// NewService creates a new Telegram service. The operator id is the only
// chat the bot will talk to.
func NewService(bot BotAPI, store LeadStore, operatorID int64) *Service {
	return &Service{
		bot:        bot,
		store:      store,
		operatorID: operatorID,
	}
}

// Action is a parsed inline-keyboard callback
type Action struct {
	Kind   string // call, view_chat, contacted, or a quick action name
	LeadID string
}

// ParseAction splits callback data like "call_<leadID>" into its parts
func ParseAction(data string) Action {
	for _, prefix := range []string{"view_chat_", "contacted_", "call_"} {
		if strings.HasPrefix(data, prefix) {
			return Action{
				Kind:   strings.TrimSuffix(prefix, "_"),
				LeadID: strings.TrimPrefix(data, prefix),
			}
		}
	}
	return Action{Kind: data}
}

// NotifyLead sends the new-lead notification to the operator.
// Leads without a real phone and a name are skipped. One attempt only;
// a failure is returned for logging but never retried.
func (s *Service) NotifyLead(ctx context.Context, lead *models.Lead, photo []byte, photoName string) error {
	if !s.bot.Enabled() || s.operatorID == 0 {
		return nil
	}
	if !lead.HasContactInfo() {
		log.Printf("⏭️  Skipping notification for lead %s: missing contact info", lead.ID)
		return nil
	}

	text := FormatLeadNotification(lead)
	markup := leadKeyboard(lead.ID)

	if len(photo) > 0 {
		return s.bot.SendPhoto(ctx, s.operatorID, photo, photoName, text, markup)
	}
	return s.bot.SendMessage(ctx, s.operatorID, text, markup)
}

// FollowUpReminder nudges the operator about a lead that sat in NEW for
// too long, with a suggested message to send the customer.
func (s *Service) FollowUpReminder(ctx context.Context, lead *models.Lead) error {
	if !s.bot.Enabled() || s.operatorID == 0 {
		return nil
	}

	text := fmt.Sprintf(
		"⏰ <b>Follow-up reminder</b>\n\n"+
			"It's been 2 hours since <b>%s</b> (%s) got in touch and they haven't been contacted yet.\n\n"+
			"💬 Original message: %s\n\n"+
			"Suggested reply: \"Hi %s, just following up on your plumbing inquiry. When would be a good time to chat?\"",
		lead.Name, lead.Phone, truncate(lead.Message, 120), lead.FirstName())

	return s.bot.SendMessage(ctx, s.operatorID, text, leadKeyboard(lead.ID))
}

// HandleUpdate routes an incoming webhook update. Anything not from the
// configured operator gets a minimal refusal and changes no state.
func (s *Service) HandleUpdate(ctx context.Context, update *Update) error {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil || cq.From.ID != s.operatorID {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Not authorized")
		}
		return s.handleCallback(ctx, cq)

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.ID != s.operatorID {
			return s.bot.SendMessage(ctx, msg.Chat.ID, "Sorry, this bot is private.", nil)
		}
		return s.handleCommand(ctx, msg)
	}
	return nil
}

func (s *Service) handleCommand(ctx context.Context, msg *Message) error {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return nil
	}
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = strings.ToLower(fields[1])
	}

	switch cmd {
	case "/start":
		markup := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "📋 Today's leads", CallbackData: "today_leads"},
				{Text: "🆕 New only", CallbackData: "new_leads"},
			},
			{
				{Text: "📊 Week stats", CallbackData: "stats_week"},
			},
		}}
		return s.bot.SendMessage(ctx, msg.Chat.ID,
			"👋 Welcome back! I'll ping you the moment a new lead comes in.\n\nUse /help to see what I can do.", markup)

	case "/help":
		return s.bot.SendMessage(ctx, msg.Chat.ID,
			"<b>Commands</b>\n"+
				"/today [new] - today's leads\n"+
				"/stats [week|month] - lead statistics\n"+
				"/costs [today|week|month] - AI spend\n"+
				"/help - this message", nil)

	case "/today":
		return s.sendTodayLeads(ctx, msg.Chat.ID, arg == "new")

	case "/stats":
		return s.sendStats(ctx, msg.Chat.ID, arg)

	case "/costs":
		return s.sendCosts(ctx, msg.Chat.ID, arg)
	}

	return s.bot.SendMessage(ctx, msg.Chat.ID, "Unknown command. Try /help.", nil)
}

func (s *Service) handleCallback(ctx context.Context, cq *CallbackQuery) error {
	action := ParseAction(cq.Data)

	switch action.Kind {
	case "call":
		lead, err := s.store.GetLead(ctx, action.LeadID)
		if err != nil || lead == nil {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Lead not found")
		}
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
			return err
		}
		line := fmt.Sprintf("📞 Call <b>%s</b>: %s", lead.Name, lead.Phone)
		if kind := phone.Describe(lead.Phone); kind != "" {
			line += " (" + kind + ")"
		}
		return s.bot.SendMessage(ctx, chatID(cq), line, nil)

	case "view_chat":
		lead, err := s.store.GetLead(ctx, action.LeadID)
		if err != nil || lead == nil {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Lead not found")
		}
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
			return err
		}
		return s.bot.SendMessage(ctx, chatID(cq), formatConversationHistory(lead), nil)

	case "contacted":
		lead, err := s.store.GetLead(ctx, action.LeadID)
		if err != nil || lead == nil {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Lead not found")
		}
		// A stale button must not drag a settled lead back to CONTACTED
		if !models.CanTransition(lead.Status, models.StatusContacted) {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Could not update")
		}
		if err := s.store.UpdateLeadStatus(ctx, action.LeadID, models.StatusContacted); err != nil {
			return s.bot.AnswerCallbackQuery(ctx, cq.ID, "Could not update lead")
		}
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, "Marked as contacted ✅"); err != nil {
			return err
		}
		if cq.Message != nil {
			// Remove the action buttons from the original notification
			return s.bot.EditMessageReplyMarkup(ctx, cq.Message.Chat.ID, cq.Message.MessageID, nil)
		}
		return nil

	case "today_leads":
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
			return err
		}
		return s.sendTodayLeads(ctx, chatID(cq), false)

	case "new_leads":
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
			return err
		}
		return s.sendTodayLeads(ctx, chatID(cq), true)

	case "stats_week":
		if err := s.bot.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
			return err
		}
		return s.sendStats(ctx, chatID(cq), "week")
	}

	return s.bot.AnswerCallbackQuery(ctx, cq.ID, "")
}

func (s *Service) sendTodayLeads(ctx context.Context, chat int64, onlyNew bool) error {
	midnight := startOfDay(time.Now())
	leads, err := s.store.RecentLeadsSince(ctx, midnight, onlyNew, 10)
	if err != nil {
		return s.bot.SendMessage(ctx, chat, "Could not load today's leads.", nil)
	}
	if len(leads) == 0 {
		return s.bot.SendMessage(ctx, chat, "No leads today yet.", nil)
	}

	var b strings.Builder
	title := "📋 <b>Today's leads</b>"
	if onlyNew {
		title = "🆕 <b>Today's new leads</b>"
	}
	b.WriteString(title + "\n\n")
	for _, lead := range leads {
		fmt.Fprintf(&b, "%s <b>%s</b> (%s) [%s]\n%s\n\n",
			UrgencyEmoji(lead.Urgency), displayName(&lead), lead.Phone, lead.Status,
			truncate(lead.Message, 80))
	}
	return s.bot.SendMessage(ctx, chat, strings.TrimSpace(b.String()), nil)
}

func (s *Service) sendStats(ctx context.Context, chat int64, period string) error {
	days := 7
	label := "last 7 days"
	if period == "month" {
		days = 30
		label = "last 30 days"
	}

	to := time.Now()
	from := to.AddDate(0, 0, -(days - 1))
	rows, err := s.store.DailyStatsBetween(ctx, from, to)
	if err != nil {
		return s.bot.SendMessage(ctx, chat, "Could not load statistics.", nil)
	}

	var visits, leads, converted, emergencies int
	for _, row := range rows {
		visits += row.TotalVisits
		leads += row.TotalLeads
		converted += row.ConvertedLeads
		emergencies += row.EmergencyLeads
	}
	rate := 0.0
	if leads > 0 {
		rate = float64(converted) / float64(leads) * 100
	}

	text := fmt.Sprintf(
		"📊 <b>Stats (%s)</b>\n\n"+
			"👀 Visits: %d\n"+
			"📥 Leads: %d\n"+
			"✅ Converted: %d (%.1f%%)\n"+
			"🚨 Emergencies: %d",
		label, visits, leads, converted, rate, emergencies)
	return s.bot.SendMessage(ctx, chat, text, nil)
}

func (s *Service) sendCosts(ctx context.Context, chat int64, period string) error {
	days := 1
	label := "today"
	switch period {
	case "week":
		days = 7
		label = "last 7 days"
	case "month":
		days = 30
		label = "last 30 days"
	}

	to := time.Now()
	from := to.AddDate(0, 0, -(days - 1))
	rows, err := s.store.AIUsageBetween(ctx, from, to)
	if err != nil {
		return s.bot.SendMessage(ctx, chat, "Could not load AI costs.", nil)
	}

	var tokens, requests int
	var cost float64
	for _, row := range rows {
		tokens += row.TotalTokens
		requests += row.RequestCount
		cost += row.TotalCost
	}

	text := fmt.Sprintf(
		"💰 <b>AI costs (%s)</b>\n\n"+
			"🔢 Tokens: %d\n"+
			"📨 Requests: %d\n"+
			"💵 Cost: $%.4f",
		label, tokens, requests, cost)
	return s.bot.SendMessage(ctx, chat, text, nil)
}

// --- Formatting ---

// UrgencyEmoji maps an urgency tier to its notification marker
func UrgencyEmoji(u models.Urgency) string {
	switch u {
	case models.UrgencyEmergency:
		return "🚨"
	case models.UrgencyUrgent:
		return "⚡"
	}
	return "📅"
}

// SourceLabel renders a lead source for the operator
func SourceLabel(s models.LeadSource) string {
	switch s {
	case models.SourceWebsiteChat:
		return "Website Chat"
	case models.SourceContactForm:
		return "Contact Form"
	case models.SourceServicesQuote:
		return "Services Quote"
	case models.SourceTelegram:
		return "Telegram"
	case models.SourceManual:
		return "Manual"
	}
	return string(s)
}

// FormatLeadNotification renders the operator notification text
func FormatLeadNotification(lead *models.Lead) string {
	header := "NEW LEAD!"
	if lead.Source == models.SourceServicesQuote {
		header = "NEW QUOTATION REQUEST!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", UrgencyEmoji(lead.Urgency), header)
	fmt.Fprintf(&b, "👤 <b>Name:</b> %s\n", lead.Name)

	phoneLine := lead.Phone
	if kind := phone.Describe(lead.Phone); kind != "" {
		phoneLine += " (" + kind + ")"
	}
	fmt.Fprintf(&b, "📞 <b>Phone:</b> %s\n", phoneLine)

	if lead.Email != "" {
		fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", lead.Email)
	}
	if lead.Location != "" {
		fmt.Fprintf(&b, "📍 <b>Location:</b> %s\n", lead.Location)
	}
	if lead.ServiceType != "" {
		fmt.Fprintf(&b, "🔧 <b>Service:</b> %s\n", lead.ServiceType)
	}
	fmt.Fprintf(&b, "💬 <b>Message:</b> %s\n", truncate(lead.Message, 300))
	if lead.Notes != "" {
		fmt.Fprintf(&b, "🤖 <b>AI Notes:</b> %s\n", lead.Notes)
	}
	fmt.Fprintf(&b, "⏱ <b>Urgency:</b> %s\n", lead.Urgency)
	fmt.Fprintf(&b, "🌐 <b>Source:</b> %s", SourceLabel(lead.Source))
	return b.String()
}

func formatConversationHistory(lead *models.Lead) string {
	var msgs []models.Message
	for _, conv := range lead.Conversations {
		msgs = append(msgs, conv.Messages...)
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("No chat history for %s.", displayName(lead))
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "💬 <b>Chat with %s</b>\n\n", displayName(lead))
	for _, msg := range msgs {
		who := "🧑 Customer"
		if msg.Role == models.RoleAssistant {
			who = "🤖 Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, truncate(msg.Content, 200))
	}
	return strings.TrimSpace(b.String())
}

func leadKeyboard(leadID string) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{
			{Text: "📞 Call", CallbackData: "call_" + leadID},
			{Text: "💬 View Chat", CallbackData: "view_chat_" + leadID},
		},
		{
			{Text: "✅ Mark as Contacted", CallbackData: "contacted_" + leadID},
		},
	}}
}

func chatID(cq *CallbackQuery) int64 {
	if cq.Message != nil {
		return cq.Message.Chat.ID
	}
	if cq.From != nil {
		return cq.From.ID
	}
	return 0
}

func displayName(lead *models.Lead) string {
	if lead.Name == "" {
		return "Unknown"
	}
	return lead.Name
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
