package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhoneUnknown is the sentinel stored until a real phone number is captured.
// Leads carrying it are never deduplicated and never notified.
const PhoneUnknown = "unknown"

// LeadStatus is the lead lifecycle state
type LeadStatus string

const (
	StatusNew       LeadStatus = "NEW"
	StatusContacted LeadStatus = "CONTACTED"
	StatusQuoted    LeadStatus = "QUOTED"
	StatusConverted LeadStatus = "CONVERTED"
	StatusLost      LeadStatus = "LOST"
	StatusOutOfArea LeadStatus = "OUT_OF_AREA"
)

// Urgency is the four-tier urgency classification
type Urgency string

const (
	UrgencyEmergency Urgency = "EMERGENCY"
	UrgencyUrgent    Urgency = "URGENT"
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyLow       Urgency = "LOW"
)

// LeadSource identifies the channel a lead arrived through
type LeadSource string

const (
	SourceWebsiteChat   LeadSource = "WEBSITE_CHAT"
	SourceContactForm   LeadSource = "CONTACT_FORM"
	SourceServicesQuote LeadSource = "SERVICES_QUOTE"
	SourceTelegram      LeadSource = "TELEGRAM"
	SourceManual        LeadSource = "MANUAL"
)

// MessageRole is the author of a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "ASSISTANT"
	RoleSystem    MessageRole = "SYSTEM"
)

// Lead is a prospective customer inquiry
type Lead struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Name          string     `json:"name"`
	Phone         string     `gorm:"index;default:unknown" json:"phone"`
	Email         string     `json:"email,omitempty"`
	Message       string     `json:"message"`
	Location      string     `json:"location,omitempty"`
	ServiceType   string     `json:"service_type,omitempty"`
	Source        LeadSource `gorm:"size:32;default:WEBSITE_CHAT" json:"source"`
	Status        LeadStatus `gorm:"size:16;index;default:NEW" json:"status"`
	Urgency       Urgency    `gorm:"size:16;default:NORMAL" json:"urgency"`
	Priority      int        `gorm:"default:5" json:"priority"`
	Notes         string     `json:"notes,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	FollowUpSent  bool       `gorm:"index;default:false" json:"follow_up_sent"`
	FollowUpAt    *time.Time `json:"follow_up_at,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Conversations []Conversation `gorm:"foreignKey:LeadID" json:"conversations,omitempty"`
}

// BeforeCreate assigns a UUID primary key
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// HasContactInfo reports whether the lead carries both a real phone and a name.
// Only such leads qualify for operator notification.
func (l *Lead) HasContactInfo() bool {
	return l.Name != "" && l.Phone != "" && l.Phone != PhoneUnknown
}

// FirstName returns the leading word of the lead's name, or "there" when unknown
func (l *Lead) FirstName() string {
	if l.Name == "" {
		return "there"
	}
	for i, r := range l.Name {
		if r == ' ' {
			return l.Name[:i]
		}
	}
	return l.Name
}

// Conversation is a thread of messages belonging to exactly one lead
type Conversation struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	LeadID       string    `gorm:"index;not null" json:"lead_id"`
	MessageCount int       `gorm:"default:0" json:"message_count"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Lead     *Lead     `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// BeforeCreate assigns a UUID primary key
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message is a single turn in a conversation. Immutable once written.
type Message struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string      `gorm:"index;not null" json:"conversation_id"`
	Role           MessageRole `gorm:"size:16;not null" json:"role"`
	Content        string      `json:"content"`
	Tokens         int         `json:"tokens,omitempty"`
	Cost           float64     `json:"cost,omitempty"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID primary key
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DailyStats is the per-day aggregate counter row, keyed by calendar date.
// Visit counters are incremented live; the lead breakdown fields are replaced
// by the nightly recalculation from authoritative Lead rows.
type DailyStats struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	Date           time.Time `gorm:"uniqueIndex;not null" json:"date"`
	TotalVisits    int       `gorm:"default:0" json:"total_visits"`
	BouncedVisits  int       `gorm:"default:0" json:"bounced_visits"`
	TotalLeads     int       `gorm:"default:0" json:"total_leads"`
	NewLeads       int       `gorm:"default:0" json:"new_leads"`
	ContactedLeads int       `gorm:"default:0" json:"contacted_leads"`
	ConvertedLeads int       `gorm:"default:0" json:"converted_leads"`
	EmergencyLeads int       `gorm:"default:0" json:"emergency_leads"`
	ChatLeads      int       `gorm:"default:0" json:"chat_leads"`
	FormLeads      int       `gorm:"default:0" json:"form_leads"`
	ConversionRate float64   `gorm:"default:0" json:"conversion_rate"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AIUsageStats tracks daily LLM consumption, keyed by calendar date
type AIUsageStats struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	Date         time.Time `gorm:"uniqueIndex;not null" json:"date"`
	TotalTokens  int       `gorm:"default:0" json:"total_tokens"`
	TotalCost    float64   `gorm:"default:0" json:"total_cost"`
	RequestCount int       `gorm:"default:0" json:"request_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Visit is a single page visit used for bounce tracking
type Visit struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Path           string    `json:"path"`
	SessionID      string    `gorm:"index" json:"session_id"`
	HasInteraction bool      `gorm:"default:false" json:"has_interaction"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ErrorResponse is the standard error payload returned by all handlers
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// statusTransitions is the allowed lifecycle graph. CONVERTED, LOST and
// OUT_OF_AREA are terminal.
var statusTransitions = map[LeadStatus][]LeadStatus{
	StatusNew:       {StatusContacted, StatusOutOfArea, StatusLost},
	StatusContacted: {StatusQuoted, StatusConverted, StatusLost},
	StatusQuoted:    {StatusConverted, StatusLost},
}

// CanTransition reports whether a lead may move from one status to another
func CanTransition(from, to LeadStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UrgencyPriority maps an urgency tier to its ranking integer
func UrgencyPriority(u Urgency) int {
	switch u {
	case UrgencyEmergency:
		return 10
	case UrgencyUrgent:
		return 8
	case UrgencyLow:
		return 3
	default:
		return 5
	}
}
