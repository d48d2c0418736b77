// Package domain holds the shared data model for the funnel builder.
package domain

import "time"

// Funnel lifecycle states.
const (
	FunnelStatusDraft  = "draft"
	FunnelStatusActive = "active"
	FunnelStatusPaused = "paused"
)

// Widget classifications. Dropdown and single-session are detected from the
// embed; recurring is assigned by the admin together with a Schedule.
const (
	WidgetTypeDropdown      = "dropdown"
	WidgetTypeSingleSession = "single_session"
	WidgetTypeRecurring     = "recurring"
)

// Funnel is one marketing funnel: the admin-pasted embeds, their extraction
// results, the webinar content used to prompt page generation, the generated
// pages, and rollup analytics. Extraction fields are immutable until the admin
// re-pastes new markup.
type Funnel struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Infusionsoft extraction (JSON-encoded crmform.Extraction).
	CRMFormHTML   string `json:"crm_form_html,omitempty"`
	CRMExtraction string `json:"crm_extraction,omitempty"`

	// WebinarFuel extraction.
	WidgetHTML      string `json:"widget_html,omitempty"`
	WidgetURL       string `json:"widget_url,omitempty"`
	WebinarID       int64  `json:"webinar_id,omitempty"`
	WidgetID        int64  `json:"widget_id,omitempty"`
	WidgetVersionID int64  `json:"widget_version_id,omitempty"`
	WidgetType      string `json:"widget_type,omitempty"`

	// ScheduleJSON is the admin-configured recurring schedule
	// (JSON-encoded schedule.Schedule); empty unless WidgetType is recurring.
	ScheduleJSON string `json:"schedule_json,omitempty"`

	// Webinar content driving page generation.
	WebinarTitle       string `json:"webinar_title,omitempty"`
	WebinarDescription string `json:"webinar_description,omitempty"`
	TargetAudience     string `json:"target_audience,omitempty"`
	MainBenefits       string `json:"main_benefits,omitempty"`
	SocialProof        string `json:"social_proof,omitempty"`
	HostInfo           string `json:"host_info,omitempty"`
	Urgency            string `json:"urgency,omitempty"`
	AdditionalNotes    string `json:"additional_notes,omitempty"`

	// Generated content. Opaque HTML; never parsed by this system.
	RegistrationPageHTML string `json:"registration_page_html,omitempty"`
	ConfirmationPageHTML string `json:"confirmation_page_html,omitempty"`

	// Analytics rollups.
	TotalViews       int64 `json:"total_views"`
	TotalSubmissions int64 `json:"total_submissions"`
}

// Registrant is the visitor-entered contact data on a registration.
type Registrant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Submission is the audit record for one registration attempt: who registered,
// which session they were booked into, and how each origin submission fared.
// Both per-origin outcomes are recorded even when only one succeeded.
type Submission struct {
	ID       string `json:"id"`
	FunnelID int64  `json:"funnel_id"`

	Registrant
	SMSConsent bool `json:"sms_consent"`

	SessionDate time.Time `json:"session_date,omitempty"`
	SessionDay  string    `json:"session_day,omitempty"`
	SessionID   int64     `json:"session_id,omitempty"`
	CID         string    `json:"cid,omitempty"`

	CRMSuccess    bool   `json:"crm_success"`
	CRMError      string `json:"crm_error,omitempty"`
	WidgetSuccess bool   `json:"widget_success"`
	WidgetError   string `json:"widget_error,omitempty"`

	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
