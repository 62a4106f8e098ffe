package models

import (
	"time"
)

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Valid reports whether s is a known status
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// Language codes used by campaign profiles and messages
const (
	LanguageMalayalam = "ml"
	LanguageEnglish   = "en"
)

// CulturalProfile describes the audience a campaign calls
type CulturalProfile struct {
	PrimaryLanguage string `json:"primary_language"`
	Region          string `json:"region,omitempty"`
	Formality       string `json:"formality,omitempty"`
}

// LocalizedMessage holds the same message in both supported languages
type LocalizedMessage struct {
	Malayalam string `json:"malayalam"`
	English   string `json:"english"`
}

// MessageConfiguration is the text played to humans and left on machines
type MessageConfiguration struct {
	Human   LocalizedMessage `json:"human"`
	Machine LocalizedMessage `json:"machine"`
}

// CallbackSettings controls when a machine-answered number is retried
type CallbackSettings struct {
	Enabled            bool          `json:"enabled"`
	MaxAttempts        int           `json:"max_attempts"`
	RetryInterval      time.Duration `json:"retry_interval"`
	BusinessHoursStart int           `json:"business_hours_start"`
	BusinessHoursEnd   int           `json:"business_hours_end"`
	TimeZone           string        `json:"time_zone"`
}

// Escalation transfers answered calls to an agent
type Escalation struct {
	TransferOnHuman bool   `json:"transfer_on_human"`
	TransferNumber  string `json:"transfer_number,omitempty"`
}

// CampaignAnalytics are the running counters of a campaign.
// TotalCalls always equals AMDDetections + HumanConnections.
type CampaignAnalytics struct {
	TotalCalls         int64 `json:"total_calls"`
	AMDDetections      int64 `json:"amd_detections"`
	HumanConnections   int64 `json:"human_connections"`
	MessagesLeft       int64 `json:"messages_left"`
	CallbackSuccess    int64 `json:"callback_success"`
	CulturalEngagement int64 `json:"cultural_engagement"`
}

// Campaign is an outbound calling campaign
type Campaign struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Status               CampaignStatus       `json:"status"`
	CulturalProfile      CulturalProfile      `json:"cultural_profile"`
	MessageConfiguration MessageConfiguration `json:"message_configuration"`
	CallbackSettings     CallbackSettings     `json:"callback_settings"`
	Escalation           Escalation           `json:"escalation"`
	Analytics            CampaignAnalytics    `json:"analytics"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// PrefersMalayalam reports whether the campaign's audience primarily speaks Malayalam
func (c *Campaign) PrefersMalayalam() bool {
	return c.CulturalProfile.PrimaryLanguage == LanguageMalayalam
}
