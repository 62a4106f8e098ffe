package campaign

import (
	"time"

	"amd-server/pkg/amd"
	"amd-server/pkg/models"
)

// Spec describes a campaign to create
type Spec struct {
	Name                 string
	Status               models.CampaignStatus
	CulturalProfile      models.CulturalProfile
	MessageConfiguration models.MessageConfiguration
	CallbackSettings     models.CallbackSettings
	Escalation           models.Escalation
}

// Update is a partial campaign update; nil fields are left unchanged
type Update struct {
	Name                 *string
	Status               *models.CampaignStatus
	CulturalProfile      *models.CulturalProfile
	MessageConfiguration *models.MessageConfiguration
	CallbackSettings     *models.CallbackSettings
	Escalation           *models.Escalation
}

// CulturalAdaptation records how the call was adapted to the caller
type CulturalAdaptation struct {
	MessageLanguage string              `json:"message_language"`
	GreetingPattern amd.GreetingPattern `json:"greeting_pattern"`
	Formality       amd.FormalityLevel  `json:"formality"`
	Dialect         amd.RegionalDialect `json:"dialect"`
	Adapted         bool                `json:"adapted"`
}

// CallResult is the outcome of one campaign call
type CallResult struct {
	CallID             string              `json:"call_id"`
	CampaignID         string              `json:"campaign_id"`
	Phone              string              `json:"phone"`
	Detection          amd.DetectionResult `json:"amd_result"`
	Action             amd.Action          `json:"action"`
	Message            string              `json:"message,omitempty"`
	MessageID          string              `json:"message_id,omitempty"`
	MessageDelivered   bool                `json:"message_delivered"`
	DeliveryAttempts   int                 `json:"delivery_attempts"`
	TransferNumber     string              `json:"transfer_number,omitempty"`
	CulturalAdaptation CulturalAdaptation  `json:"cultural_adaptation"`
	CallbackAt         *time.Time          `json:"callback_at,omitempty"`
}
