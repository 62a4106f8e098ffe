package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is an outbound voice or text message for a called party
type Message struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id"`
	CallID     string            `json:"call_id,omitempty"`
	Phone      string            `json:"phone"`
	Text       string            `json:"text"`
	Language   string            `json:"language"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh ID
func NewMessage(campaignID, phone, text, language string) Message {
	return Message{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Phone:      phone,
		Text:       text,
		Language:   language,
		CreatedAt:  time.Now(),
	}
}

// DeliveryChannel hands a message to whatever actually plays or sends it
type DeliveryChannel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// DeadLetterPublisher is implemented by channels that can park undeliverable messages
type DeadLetterPublisher interface {
	PublishToDeadLetterQueue(ctx context.Context, msg Message, reason error) error
}
