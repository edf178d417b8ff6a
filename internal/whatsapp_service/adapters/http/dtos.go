package http

import (
	"time"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

// webhookPayload is one verified webhook delivery. A payload carries one or
// more events; each event is independently a message or a status update.
// Events are validated one by one, never as a batch: a malformed event must
// be terminal only for itself.
type webhookPayload struct {
	Events []webhookEvent `json:"events" validate:"required,min=1"`
}

type webhookEvent struct {
	Type    string           `json:"type" validate:"required,oneof=message status"`
	Message *messageEventDTO `json:"message,omitempty" validate:"required_if=Type message"`
	Status  *statusEventDTO  `json:"status,omitempty" validate:"required_if=Type status"`
}

// messageEventDTO carries an inbound message. ProviderMessageID is not
// validated as required here: its absence is a pipeline decision (drop and
// log), not a transport rejection.
type messageEventDTO struct {
	ProviderMessageID string    `json:"provider_message_id"`
	From              string    `json:"from" validate:"required"`
	MessageType       string    `json:"message_type"`
	Body              string    `json:"body"`
	MediaURL          string    `json:"media_url"`
	Timestamp         time.Time `json:"timestamp"`
}

type statusEventDTO struct {
	ProviderMessageID string    `json:"provider_message_id" validate:"required"`
	Status            string    `json:"status" validate:"required"`
	Timestamp         time.Time `json:"timestamp"`
}

func (d *messageEventDTO) toDomain() domain.InboundMessageEvent {
	return domain.InboundMessageEvent{
		ProviderMessageID: d.ProviderMessageID,
		From:              d.From,
		MessageType:       d.MessageType,
		Body:              d.Body,
		MediaURL:          d.MediaURL,
		Timestamp:         d.Timestamp,
	}
}

func (d *statusEventDTO) toDomain() domain.StatusEvent {
	return domain.StatusEvent{
		ProviderMessageID: d.ProviderMessageID,
		Status:            d.Status,
		Timestamp:         d.Timestamp,
	}
}

// webhookResponse summarizes per-event outcomes back to the provider.
// failed counts permanently rejected events; transient failures surface as a
// 5xx instead so the provider redelivers.
type webhookResponse struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

type conversationResponse struct {
	ID              string     `json:"id"`
	ContactID       *string    `json:"contact_id,omitempty"`
	NormalizedPhone string     `json:"normalized_phone"`
	LastMessage     string     `json:"last_message"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	AIEnabled       bool       `json:"ai_enabled"`
}

type messageResponse struct {
	ID                string    `json:"id"`
	Sender            string    `json:"sender"`
	Body              string    `json:"body"`
	MessageType       string    `json:"message_type"`
	MediaURL          *string   `json:"media_url,omitempty"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type setAIEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func toConversationResponse(c *domain.Conversation) conversationResponse {
	resp := conversationResponse{
		ID:              c.ID.String(),
		NormalizedPhone: c.NormalizedPhone,
		LastMessage:     c.LastMessage,
		UnreadCount:     c.UnreadCount,
		AIEnabled:       c.AIEnabled,
	}
	if c.ContactID.Valid {
		s := c.ContactID.UUID.String()
		resp.ContactID = &s
	}
	if c.LastMessageAt.Valid {
		t := c.LastMessageAt.Time
		resp.LastMessageAt = &t
	}
	return resp
}

func toMessageResponse(m *domain.Message) messageResponse {
	resp := messageResponse{
		ID:          m.ID.String(),
		Sender:      string(m.Sender),
		Body:        m.Body,
		MessageType: string(m.MessageType),
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
	if m.MediaURL.Valid {
		s := m.MediaURL.String
		resp.MediaURL = &s
	}
	if m.ProviderMessageID.Valid {
		s := m.ProviderMessageID.String
		resp.ProviderMessageID = &s
	}
	return resp
}
