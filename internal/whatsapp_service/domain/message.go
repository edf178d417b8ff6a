package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MessageSender identifies who authored a message.
type MessageSender string

const (
	SenderContact MessageSender = "contact"
	SenderAgent   MessageSender = "agent"
	SenderAI      MessageSender = "ai"
)

// MessageType is the WhatsApp content type of a message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders the non-terminal statuses. failed sits outside the rank:
// it is reachable from any non-failed state and terminal once set.
var statusRank = map[MessageStatus]int{
	StatusReceived:  0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ParseMessageStatus maps a provider status string to a MessageStatus.
func ParseMessageStatus(s string) (MessageStatus, bool) {
	switch MessageStatus(s) {
	case StatusReceived, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return MessageStatus(s), true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic ordering received < sent < delivered < read, with failed terminal
// from any prior state. Regressions and exits from failed are rejected.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return true
	}
	curRank, ok := statusRank[s]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > curRank
}

// StatusesBelow returns every status from which a transition to next is
// allowed. Repositories use it to build the monotonic UPDATE guard.
func StatusesBelow(next MessageStatus) []MessageStatus {
	all := []MessageStatus{StatusReceived, StatusSent, StatusDelivered, StatusRead}
	var priors []MessageStatus
	for _, s := range all {
		if s.CanTransitionTo(next) {
			priors = append(priors, s)
		}
	}
	return priors
}

// Message is a single WhatsApp message within a conversation. Immutable after
// insert except for Status. CreatedAt is the provider-supplied timestamp, the
// only valid sort key for display; insertion order carries no meaning.
type Message struct {
	ID                uuid.UUID      `json:"id"`
	ConversationID    uuid.UUID      `json:"conversation_id"`
	TenantID          uuid.UUID      `json:"tenant_id"`
	Sender            MessageSender  `json:"sender"`
	Body              string         `json:"body"`
	MessageType       MessageType    `json:"message_type"`
	MediaURL          sql.NullString `json:"media_url,omitempty"`
	ProviderMessageID sql.NullString `json:"provider_message_id,omitempty"`
	Status            MessageStatus  `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
}
