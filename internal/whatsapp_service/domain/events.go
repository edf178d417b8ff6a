package domain

import "github.com/google/uuid"

// NATS subjects for domain events consumed by the realtime, AI responder and
// read-receipt layers.
const (
	SubjectMessageReceived     = "crm.whatsapp.message.received"
	SubjectConversationUpdated = "crm.whatsapp.conversation.updated"
	SubjectStatusChanged       = "crm.whatsapp.message.status"
)

// SubjectStatusCallbackRaw is the inbound side: provider status callbacks
// relayed over NATS by edge receivers, one subject per tenant. Subscribers
// use the wildcard form and read the tenant id from the last token.
const (
	SubjectStatusCallbackRaw         = "crm.whatsapp.status.raw"
	SubjectStatusCallbackRawWildcard = SubjectStatusCallbackRaw + ".*"
)

// MessageReceivedEvent is published once per newly persisted inbound message.
// Duplicate deliveries never re-emit it.
type MessageReceivedEvent struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

// ConversationUpdatedEvent carries the refreshed aggregate fields.
type ConversationUpdatedEvent struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	LastMessage    string    `json:"last_message"`
	UnreadCount    int       `json:"unread_count"`
}

// StatusChangedEvent is published when a message status actually advances.
// Ignored regressive updates do not emit it.
type StatusChangedEvent struct {
	TenantID  uuid.UUID     `json:"tenant_id"`
	MessageID uuid.UUID     `json:"message_id"`
	Status    MessageStatus `json:"status"`
}
