package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContactRepository reads CRM contacts. Contact CRUD lives elsewhere in the
// CRM; this pipeline only resolves existing records.
type ContactRepository interface {
	// ListByNormalizedPhone returns all contacts in the tenant whose
	// normalized phone matches exactly, ordered by updated_at descending then
	// id ascending so callers tie-break deterministically. Partial or suffix
	// matching is deliberately unsupported.
	ListByNormalizedPhone(ctx context.Context, tenantID uuid.UUID, normalizedPhone string) ([]*Contact, error)
}

// ConversationRepository persists conversations and their denormalized
// aggregate fields.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for (tenantID, userID,
	// normalizedPhone), creating it atomically if absent. Safe under
	// concurrent calls with the same key: exactly one row ever exists.
	// contactID is only applied on creation.
	FindOrCreate(ctx context.Context, tenantID, userID uuid.UUID, normalizedPhone string, contactID uuid.NullUUID) (*Conversation, error)

	// ApplyInboundAggregate refreshes last_message/last_message_at and
	// increments unread_count after a successful message insert, returning
	// the new unread count.
	ApplyInboundAggregate(ctx context.Context, conversationID uuid.UUID, lastMessage string, lastMessageAt time.Time) (int, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// List returns conversations in the tenant ordered by last_message_at
	// descending. When userID is valid only that user's threads are returned.
	List(ctx context.Context, tenantID uuid.UUID, userID uuid.NullUUID, limit, offset int) ([]*Conversation, error)

	// MarkRead resets unread_count to zero. Idempotent.
	MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error

	SetAIEnabled(ctx context.Context, tenantID, conversationID uuid.UUID, enabled bool) error
}

// MessageRepository persists messages under the exactly-once constraint.
type MessageRepository interface {
	// Insert persists the message in a single atomic statement. A uniqueness
	// violation on (tenant_id, conversation_id, provider_message_id) yields
	// ErrDuplicateMessage; callers treat that as a benign duplicate delivery.
	Insert(ctx context.Context, msg *Message) error

	// ListByConversation returns messages ordered by the provider-supplied
	// timestamp, never by insertion order.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error)

	// UpdateStatus advances the status of the message identified by
	// providerMessageID within the tenant. The monotonic guard is enforced in
	// the UPDATE itself; applied is false when the transition was regressive
	// and ignored. Returns ErrUnknownMessage when no message matches.
	UpdateStatus(ctx context.Context, tenantID uuid.UUID, providerMessageID string, newStatus MessageStatus) (messageID uuid.UUID, applied bool, err error)
}
