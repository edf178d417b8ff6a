package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation is one internal user's WhatsApp thread with one external
// number. Distinct users in the same tenant each get an independent thread
// with the same number: unique (tenant_id, user_id, normalized_phone).
//
// LastMessage, LastMessageAt and UnreadCount are a denormalized cache of the
// message table, refreshed on ingest and recomputable at any time.
type Conversation struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        uuid.UUID     `json:"tenant_id"`
	UserID          uuid.UUID     `json:"user_id"`
	ContactID       uuid.NullUUID `json:"contact_id,omitempty"`
	NormalizedPhone string        `json:"normalized_phone"`
	LastMessage     string        `json:"last_message"`
	LastMessageAt   sql.NullTime  `json:"last_message_at,omitempty"`
	UnreadCount     int           `json:"unread_count"`
	AIEnabled       bool          `json:"ai_enabled"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
