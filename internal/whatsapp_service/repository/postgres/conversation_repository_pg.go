package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

const conversationColumns = `id, tenant_id, user_id, contact_id, normalized_phone, last_message, last_message_at, unread_count, ai_enabled, created_at, updated_at`

type PgConversationRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewPgConversationRepository(db Querier, logger *slog.Logger) *PgConversationRepository {
	return &PgConversationRepository{db: db, logger: logger}
}

// FindOrCreate returns the conversation for (tenantID, userID,
// normalizedPhone), creating it if absent.
//
// The insert races with every other handler sharing the key, so this is an
// atomic conditional insert followed by a read on conflict; a separate
// existence check before inserting would let two concurrent callers both pass
// the check and create two rows. The unique index on the key makes exactly
// one insert win; losers fall through to the SELECT and observe the winner's
// row.
func (r *PgConversationRepository) FindOrCreate(ctx context.Context, tenantID, userID uuid.UUID, normalizedPhone string, contactID uuid.NullUUID) (*domain.Conversation, error) {
	insert := `
		INSERT INTO whatsapp_conversations (id, tenant_id, user_id, contact_id, normalized_phone, last_message, unread_count, ai_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', 0, false, now(), now())
		ON CONFLICT (tenant_id, user_id, normalized_phone) DO NOTHING
		RETURNING ` + conversationColumns

	conv := &domain.Conversation{}
	err := r.db.QueryRow(ctx, insert, uuid.New(), tenantID, userID, contactID, normalizedPhone).Scan(
		&conv.ID, &conv.TenantID, &conv.UserID, &conv.ContactID, &conv.NormalizedPhone,
		&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AIEnabled,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err == nil {
		r.logger.InfoContext(ctx, "Conversation created",
			"conversation_id", conv.ID,
			"tenant_id", tenantID,
			"user_id", userID,
		)
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.ErrorContext(ctx, "Error creating conversation", "error", err, "tenant_id", tenantID, "user_id", userID)
		return nil, err
	}

	// Conflict: another caller holds the row.
	query := `
		SELECT ` + conversationColumns + `
		FROM whatsapp_conversations
		WHERE tenant_id = $1 AND user_id = $2 AND normalized_phone = $3
	`
	err = r.db.QueryRow(ctx, query, tenantID, userID, normalizedPhone).Scan(
		&conv.ID, &conv.TenantID, &conv.UserID, &conv.ContactID, &conv.NormalizedPhone,
		&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AIEnabled,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error re-reading conversation after insert conflict", "error", err, "tenant_id", tenantID, "user_id", userID)
		return nil, err
	}
	return conv, nil
}

// ApplyInboundAggregate refreshes the denormalized summary after a message
// insert. GREATEST keeps last_message_at from moving backward when messages
// arrive network-reordered; unread_count always advances by one since exactly
// one insert precedes each call.
func (r *PgConversationRepository) ApplyInboundAggregate(ctx context.Context, conversationID uuid.UUID, lastMessage string, lastMessageAt time.Time) (int, error) {
	query := `
		UPDATE whatsapp_conversations
		SET last_message = CASE WHEN last_message_at IS NULL OR last_message_at <= $2 THEN $3 ELSE last_message END,
		    last_message_at = GREATEST(COALESCE(last_message_at, $2), $2),
		    unread_count = unread_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING unread_count
	`
	var unread int
	err := r.db.QueryRow(ctx, query, conversationID, lastMessageAt, lastMessage).Scan(&unread)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrConversationNotFound
		}
		r.logger.ErrorContext(ctx, "Error applying conversation aggregate", "error", err, "conversation_id", conversationID)
		return 0, err
	}
	return unread, nil
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM whatsapp_conversations WHERE id = $1`

	conv := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.TenantID, &conv.UserID, &conv.ContactID, &conv.NormalizedPhone,
		&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AIEnabled,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting conversation by id", "error", err, "conversation_id", id)
		return nil, err
	}
	return conv, nil
}

func (r *PgConversationRepository) List(ctx context.Context, tenantID uuid.UUID, userID uuid.NullUUID, limit, offset int) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM whatsapp_conversations
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR user_id = $2)
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, tenantID, userID, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing conversations", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conv := &domain.Conversation{}
		if err := rows.Scan(
			&conv.ID, &conv.TenantID, &conv.UserID, &conv.ContactID, &conv.NormalizedPhone,
			&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AIEnabled,
			&conv.CreatedAt, &conv.UpdatedAt,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning conversation row", "error", err, "tenant_id", tenantID)
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return conversations, nil
}

// MarkRead zeroes unread_count. Idempotent: marking an already-read
// conversation is a no-op update, not an error.
func (r *PgConversationRepository) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	query := `
		UPDATE whatsapp_conversations
		SET unread_count = 0, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := r.db.Exec(ctx, query, tenantID, conversationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking conversation read", "error", err, "conversation_id", conversationID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *PgConversationRepository) SetAIEnabled(ctx context.Context, tenantID, conversationID uuid.UUID, enabled bool) error {
	query := `
		UPDATE whatsapp_conversations
		SET ai_enabled = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := r.db.Exec(ctx, query, tenantID, conversationID, enabled)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error setting conversation ai flag", "error", err, "conversation_id", conversationID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}
