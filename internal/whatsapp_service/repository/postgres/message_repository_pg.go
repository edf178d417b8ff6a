package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

const messageColumns = `id, conversation_id, tenant_id, sender, body, message_type, media_url, provider_message_id, status, created_at`

type PgMessageRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewPgMessageRepository(db Querier, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{db: db, logger: logger}
}

// Insert persists a message in a single statement. The dedup decision is made
// here, at the constraint, not by a prior existence check: two concurrent
// retries of the same webhook would both pass such a check before either
// writes. A 23505 on the partial unique index over (tenant_id,
// conversation_id, provider_message_id) maps to ErrDuplicateMessage.
func (r *PgMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO whatsapp_messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.TenantID, msg.Sender, msg.Body,
		msg.MessageType, msg.MediaURL, msg.ProviderMessageID, msg.Status, msg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateMessage
		}
		r.logger.ErrorContext(ctx, "Error inserting message",
			"error", err,
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID,
		)
		return err
	}
	return nil
}

// ListByConversation orders by the provider-supplied timestamp; insertion
// order is meaningless under concurrent handlers. The id tiebreak keeps
// pagination stable for equal timestamps.
func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM whatsapp_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing messages", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.TenantID, &msg.Sender, &msg.Body,
			&msg.MessageType, &msg.MediaURL, &msg.ProviderMessageID, &msg.Status, &msg.CreatedAt,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning message row", "error", err, "conversation_id", conversationID)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateStatus advances a message's status. The monotonic guard lives in the
// WHERE clause: the update only fires when the current status is one from
// which the transition is legal, so a regressive update affects zero rows and
// is reported as not applied. Distinguishing "regressive" from "no such
// message" takes a follow-up existence probe.
//
// (tenant_id, provider_message_id) is not unique on its own: the dedup index
// scopes provider ids per conversation, so one tenant may hold the same
// provider id in several conversations. The UPDATE then advances every such
// row and RETURNING yields one of them; they all refer to the same
// provider-side message, so a single StatusChanged event stands in for the
// set.
func (r *PgMessageRepository) UpdateStatus(ctx context.Context, tenantID uuid.UUID, providerMessageID string, newStatus domain.MessageStatus) (uuid.UUID, bool, error) {
	priors := domain.StatusesBelow(newStatus)
	allowed := make([]string, 0, len(priors))
	for _, s := range priors {
		allowed = append(allowed, string(s))
	}

	update := `
		UPDATE whatsapp_messages
		SET status = $3
		WHERE tenant_id = $1 AND provider_message_id = $2 AND status = ANY($4)
		RETURNING id
	`
	var messageID uuid.UUID
	err := r.db.QueryRow(ctx, update, tenantID, providerMessageID, newStatus, allowed).Scan(&messageID)
	if err == nil {
		return messageID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.ErrorContext(ctx, "Error updating message status",
			"error", err,
			"tenant_id", tenantID,
			"provider_message_id", providerMessageID,
			"new_status", newStatus,
		)
		return uuid.Nil, false, err
	}

	probe := `
		SELECT id FROM whatsapp_messages
		WHERE tenant_id = $1 AND provider_message_id = $2
	`
	err = r.db.QueryRow(ctx, probe, tenantID, providerMessageID).Scan(&messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, domain.ErrUnknownMessage
		}
		return uuid.Nil, false, err
	}
	// Message exists; the transition was regressive or the status is terminal.
	return messageID, false, nil
}
