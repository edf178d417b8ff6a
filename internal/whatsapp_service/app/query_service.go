package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// QueryService exposes the read side of the conversation store to
// collaborators (inbox UI, notification layers).
type QueryService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	logger        *slog.Logger
}

func NewQueryService(conversations domain.ConversationRepository, messages domain.MessageRepository, logger *slog.Logger) *QueryService {
	return &QueryService{
		conversations: conversations,
		messages:      messages,
		logger:        logger.With("component", "query_service"),
	}
}

// GetConversations lists conversations ordered by last_message_at descending.
// Admins see the whole tenant; everyone else sees their own threads.
func (s *QueryService) GetConversations(ctx context.Context, tenantID uuid.UUID, requester domain.Requester, limit, offset int) ([]*domain.Conversation, error) {
	var userFilter uuid.NullUUID
	if requester.Role != domain.RoleAdmin {
		userFilter = uuid.NullUUID{UUID: requester.UserID, Valid: true}
	}
	return s.conversations.List(ctx, tenantID, userFilter, clampLimit(limit), maxInt(offset, 0))
}

// GetConversation fetches one conversation, scoped to the tenant.
func (s *QueryService) GetConversation(ctx context.Context, tenantID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.TenantID != tenantID {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

// GetMessages lists a conversation's messages ordered by the provider
// timestamp, never by insertion order.
func (s *QueryService) GetMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	return s.messages.ListByConversation(ctx, conversationID, clampLimit(limit), maxInt(offset, 0))
}

// MarkRead resets a conversation's unread count to zero. Idempotent.
func (s *QueryService) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	if err := s.conversations.MarkRead(ctx, tenantID, conversationID); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Conversation marked read", "tenant_id", tenantID, "conversation_id", conversationID)
	return nil
}

// SetAIEnabled toggles AI auto-responses for a conversation. Idempotent.
func (s *QueryService) SetAIEnabled(ctx context.Context, tenantID, conversationID uuid.UUID, enabled bool) error {
	return s.conversations.SetAIEnabled(ctx, tenantID, conversationID, enabled)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
