package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/phone"
)

// IngestOutcome is the terminal state of one inbound message event.
type IngestOutcome string

const (
	IngestCreated   IngestOutcome = "created"
	IngestDuplicate IngestOutcome = "duplicate"
)

// IngestResult reports what happened to one inbound message event.
type IngestResult struct {
	Outcome        IngestOutcome
	MessageID      uuid.UUID
	ConversationID uuid.UUID
}

// Ingestor runs the inbound pipeline for one message event: normalize the
// sender, resolve the contact, find-or-create the conversation, insert the
// message exactly once, refresh aggregates and emit events.
//
// Handlers run concurrently across independent processes; every conflict is
// resolved by the storage constraints underneath, never by locking here.
type Ingestor struct {
	resolver      *ContactResolver
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	publisher     EventPublisher
	logger        *slog.Logger
	defaultRegion string
	timeout       time.Duration
}

func NewIngestor(
	resolver *ContactResolver,
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	publisher EventPublisher,
	logger *slog.Logger,
	defaultRegion string,
	timeout time.Duration,
) *Ingestor {
	return &Ingestor{
		resolver:      resolver,
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		logger:        logger.With("component", "ingestor"),
		defaultRegion: defaultRegion,
		timeout:       timeout,
	}
}

// Ingest processes one inbound message event for the tenant. ownerUserID is
// the internal user whose thread receives the message; requester scopes
// contact resolution.
//
// Redelivering the same provider message id returns IngestDuplicate with no
// aggregate change and no re-emitted events, regardless of how many handlers
// race on it. The dedup decision is made by the atomic insert itself, so a
// delivery that times out before that point is always safe to retry.
func (i *Ingestor) Ingest(ctx context.Context, tenantID, ownerUserID uuid.UUID, requester domain.Requester, event domain.InboundMessageEvent) (IngestResult, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	webhookEventsReceivedCounter.WithLabelValues("message").Inc()
	start := time.Now()
	defer func() {
		ingestDurationHist.Observe(time.Since(start).Seconds())
	}()

	logger := i.logger.With(
		"tenant_id", tenantID,
		"provider_message_id", event.ProviderMessageID,
	)

	if event.ProviderMessageID == "" {
		// Without a provider id the dedup constraint cannot protect us;
		// under retries such an event would grow without bound.
		messagesIngestedCounter.WithLabelValues("missing_provider_id").Inc()
		logger.WarnContext(ctx, "Dropping inbound event without provider message id", "from", event.From)
		return IngestResult{}, domain.ErrMissingProviderID
	}

	normalized, err := phone.Normalize(event.From, i.defaultRegion)
	if err != nil {
		messagesIngestedCounter.WithLabelValues("invalid_sender").Inc()
		logger.WarnContext(ctx, "Dropping inbound event with unparseable sender", "from", event.From, "error", err)
		return IngestResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidSender, err)
	}

	contact, err := i.resolver.Resolve(ctx, tenantID, normalized.Normalized, requester)
	if err != nil {
		messagesIngestedCounter.WithLabelValues("error").Inc()
		return IngestResult{}, fmt.Errorf("resolve contact: %w", err)
	}
	var contactID uuid.NullUUID
	if contact != nil {
		contactID = uuid.NullUUID{UUID: contact.ID, Valid: true}
	}

	conv, err := i.conversations.FindOrCreate(ctx, tenantID, ownerUserID, normalized.Normalized, contactID)
	if err != nil {
		messagesIngestedCounter.WithLabelValues("error").Inc()
		return IngestResult{}, fmt.Errorf("find or create conversation: %w", err)
	}

	msg := &domain.Message{
		ID:                uuid.New(),
		ConversationID:    conv.ID,
		TenantID:          tenantID,
		Sender:            domain.SenderContact,
		Body:              event.Body,
		MessageType:       parseMessageType(event.MessageType),
		ProviderMessageID: sql.NullString{String: event.ProviderMessageID, Valid: true},
		Status:            domain.StatusReceived,
		CreatedAt:         event.Timestamp,
	}
	if event.MediaURL != "" {
		msg.MediaURL = sql.NullString{String: event.MediaURL, Valid: true}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := i.messages.Insert(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDuplicateMessage) {
			// Benign redelivery: another handler already won the insert.
			messagesIngestedCounter.WithLabelValues("duplicate").Inc()
			logger.InfoContext(ctx, "Duplicate delivery ignored", "conversation_id", conv.ID)
			return IngestResult{Outcome: IngestDuplicate, ConversationID: conv.ID}, nil
		}
		messagesIngestedCounter.WithLabelValues("error").Inc()
		return IngestResult{}, fmt.Errorf("insert message: %w", err)
	}

	// Aggregates are a recomputable cache; their failure must never undo the
	// message insert, so this runs as a best-effort follow-up.
	unread, aggErr := i.conversations.ApplyInboundAggregate(ctx, conv.ID, previewOf(msg), msg.CreatedAt)
	if aggErr != nil {
		logger.WarnContext(ctx, "Aggregate update failed after message insert",
			"conversation_id", conv.ID,
			"message_id", msg.ID,
			"error", aggErr,
		)
	}

	if err := i.publisher.MessageReceived(ctx, domain.MessageReceivedEvent{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish message received event", "message_id", msg.ID, "error", err)
	}
	if aggErr == nil {
		if err := i.publisher.ConversationUpdated(ctx, domain.ConversationUpdatedEvent{
			TenantID:       tenantID,
			ConversationID: conv.ID,
			LastMessage:    previewOf(msg),
			UnreadCount:    unread,
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish conversation updated event", "conversation_id", conv.ID, "error", err)
		}
	}

	messagesIngestedCounter.WithLabelValues("created").Inc()
	logger.InfoContext(ctx, "Inbound message persisted",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"contact_linked", contactID.Valid,
	)
	return IngestResult{Outcome: IngestCreated, MessageID: msg.ID, ConversationID: conv.ID}, nil
}

func parseMessageType(s string) domain.MessageType {
	switch domain.MessageType(s) {
	case domain.MessageTypeImage, domain.MessageTypeAudio, domain.MessageTypeVideo,
		domain.MessageTypeDocument, domain.MessageTypeLocation:
		return domain.MessageType(s)
	default:
		return domain.MessageTypeText
	}
}

// previewOf is the conversation list preview for a message. Media messages
// without a caption show a type placeholder.
func previewOf(msg *domain.Message) string {
	if msg.Body != "" {
		return msg.Body
	}
	if msg.MessageType != domain.MessageTypeText {
		return "[" + string(msg.MessageType) + "]"
	}
	return ""
}
