package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

// EventPublisher publishes domain events for the realtime, AI responder and
// read-receipt layers. Implementations must be safe for concurrent use.
type EventPublisher interface {
	MessageReceived(ctx context.Context, ev domain.MessageReceivedEvent) error
	ConversationUpdated(ctx context.Context, ev domain.ConversationUpdatedEvent) error
	StatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error
}

// natsPublisher is the subset of the messagebroker client the publisher
// needs; narrowed for mocking in tests.
type natsPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventPublisher emits domain events as JSON over NATS core subjects.
type NATSEventPublisher struct {
	broker natsPublisher
	logger *slog.Logger
}

func NewNATSEventPublisher(broker natsPublisher, logger *slog.Logger) *NATSEventPublisher {
	return &NATSEventPublisher{
		broker: broker,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *NATSEventPublisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}
	if err := p.broker.Publish(ctx, subject, data); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Published domain event", "subject", subject, "payload_size", len(data))
	return nil
}

func (p *NATSEventPublisher) MessageReceived(ctx context.Context, ev domain.MessageReceivedEvent) error {
	return p.publish(ctx, domain.SubjectMessageReceived, ev)
}

func (p *NATSEventPublisher) ConversationUpdated(ctx context.Context, ev domain.ConversationUpdatedEvent) error {
	return p.publish(ctx, domain.SubjectConversationUpdated, ev)
}

func (p *NATSEventPublisher) StatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error {
	return p.publish(ctx, domain.SubjectStatusChanged, ev)
}
