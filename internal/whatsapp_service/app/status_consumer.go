package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/siddartha1192/bharat-crm-sub003/internal/platform/messagebroker"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

const statusCallbackQueueGroup = "whatsapp_ingestion_status"

// statusSink narrows the reconciler for the consumer.
type statusSink interface {
	ApplyStatus(ctx context.Context, tenantID uuid.UUID, event domain.StatusEvent) error
}

// StatusConsumer consumes provider status callbacks relayed over NATS by edge
// receivers that cannot reach this service over HTTP. Subjects carry the
// tenant id as their last token; the payload is a single StatusEvent. The
// queue group shares the subscription across service instances.
type StatusConsumer struct {
	natsClient *messagebroker.NATSClient
	statuses   statusSink
	logger     *slog.Logger
}

func NewStatusConsumer(natsClient *messagebroker.NATSClient, statuses statusSink, logger *slog.Logger) *StatusConsumer {
	return &StatusConsumer{
		natsClient: natsClient,
		statuses:   statuses,
		logger:     logger.With("component", "status_consumer"),
	}
}

// Run subscribes to the raw status subject and blocks until ctx is cancelled.
func (c *StatusConsumer) Run(ctx context.Context) error {
	return c.natsClient.SubscribeToSubjectWithQueue(ctx, domain.SubjectStatusCallbackRawWildcard, statusCallbackQueueGroup, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg.Subject, msg.Data)
	})
}

// handleMessage processes one callback. Malformed subjects and payloads are
// logged and dropped; there is no NATS-level retry for them, matching the
// webhook rule that a permanently bad event never blocks the stream.
func (c *StatusConsumer) handleMessage(ctx context.Context, subject string, data []byte) {
	natsStatusCallbacksCounter.WithLabelValues("received").Inc()

	if !strings.HasPrefix(subject, domain.SubjectStatusCallbackRaw+".") {
		natsStatusCallbacksCounter.WithLabelValues("bad_subject").Inc()
		c.logger.ErrorContext(ctx, "Unexpected subject on status callback subscription", "subject", subject)
		return
	}
	tenantToken := subject[strings.LastIndex(subject, ".")+1:]
	tenantID, err := uuid.Parse(tenantToken)
	if err != nil {
		natsStatusCallbacksCounter.WithLabelValues("bad_subject").Inc()
		c.logger.ErrorContext(ctx, "Status callback subject carries no tenant id", "subject", subject, "error", err)
		return
	}

	var event domain.StatusEvent
	if err := json.Unmarshal(data, &event); err != nil {
		natsStatusCallbacksCounter.WithLabelValues("bad_payload").Inc()
		c.logger.ErrorContext(ctx, "Failed to deserialize status callback",
			"subject", subject,
			"data_len", len(data),
			"error", err,
		)
		return
	}

	if err := c.statuses.ApplyStatus(ctx, tenantID, event); err != nil {
		// Invalid status values land here; unknown messages are buffered
		// inside the reconciler and never error.
		natsStatusCallbacksCounter.WithLabelValues("rejected").Inc()
		c.logger.WarnContext(ctx, "Status callback rejected",
			"tenant_id", tenantID,
			"provider_message_id", event.ProviderMessageID,
			"error", err,
		)
		return
	}
	natsStatusCallbacksCounter.WithLabelValues("handled").Inc()
}
