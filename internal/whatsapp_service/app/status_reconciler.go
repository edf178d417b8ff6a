package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

// StatusReconciler applies out-of-band delivery/read status updates keyed by
// provider message id, independently of ingestion.
//
// Status events can race ahead of their message's insert under concurrent
// webhook handlers. Events with no matching message are buffered in-process
// for a short window and retried; past the window they are dropped with a
// log. The buffer is deliberately not persisted: losing it on restart only
// costs a provider-side retry.
type StatusReconciler struct {
	messages  domain.MessageRepository
	publisher EventPublisher
	logger    *slog.Logger
	window    time.Duration

	mu      sync.Mutex
	pending []pendingStatus
}

type pendingStatus struct {
	tenantID          uuid.UUID
	providerMessageID string
	status            domain.MessageStatus
	expiresAt         time.Time
}

func NewStatusReconciler(messages domain.MessageRepository, publisher EventPublisher, logger *slog.Logger, window time.Duration) *StatusReconciler {
	return &StatusReconciler{
		messages:  messages,
		publisher: publisher,
		logger:    logger.With("component", "status_reconciler"),
		window:    window,
	}
}

// ApplyStatus applies one status event. Transitions are monotonic: received <
// sent < delivered < read, failed terminal from any prior state. A regressive
// update is ignored so displayed status never moves backward. An event whose
// message is unknown is buffered (or dropped once the window is exhausted)
// and never surfaces as an error.
func (r *StatusReconciler) ApplyStatus(ctx context.Context, tenantID uuid.UUID, event domain.StatusEvent) error {
	webhookEventsReceivedCounter.WithLabelValues("status").Inc()

	status, ok := domain.ParseMessageStatus(event.Status)
	if !ok {
		statusUpdatesCounter.WithLabelValues("invalid_status").Inc()
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatusValue, event.Status)
	}

	applied, err := r.apply(ctx, tenantID, event.ProviderMessageID, status)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMessage) {
			r.buffer(ctx, tenantID, event.ProviderMessageID, status)
			return nil
		}
		statusUpdatesCounter.WithLabelValues("error").Inc()
		return err
	}
	if !applied {
		statusUpdatesCounter.WithLabelValues("ignored").Inc()
		r.logger.DebugContext(ctx, "Ignored regressive status update",
			"tenant_id", tenantID,
			"provider_message_id", event.ProviderMessageID,
			"status", status,
		)
	}
	return nil
}

// Run flushes the buffer periodically until ctx is cancelled. Intended to be
// started once per process alongside the HTTP server.
func (r *StatusReconciler) Run(ctx context.Context) error {
	interval := r.window / 6
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *StatusReconciler) apply(ctx context.Context, tenantID uuid.UUID, providerMessageID string, status domain.MessageStatus) (bool, error) {
	messageID, applied, err := r.messages.UpdateStatus(ctx, tenantID, providerMessageID, status)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	statusUpdatesCounter.WithLabelValues("applied").Inc()
	if err := r.publisher.StatusChanged(ctx, domain.StatusChangedEvent{
		TenantID:  tenantID,
		MessageID: messageID,
		Status:    status,
	}); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish status changed event",
			"message_id", messageID,
			"status", status,
			"error", err,
		)
	}
	return true, nil
}

func (r *StatusReconciler) buffer(ctx context.Context, tenantID uuid.UUID, providerMessageID string, status domain.MessageStatus) {
	if r.window <= 0 {
		statusUpdatesCounter.WithLabelValues("dropped").Inc()
		r.logger.WarnContext(ctx, "Dropping status update for unknown message (buffering disabled)",
			"tenant_id", tenantID,
			"provider_message_id", providerMessageID,
			"status", status,
		)
		return
	}

	r.mu.Lock()
	r.pending = append(r.pending, pendingStatus{
		tenantID:          tenantID,
		providerMessageID: providerMessageID,
		status:            status,
		expiresAt:         time.Now().Add(r.window),
	})
	statusBufferGauge.Set(float64(len(r.pending)))
	r.mu.Unlock()

	statusUpdatesCounter.WithLabelValues("buffered").Inc()
	r.logger.InfoContext(ctx, "Buffered status update awaiting its message",
		"tenant_id", tenantID,
		"provider_message_id", providerMessageID,
		"status", status,
		"window", r.window,
	)
}

// flush retries every buffered event once; entries still unknown past their
// deadline are dropped.
func (r *StatusReconciler) flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	now := time.Now()
	var keep []pendingStatus
	for _, p := range batch {
		_, err := r.apply(ctx, p.tenantID, p.providerMessageID, p.status)
		switch {
		case err == nil:
			// Applied or ignored as regressive; either way it is settled.
		case errors.Is(err, domain.ErrUnknownMessage):
			if now.Before(p.expiresAt) {
				keep = append(keep, p)
				continue
			}
			statusUpdatesCounter.WithLabelValues("dropped").Inc()
			r.logger.WarnContext(ctx, "Dropping status update: message never arrived within window",
				"tenant_id", p.tenantID,
				"provider_message_id", p.providerMessageID,
				"status", p.status,
			)
		default:
			// Transient storage trouble; retry until the window closes.
			if now.Before(p.expiresAt) {
				keep = append(keep, p)
				continue
			}
			statusUpdatesCounter.WithLabelValues("dropped").Inc()
			r.logger.ErrorContext(ctx, "Dropping status update after repeated failures",
				"tenant_id", p.tenantID,
				"provider_message_id", p.providerMessageID,
				"status", p.status,
				"error", err,
			)
		}
	}

	r.mu.Lock()
	r.pending = append(r.pending, keep...)
	statusBufferGauge.Set(float64(len(r.pending)))
	r.mu.Unlock()
}
