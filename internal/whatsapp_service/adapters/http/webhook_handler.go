package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/app"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

const maxWebhookBodySize = 1 << 20 // 1 MB

// messageIngestor and statusApplier narrow the app services for mocking.
type messageIngestor interface {
	Ingest(ctx context.Context, tenantID, ownerUserID uuid.UUID, requester domain.Requester, event domain.InboundMessageEvent) (app.IngestResult, error)
}

type statusApplier interface {
	ApplyStatus(ctx context.Context, tenantID uuid.UUID, event domain.StatusEvent) error
}

// WebhookHandler receives verified WhatsApp webhook deliveries. The
// transport-level challenge/signature handshake happens upstream; by the time
// a payload reaches this handler it is authenticated.
type WebhookHandler struct {
	ingestor   messageIngestor
	reconciler statusApplier
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewWebhookHandler(ingestor messageIngestor, reconciler statusApplier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestor:   ingestor,
		reconciler: reconciler,
		validate:   validator.New(),
		logger:     logger.With("component", "webhook_handler"),
	}
}

// HandleWebhook processes a multi-event payload for the tenant/user encoded
// in the route. Events are isolated: a malformed or dropped event never stops
// its siblings. The response is 200 unless some event hit transient storage
// trouble, in which case 503 tells the provider to redeliver; the dedup
// constraint makes the redelivery safe for the events that did land.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "Invalid tenant id", http.StatusBadRequest)
		return
	}
	ownerUserID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	logger = logger.With("tenant_id", tenantID, "user_id", ownerUserID)

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		logger.WarnContext(ctx, "Malformed webhook payload", "error", err, "payload_size", len(rawPayload))
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&payload); err != nil {
		logger.WarnContext(ctx, "Webhook payload failed validation", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	// The ingest-time requester is the thread owner under the most
	// restrictive role; richer visibility only matters on the query side.
	requester := domain.Requester{UserID: ownerUserID, Role: domain.RoleAgent}

	var resp webhookResponse
	var transientFailure bool

	for idx, event := range payload.Events {
		if err := h.validate.Struct(&event); err != nil {
			// Terminal for this event only; siblings still process.
			resp.Failed++
			logger.WarnContext(ctx, "Dropped malformed webhook event", "event_index", idx, "error", err)
			continue
		}

		switch event.Type {
		case "message":
			webhookEventsReceivedLog(logger, ctx, "message", idx)
			res, err := h.ingestor.Ingest(ctx, tenantID, ownerUserID, requester, event.Message.toDomain())
			switch {
			case err == nil && res.Outcome == app.IngestDuplicate:
				resp.Duplicates++
			case err == nil:
				resp.Processed++
			case errors.Is(err, domain.ErrMissingProviderID), errors.Is(err, domain.ErrInvalidSender):
				// Permanently malformed: dropped, siblings continue.
				resp.Failed++
			default:
				transientFailure = true
				logger.ErrorContext(ctx, "Transient failure ingesting message event", "event_index", idx, "error", err)
			}
		case "status":
			webhookEventsReceivedLog(logger, ctx, "status", idx)
			// ApplyStatus only errors on malformed status values or storage
			// trouble; unknown messages are buffered inside.
			err := h.reconciler.ApplyStatus(ctx, tenantID, event.Status.toDomain())
			switch {
			case err == nil:
				resp.Processed++
			case errors.Is(err, domain.ErrInvalidStatusValue):
				resp.Failed++
				logger.WarnContext(ctx, "Dropped malformed status event", "event_index", idx, "error", err)
			default:
				transientFailure = true
				logger.ErrorContext(ctx, "Transient failure applying status event", "event_index", idx, "error", err)
			}
		}
	}

	if transientFailure {
		// Signal the provider to redeliver the whole payload.
		http.Error(w, "Temporary storage failure, retry delivery", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WarnContext(ctx, "Failed to write webhook response", "error", err)
	}
	logger.InfoContext(ctx, "Webhook delivery processed",
		"processed", resp.Processed,
		"duplicates", resp.Duplicates,
		"failed", resp.Failed,
	)
}

func webhookEventsReceivedLog(logger *slog.Logger, ctx context.Context, eventType string, idx int) {
	logger.DebugContext(ctx, "Processing webhook event", "event_type", eventType, "event_index", idx)
}
