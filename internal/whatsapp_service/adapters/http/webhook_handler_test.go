package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/app"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, tenantID, ownerUserID uuid.UUID, requester domain.Requester, event domain.InboundMessageEvent) (app.IngestResult, error) {
	args := m.Called(ctx, tenantID, ownerUserID, requester, event)
	return args.Get(0).(app.IngestResult), args.Error(1)
}

type MockStatusApplier struct {
	mock.Mock
}

func (m *MockStatusApplier) ApplyStatus(ctx context.Context, tenantID uuid.UUID, event domain.StatusEvent) error {
	args := m.Called(ctx, tenantID, event)
	return args.Error(0)
}

func setupWebhookTest(t *testing.T) (*chi.Mux, *MockIngestor, *MockStatusApplier) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingestor := new(MockIngestor)
	applier := new(MockStatusApplier)
	handler := NewWebhookHandler(ingestor, applier, logger)

	r := chi.NewRouter()
	r.Post("/webhooks/whatsapp/{tenantID}/{userID}", handler.HandleWebhook)
	return r, ingestor, applier
}

func postWebhook(t *testing.T, router *chi.Mux, tenantID, userID uuid.UUID, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/"+tenantID.String()+"/"+userID.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func messagePayload(providerID string) map[string]any {
	return map[string]any{
		"events": []map[string]any{
			{
				"type": "message",
				"message": map[string]any{
					"provider_message_id": providerID,
					"from":                "+919876543210",
					"message_type":        "text",
					"body":                "hello",
					"timestamp":           time.Now().UTC().Format(time.RFC3339),
				},
			},
		},
	}
}

func TestHandleWebhook_MessageEventProcessed(t *testing.T) {
	router, ingestor, _ := setupWebhookTest(t)
	tenantID := uuid.New()
	userID := uuid.New()

	ingestor.On("Ingest", mock.Anything, tenantID, userID,
		domain.Requester{UserID: userID, Role: domain.RoleAgent},
		mock.MatchedBy(func(ev domain.InboundMessageEvent) bool {
			return ev.ProviderMessageID == "wamid-1" && ev.From == "+919876543210"
		})).Return(app.IngestResult{Outcome: app.IngestCreated, MessageID: uuid.New()}, nil)

	rec := postWebhook(t, router, tenantID, userID, messagePayload("wamid-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, webhookResponse{Processed: 1}, resp)
}

func TestHandleWebhook_DuplicateReportedAsOK(t *testing.T) {
	router, ingestor, _ := setupWebhookTest(t)
	tenantID := uuid.New()
	userID := uuid.New()

	ingestor.On("Ingest", mock.Anything, tenantID, userID, mock.Anything, mock.Anything).
		Return(app.IngestResult{Outcome: app.IngestDuplicate}, nil)

	rec := postWebhook(t, router, tenantID, userID, messagePayload("wamid-1"))

	require.Equal(t, http.StatusOK, rec.Code, "duplicates are never surfaced as errors")
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, webhookResponse{Duplicates: 1}, resp)
}

func TestHandleWebhook_MalformedEventDoesNotKillSiblings(t *testing.T) {
	router, ingestor, applier := setupWebhookTest(t)
	tenantID := uuid.New()
	userID := uuid.New()

	payload := map[string]any{
		"events": []map[string]any{
			{"type": "message"}, // no message body at all
			{
				"type": "status",
				"status": map[string]any{
					"provider_message_id": "wamid-2",
					"status":              "delivered",
					"timestamp":           time.Now().UTC().Format(time.RFC3339),
				},
			},
		},
	}

	applier.On("ApplyStatus", mock.Anything, tenantID, mock.MatchedBy(func(ev domain.StatusEvent) bool {
		return ev.ProviderMessageID == "wamid-2" && ev.Status == "delivered"
	})).Return(nil)

	rec := postWebhook(t, router, tenantID, userID, payload)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, webhookResponse{Processed: 1, Failed: 1}, resp)
	ingestor.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	applier.AssertExpectations(t)
}

func TestHandleWebhook_DroppedEventsAreNotRetried(t *testing.T) {
	router, ingestor, _ := setupWebhookTest(t)
	tenantID := uuid.New()
	userID := uuid.New()

	ingestor.On("Ingest", mock.Anything, tenantID, userID, mock.Anything, mock.Anything).
		Return(app.IngestResult{}, domain.ErrMissingProviderID)

	rec := postWebhook(t, router, tenantID, userID, messagePayload(""))

	// Permanently malformed events answer 200 so the provider stops
	// redelivering them.
	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, webhookResponse{Failed: 1}, resp)
}

func TestHandleWebhook_StorageTroubleSignalsRetry(t *testing.T) {
	router, ingestor, _ := setupWebhookTest(t)
	tenantID := uuid.New()
	userID := uuid.New()

	ingestor.On("Ingest", mock.Anything, tenantID, userID, mock.Anything, mock.Anything).
		Return(app.IngestResult{}, errors.New("connect: connection refused"))

	rec := postWebhook(t, router, tenantID, userID, messagePayload("wamid-1"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "provider must redeliver on storage failure")
}

func TestHandleWebhook_BadRouteParams(t *testing.T) {
	router, _, _ := setupWebhookTest(t)

	body, _ := json.Marshal(messagePayload("wamid-1"))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/not-a-uuid/"+uuid.NewString(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_EmptyPayloadRejected(t *testing.T) {
	router, _, _ := setupWebhookTest(t)
	rec := postWebhook(t, router, uuid.New(), uuid.New(), map[string]any{"events": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
