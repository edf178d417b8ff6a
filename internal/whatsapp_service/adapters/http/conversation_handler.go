package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/app"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

// ConversationHandler serves the inbox read side and the small set of
// administrative mutations (mark read, AI toggle).
type ConversationHandler struct {
	queries  *app.QueryService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewConversationHandler(queries *app.QueryService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		queries:  queries,
		validate: validator.New(),
		logger:   logger.With("component", "conversation_handler"),
	}
}

// ListConversations returns the requester's visible conversations ordered by
// last activity.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, requester, ok := h.identity(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	conversations, err := h.queries.GetConversations(ctx, tenantID, requester, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list conversations", "tenant_id", tenantID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, toConversationResponse(conv))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListMessages returns a conversation's messages ordered by the provider
// timestamp.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	if _, err := h.queries.GetConversation(ctx, tenantID, conversationID); err != nil {
		h.notFoundOrError(w, r, err, conversationID)
		return
	}

	limit, offset := pagination(r)
	messages, err := h.queries.GetMessages(ctx, conversationID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list messages", "conversation_id", conversationID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead resets the unread counter. Idempotent.
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	if err := h.queries.MarkRead(ctx, tenantID, conversationID); err != nil {
		h.notFoundOrError(w, r, err, conversationID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAIEnabled toggles AI auto-responses for the conversation.
func (h *ConversationHandler) SetAIEnabled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	var req setAIEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "enabled field is required", http.StatusBadRequest)
		return
	}

	if err := h.queries.SetAIEnabled(ctx, tenantID, conversationID, *req.Enabled); err != nil {
		h.notFoundOrError(w, r, err, conversationID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) identity(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.Requester, bool) {
	tenantID, ok := tenantFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing identity", http.StatusUnauthorized)
		return uuid.Nil, domain.Requester{}, false
	}
	requester, ok := requesterFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing identity", http.StatusUnauthorized)
		return uuid.Nil, domain.Requester{}, false
	}
	return tenantID, requester, true
}

func (h *ConversationHandler) conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "Invalid conversation id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ConversationHandler) notFoundOrError(w http.ResponseWriter, r *http.Request, err error, conversationID uuid.UUID) {
	if errors.Is(err, domain.ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	h.logger.ErrorContext(r.Context(), "Conversation operation failed", "conversation_id", conversationID, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
