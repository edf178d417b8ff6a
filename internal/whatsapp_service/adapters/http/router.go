package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the service routes. The webhook path carries no auth
// middleware: its verification happens at the transport boundary upstream.
func NewRouter(webhooks *WebhookHandler, conversations *ConversationHandler, auth *AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/webhooks/whatsapp/{tenantID}/{userID}", webhooks.HandleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireClaims)
		r.Get("/conversations", conversations.ListConversations)
		r.Get("/conversations/{conversationID}/messages", conversations.ListMessages)
		r.Post("/conversations/{conversationID}/read", conversations.MarkRead)
		r.Patch("/conversations/{conversationID}/ai", conversations.SetAIEnabled)
	})

	return r
}
