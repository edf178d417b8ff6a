package domain

import "time"

// InboundMessageEvent is one message event extracted from a verified webhook
// payload. Timestamp is when the provider accepted the message, not when we
// received the callback.
type InboundMessageEvent struct {
	ProviderMessageID string    `json:"provider_message_id"`
	From              string    `json:"from"`
	MessageType       string    `json:"message_type"`
	Body              string    `json:"body,omitempty"`
	MediaURL          string    `json:"media_url,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// StatusEvent is one delivery/read status event from a webhook payload,
// keyed by the provider message id of the message it refers to.
type StatusEvent struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
}
