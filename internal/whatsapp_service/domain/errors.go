package domain

import "errors"

var (
	// ErrMissingProviderID means an inbound message event carried no provider
	// message id. Such events cannot be deduplicated and are dropped.
	ErrMissingProviderID = errors.New("inbound event has no provider message id")

	// ErrInvalidSender means the sender phone could not be normalized even
	// with the tenant's region hint, so no conversation can be addressed.
	ErrInvalidSender = errors.New("sender phone number is not parseable")

	// ErrDuplicateMessage is returned by the message repository when the
	// (tenant_id, conversation_id, provider_message_id) uniqueness constraint
	// fires. It is a normal outcome under webhook redelivery, not a failure.
	ErrDuplicateMessage = errors.New("message already persisted for provider message id")

	// ErrUnknownMessage means a status update referenced a provider message id
	// that has no persisted message within the tenant.
	ErrUnknownMessage = errors.New("no message found for provider message id")

	// ErrInvalidStatusValue means a status event carried a status string
	// outside the known lifecycle.
	ErrInvalidStatusValue = errors.New("unrecognized message status")

	// ErrConversationNotFound is returned for lookups of a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")
)
