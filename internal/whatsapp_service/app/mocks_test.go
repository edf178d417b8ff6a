package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) ListByNormalizedPhone(ctx context.Context, tenantID uuid.UUID, normalizedPhone string) ([]*domain.Contact, error) {
	args := m.Called(ctx, tenantID, normalizedPhone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contact), args.Error(1)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) FindOrCreate(ctx context.Context, tenantID, userID uuid.UUID, normalizedPhone string, contactID uuid.NullUUID) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, userID, normalizedPhone, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ApplyInboundAggregate(ctx context.Context, conversationID uuid.UUID, lastMessage string, lastMessageAt time.Time) (int, error) {
	args := m.Called(ctx, conversationID, lastMessage, lastMessageAt)
	return args.Int(0), args.Error(1)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) List(ctx context.Context, tenantID uuid.UUID, userID uuid.NullUUID, limit, offset int) ([]*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) MarkRead(ctx context.Context, tenantID, conversationID uuid.UUID) error {
	args := m.Called(ctx, tenantID, conversationID)
	return args.Error(0)
}

func (m *MockConversationRepository) SetAIEnabled(ctx context.Context, tenantID, conversationID uuid.UUID, enabled bool) error {
	args := m.Called(ctx, tenantID, conversationID, enabled)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateStatus(ctx context.Context, tenantID uuid.UUID, providerMessageID string, newStatus domain.MessageStatus) (uuid.UUID, bool, error) {
	args := m.Called(ctx, tenantID, providerMessageID, newStatus)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) MessageReceived(ctx context.Context, ev domain.MessageReceivedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockEventPublisher) ConversationUpdated(ctx context.Context, ev domain.ConversationUpdatedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockEventPublisher) StatusChanged(ctx context.Context, ev domain.StatusChangedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
