package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

func setupMessageTest(t *testing.T) (*PgMessageRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgMessageRepository(mockPool, logger)
	return repo, mockPool
}

func sampleMessage() *domain.Message {
	return &domain.Message{
		ID:                uuid.New(),
		ConversationID:    uuid.New(),
		TenantID:          uuid.New(),
		Sender:            domain.SenderContact,
		Body:              "hello",
		MessageType:       domain.MessageTypeText,
		ProviderMessageID: sql.NullString{String: "wamid.test.1", Valid: true},
		Status:            domain.StatusReceived,
		CreatedAt:         time.Now().Add(-time.Minute),
	}
}

func TestPgMessageRepository_Insert(t *testing.T) {
	repo, mockPool := setupMessageTest(t)
	defer mockPool.Close()

	t.Run("Inserted", func(t *testing.T) {
		msg := sampleMessage()
		mockPool.ExpectExec(`INSERT INTO whatsapp_messages`).
			WithArgs(msg.ID, msg.ConversationID, msg.TenantID, msg.Sender, msg.Body,
				msg.MessageType, msg.MediaURL, msg.ProviderMessageID, msg.Status, msg.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Insert(context.Background(), msg)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UniqueViolationMapsToDuplicate", func(t *testing.T) {
		msg := sampleMessage()
		mockPool.ExpectExec(`INSERT INTO whatsapp_messages`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_messages_dedup"})

		err := repo.Insert(context.Background(), msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDuplicateMessage)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("OtherPgErrorPassesThrough", func(t *testing.T) {
		msg := sampleMessage()
		pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "whatsapp_messages_conversation_id_fkey"}
		mockPool.ExpectExec(`INSERT INTO whatsapp_messages`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgErr)

		err := repo.Insert(context.Background(), msg)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrDuplicateMessage)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgMessageRepository_UpdateStatus(t *testing.T) {
	repo, mockPool := setupMessageTest(t)
	defer mockPool.Close()

	tenantID := uuid.New()
	providerID := "wamid.test.2"

	t.Run("Applied", func(t *testing.T) {
		messageID := uuid.New()
		mockPool.ExpectQuery(`UPDATE whatsapp_messages`).
			WithArgs(tenantID, providerID, domain.StatusDelivered, []string{"received", "sent"}).
			WillReturnRows(mockPool.NewRows([]string{"id"}).AddRow(messageID))

		gotID, applied, err := repo.UpdateStatus(context.Background(), tenantID, providerID, domain.StatusDelivered)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, messageID, gotID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RegressiveUpdatesZeroRows", func(t *testing.T) {
		// Row already at "read": the guard excludes it from the allowed
		// priors so the UPDATE matches nothing; the probe finds the row
		// and the update is reported as not applied, without error.
		messageID := uuid.New()
		mockPool.ExpectQuery(`UPDATE whatsapp_messages`).
			WithArgs(tenantID, providerID, domain.StatusSent, []string{"received"}).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(`SELECT id FROM whatsapp_messages`).
			WithArgs(tenantID, providerID).
			WillReturnRows(mockPool.NewRows([]string{"id"}).AddRow(messageID))

		gotID, applied, err := repo.UpdateStatus(context.Background(), tenantID, providerID, domain.StatusSent)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, messageID, gotID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownMessage", func(t *testing.T) {
		mockPool.ExpectQuery(`UPDATE whatsapp_messages`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectQuery(`SELECT id FROM whatsapp_messages`).
			WithArgs(tenantID, providerID).
			WillReturnError(pgx.ErrNoRows)

		_, applied, err := repo.UpdateStatus(context.Background(), tenantID, providerID, domain.StatusDelivered)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnknownMessage)
		assert.False(t, applied)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery(`UPDATE whatsapp_messages`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(dbErr)

		_, applied, err := repo.UpdateStatus(context.Background(), tenantID, providerID, domain.StatusDelivered)
		require.Error(t, err)
		assert.False(t, applied)
		assert.Contains(t, err.Error(), dbErr.Error())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgMessageRepository_ListByConversation(t *testing.T) {
	repo, mockPool := setupMessageTest(t)
	defer mockPool.Close()

	conversationID := uuid.New()
	tenantID := uuid.New()
	older := uuid.New()
	newer := uuid.New()
	base := time.Now().Add(-time.Hour)

	columns := []string{"id", "conversation_id", "tenant_id", "sender", "body", "message_type", "media_url", "provider_message_id", "status", "created_at"}

	t.Run("OrderedByProviderTimestamp", func(t *testing.T) {
		rows := mockPool.NewRows(columns).
			AddRow(older, conversationID, tenantID, domain.SenderContact, "first", domain.MessageTypeText,
				sql.NullString{}, sql.NullString{String: "wamid.a", Valid: true}, domain.StatusReceived, base).
			AddRow(newer, conversationID, tenantID, domain.SenderContact, "second", domain.MessageTypeText,
				sql.NullString{}, sql.NullString{String: "wamid.b", Valid: true}, domain.StatusReceived, base.Add(time.Minute))

		mockPool.ExpectQuery(`FROM whatsapp_messages`).
			WithArgs(conversationID, 50, 0).
			WillReturnRows(rows)

		messages, err := repo.ListByConversation(context.Background(), conversationID, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, older, messages[0].ID)
		assert.Equal(t, newer, messages[1].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("query failed")
		mockPool.ExpectQuery(`FROM whatsapp_messages`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(dbErr)

		messages, err := repo.ListByConversation(context.Background(), conversationID, 50, 0)
		require.Error(t, err)
		assert.Nil(t, messages)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
