package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

type PgContactRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewPgContactRepository(db Querier, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: db, logger: logger}
}

// ListByNormalizedPhone returns all contacts in the tenant matching the
// normalized phone exactly. No partial or suffix matching: last-N-digits
// fallbacks collapse distinct international numbers into false matches.
// Ordering matches the resolver's tie-break so results stay deterministic.
func (r *PgContactRepository) ListByNormalizedPhone(ctx context.Context, tenantID uuid.UUID, normalizedPhone string) ([]*domain.Contact, error) {
	query := `
		SELECT id, tenant_id, owner_user_id, assigned_user_id, name, raw_phone, normalized_phone, created_at, updated_at
		FROM contacts
		WHERE tenant_id = $1 AND normalized_phone = $2
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := r.db.Query(ctx, query, tenantID, normalizedPhone)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing contacts by phone", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		ct := &domain.Contact{}
		if err := rows.Scan(
			&ct.ID, &ct.TenantID, &ct.OwnerUserID, &ct.AssignedUserID,
			&ct.Name, &ct.RawPhone, &ct.NormalizedPhone, &ct.CreatedAt, &ct.UpdatedAt,
		); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning contact row", "error", err, "tenant_id", tenantID)
			return nil, err
		}
		contacts = append(contacts, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}
