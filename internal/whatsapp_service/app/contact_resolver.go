package app

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

// ContactResolver picks the single best-fit contact for a normalized phone
// under the requester's visibility scope.
type ContactResolver struct {
	contactRepo domain.ContactRepository
	logger      *slog.Logger
}

func NewContactResolver(contactRepo domain.ContactRepository, logger *slog.Logger) *ContactResolver {
	return &ContactResolver{
		contactRepo: contactRepo,
		logger:      logger.With("component", "contact_resolver"),
	}
}

// Resolve gathers candidates by exact normalized-phone match within the
// tenant, filters them through the requester's visibility predicate, and
// tie-breaks deterministically: a contact assigned to the requester wins,
// then the most recently updated, then the lowest id.
//
// Contacts existing tenant-wide but invisible to the requester yield nil, not
// an error: a visibility gap must never block message ingestion.
func (r *ContactResolver) Resolve(ctx context.Context, tenantID uuid.UUID, normalizedPhone string, requester domain.Requester) (*domain.Contact, error) {
	candidates, err := r.contactRepo.ListByNormalizedPhone(ctx, tenantID, normalizedPhone)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	visible := candidates[:0:0]
	for _, c := range candidates {
		if requester.CanSee(c) {
			visible = append(visible, c)
		}
	}
	if len(visible) == 0 {
		r.logger.DebugContext(ctx, "Contacts exist for phone but none visible to requester",
			"tenant_id", tenantID,
			"normalized_phone", normalizedPhone,
			"requester_id", requester.UserID,
			"requester_role", requester.Role,
			"candidate_count", len(candidates),
		)
		return nil, nil
	}
	if len(visible) == 1 {
		return visible[0], nil
	}

	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		aAssigned := a.AssignedUserID.Valid && a.AssignedUserID.UUID == requester.UserID
		bAssigned := b.AssignedUserID.Valid && b.AssignedUserID.UUID == requester.UserID
		if aAssigned != bAssigned {
			return aAssigned
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	r.logger.DebugContext(ctx, "Multiple visible contacts for phone, tie-break applied",
		"tenant_id", tenantID,
		"normalized_phone", normalizedPhone,
		"visible_count", len(visible),
		"chosen_contact_id", visible[0].ID,
	)
	return visible[0], nil
}
