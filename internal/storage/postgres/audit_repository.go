package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type AuditRepository struct {
	store
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{store{pool: pool}}
}

func (r *AuditRepository) ListRecentAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	const query = `
SELECT id, COALESCE(actor_id::text, ''), action, entity, entity_id, detail, created_at
FROM audit_log
ORDER BY created_at DESC
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", rows.Err())
	}
	return entries, nil
}
