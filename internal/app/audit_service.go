package app

import (
	"context"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type AuditRepository interface {
	ListRecentAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// AuditService exposes the append-only audit trail for librarians. Writes
// happen inside the other services' transactions.
type AuditService struct {
	repo AuditRepository
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

const maxAuditPage = 500

func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	return s.repo.ListRecentAudit(ctx, limit)
}
