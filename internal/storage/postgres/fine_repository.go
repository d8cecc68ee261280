package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type FineRepository struct {
	store
}

func NewFineRepository(pool *pgxpool.Pool) *FineRepository {
	return &FineRepository{store{pool: pool}}
}

const fineColumns = `id, member_id, loan_id, amount_cents, status, issued_at, settled_at`

func (r *FineRepository) GetFineForUpdate(ctx context.Context, fineID string) (domain.Fine, error) {
	const query = `SELECT ` + fineColumns + ` FROM fines WHERE id = $1 FOR UPDATE`

	var f domain.Fine
	err := r.queryRow(ctx, query, fineID).Scan(
		&f.ID, &f.MemberID, &f.LoanID, &f.AmountCents, &f.Status, &f.IssuedAt, &f.SettledAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Fine{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Fine{}, domain.ErrFineNotFound
		}
		return domain.Fine{}, fmt.Errorf("get fine: %w", err)
	}
	return f, nil
}

func (r *FineRepository) SettleFine(ctx context.Context, fineID string, status domain.FineStatus, at time.Time) error {
	const stmt = `
UPDATE fines
SET status = $2, settled_at = $3
WHERE id = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, fineID, status, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("settle fine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFineAlreadySettled
	}
	return nil
}

func (r *FineRepository) ListFinesByMember(ctx context.Context, memberID string) ([]domain.Fine, error) {
	const query = `
SELECT ` + fineColumns + `
FROM fines
WHERE member_id = $1
ORDER BY issued_at DESC`

	rows, err := r.query(ctx, query, memberID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list fines: %w", err)
	}
	defer rows.Close()

	var fines []domain.Fine
	for rows.Next() {
		var f domain.Fine
		if err := rows.Scan(&f.ID, &f.MemberID, &f.LoanID, &f.AmountCents, &f.Status, &f.IssuedAt, &f.SettledAt); err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, f)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate fines: %w", rows.Err())
	}
	return fines, nil
}
