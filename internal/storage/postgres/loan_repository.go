package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type LoanRepository struct {
	store
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{store{pool: pool}}
}

const loanColumns = `id, copy_id, member_id, loaned_at, due_at, returned_at, renewals, status`

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, loanID string) (domain.Loan, error) {
	const query = `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	l, err := scanLoan(r.queryRow(ctx, query, loanID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Loan{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Loan{}, domain.ErrLoanNotFound
		}
		return domain.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, loan domain.Loan) error {
	const stmt = `
INSERT INTO loans (id, copy_id, member_id, loaned_at, due_at, returned_at, renewals, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		loan.ID,
		loan.CopyID,
		loan.MemberID,
		loan.LoanedAt,
		loan.DueAt,
		loan.ReturnedAt,
		loan.Renewals,
		loan.Status,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrCopyNotFound
		}
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (r *LoanRepository) UpdateLoanDue(ctx context.Context, loanID string, dueAt time.Time, renewals int) error {
	const stmt = `UPDATE loans SET due_at = $2, renewals = $3 WHERE id = $1 AND returned_at IS NULL`

	tag, err := r.exec(ctx, stmt, loanID, dueAt, renewals)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update loan due: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanClosed
	}
	return nil
}

func (r *LoanRepository) MarkLoanOverdue(ctx context.Context, loanID string) error {
	const stmt = `UPDATE loans SET status = 'overdue' WHERE id = $1 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, loanID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark loan overdue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanClosed
	}
	return nil
}

func (r *LoanRepository) ListLoansByMember(ctx context.Context, memberID string) ([]domain.Loan, error) {
	const query = `
SELECT ` + loanColumns + `
FROM loans
WHERE member_id = $1
ORDER BY loaned_at DESC`

	return r.listLoans(ctx, query, memberID)
}

func (r *LoanRepository) ListLoansPastDue(ctx context.Context, now time.Time) ([]domain.Loan, error) {
	const query = `
SELECT ` + loanColumns + `
FROM loans
WHERE status = 'active' AND due_at < $1
ORDER BY due_at ASC`

	return r.listLoans(ctx, query, now)
}

func (r *LoanRepository) listLoans(ctx context.Context, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate loans: %w", rows.Err())
	}
	return loans, nil
}

func (r *LoanRepository) CountOpenLoansByMember(ctx context.Context, memberID string) (int, error) {
	const query = `SELECT COUNT(*) FROM loans WHERE member_id = $1 AND returned_at IS NULL`

	var count int
	if err := r.queryRow(ctx, query, memberID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count open loans: %w", err)
	}
	return count, nil
}

func (r *LoanRepository) GetFulfilledReservationByCopy(ctx context.Context, copyID string) (*domain.Reservation, error) {
	const query = `
SELECT id, book_id, member_id, copy_id, status, reserved_at, pickup_by, collected_at
FROM reservations
WHERE copy_id = $1 AND status = 'fulfilled' AND collected_at IS NULL
FOR UPDATE`

	res, err := scanReservation(r.queryRow(ctx, query, copyID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get fulfilled reservation: %w", err)
	}
	return &res, nil
}

func (r *LoanRepository) MarkReservationCollected(ctx context.Context, reservationID string, at time.Time) error {
	const stmt = `
UPDATE reservations
SET collected_at = $2
WHERE id = $1 AND status = 'fulfilled' AND collected_at IS NULL`

	tag, err := r.exec(ctx, stmt, reservationID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark reservation collected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotActive
	}
	return nil
}
