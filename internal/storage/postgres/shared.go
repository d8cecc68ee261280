package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// Queries below are needed by more than one service repository (the return
// flow touches copies, reservations, fines and notifications at once), so
// they live on the shared store every repository embeds.

func (s store) GetBook(ctx context.Context, bookID string) (domain.Book, error) {
	const query = `
SELECT id, title, author, isbn, published_year, created_at
FROM books
WHERE id = $1`

	var b domain.Book
	err := s.queryRow(ctx, query, bookID).
		Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.PublishedYear, &b.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Book{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s store) GetAvailability(ctx context.Context, bookID string) (domain.Availability, error) {
	const query = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'available')
FROM copies
WHERE book_id = $1`

	a := domain.Availability{BookID: bookID}
	if err := s.queryRow(ctx, query, bookID).Scan(&a.CopiesTotal, &a.CopiesAvailable); err != nil {
		if isInvalidUUID(err) {
			return domain.Availability{}, domain.ErrInvalidID
		}
		return domain.Availability{}, fmt.Errorf("get availability: %w", err)
	}
	return a, nil
}

func (s store) GetCopyForUpdate(ctx context.Context, copyID string) (domain.Copy, error) {
	const query = `SELECT id, book_id, barcode, status FROM copies WHERE id = $1 FOR UPDATE`

	var c domain.Copy
	err := s.queryRow(ctx, query, copyID).Scan(&c.ID, &c.BookID, &c.Barcode, &c.Status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Copy{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Copy{}, domain.ErrCopyNotFound
		}
		return domain.Copy{}, fmt.Errorf("get copy: %w", err)
	}
	return c, nil
}

func (s store) UpdateCopyStatus(ctx context.Context, copyID string, status domain.CopyStatus) error {
	const stmt = `UPDATE copies SET status = $2 WHERE id = $1`

	tag, err := s.exec(ctx, stmt, copyID, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update copy status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCopyNotFound
	}
	return nil
}

func (s store) CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error {
	const stmt = `
UPDATE loans
SET returned_at = $2, status = 'returned'
WHERE id = $1 AND returned_at IS NULL`

	tag, err := s.exec(ctx, stmt, loanID, returnedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("close loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanClosed
	}
	return nil
}

func (s store) SumPendingFines(ctx context.Context, memberID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(amount_cents), 0)
FROM fines
WHERE member_id = $1 AND status = 'pending'`

	var total int
	if err := s.queryRow(ctx, query, memberID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum pending fines: %w", err)
	}
	return total, nil
}

func (s store) CreateFine(ctx context.Context, fine domain.Fine) error {
	const stmt = `
INSERT INTO fines (id, member_id, loan_id, amount_cents, status, issued_at, settled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.exec(ctx, stmt,
		fine.ID,
		fine.MemberID,
		fine.LoanID,
		fine.AmountCents,
		fine.Status,
		fine.IssuedAt,
		fine.SettledAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("create fine: %w", err)
	}
	return nil
}

func (s store) HeadActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error) {
	const query = `
SELECT id, book_id, member_id, copy_id, status, reserved_at, pickup_by, collected_at
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY reserved_at ASC
LIMIT 1`

	r, err := scanReservation(s.queryRow(ctx, query, bookID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("head reservation: %w", err)
	}
	return &r, nil
}

func (s store) FulfillReservation(ctx context.Context, reservationID, copyID string, pickupBy time.Time) error {
	const stmt = `
UPDATE reservations
SET status = 'fulfilled', copy_id = $2, pickup_by = $3
WHERE id = $1 AND status = 'active'`

	tag, err := s.exec(ctx, stmt, reservationID, copyID, pickupBy)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("fulfill reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotActive
	}
	return nil
}

func (s store) CreateNotification(ctx context.Context, n domain.Notification) error {
	const stmt = `
INSERT INTO notifications (id, user_id, type, subject, body, status, attempts, created_at, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.exec(ctx, stmt,
		n.ID,
		n.UserID,
		n.Type,
		n.Subject,
		n.Body,
		n.Status,
		n.Attempts,
		n.CreatedAt,
		n.SentAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s store) CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error {
	const stmt = `
INSERT INTO audit_log (id, actor_id, action, entity, entity_id, detail, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`

	_, err := s.exec(ctx, stmt,
		e.ID,
		e.ActorID,
		e.Action,
		e.Entity,
		e.EntityID,
		e.Detail,
		e.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(&r.ID, &r.BookID, &r.MemberID, &r.CopyID, &r.Status, &r.ReservedAt, &r.PickupBy, &r.CollectedAt)
	if err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}
