package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type ReservationRepository struct {
	store
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{store{pool: pool}}
}

const reservationColumns = `id, book_id, member_id, copy_id, status, reserved_at, pickup_by, collected_at`

func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, book_id, member_id, copy_id, status, reserved_at, pickup_by, collected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		reservation.ID,
		reservation.BookID,
		reservation.MemberID,
		reservation.CopyID,
		reservation.Status,
		reservation.ReservedAt,
		reservation.PickupBy,
		reservation.CollectedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBookNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.getReservation(ctx, query, id)
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.getReservation(ctx, query, id)
}

func (r *ReservationRepository) getReservation(ctx context.Context, query, id string) (domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) CountLiveReservationsByMember(ctx context.Context, memberID string) (int, error) {
	const query = `
SELECT COUNT(*)
FROM reservations
WHERE member_id = $1
  AND (status = 'active' OR (status = 'fulfilled' AND collected_at IS NULL))`

	var count int
	if err := r.queryRow(ctx, query, memberID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return count, nil
}

func (r *ReservationRepository) FindLiveReservationByMemberAndBook(ctx context.Context, memberID, bookID string) (*domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE member_id = $1 AND book_id = $2
  AND (status = 'active' OR (status = 'fulfilled' AND collected_at IS NULL))
LIMIT 1`

	res, err := scanReservation(r.queryRow(ctx, query, memberID, bookID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &res, nil
}

func (r *ReservationRepository) ListActiveReservationsByBook(ctx context.Context, bookID string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY reserved_at ASC`

	return r.listReservations(ctx, query, bookID)
}

func (r *ReservationRepository) ListReservationsByMember(ctx context.Context, memberID string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE member_id = $1
ORDER BY reserved_at DESC`

	return r.listReservations(ctx, query, memberID)
}

func (r *ReservationRepository) ListFulfilledPastPickup(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'fulfilled' AND collected_at IS NULL AND pickup_by <= $1
ORDER BY pickup_by ASC`

	return r.listReservations(ctx, query, now)
}

func (r *ReservationRepository) listReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return reservations, nil
}

func (r *ReservationRepository) FindAvailableCopy(ctx context.Context, bookID string) (*domain.Copy, error) {
	const query = `
SELECT id, book_id, barcode, status
FROM copies
WHERE book_id = $1 AND status = 'available'
ORDER BY barcode ASC
LIMIT 1
FOR UPDATE`

	var c domain.Copy
	err := r.queryRow(ctx, query, bookID).Scan(&c.ID, &c.BookID, &c.Barcode, &c.Status)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find available copy: %w", err)
	}
	return &c, nil
}

func (r *ReservationRepository) SetReservationStatus(ctx context.Context, reservationID string, status domain.ReservationStatus) error {
	const stmt = `UPDATE reservations SET status = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, reservationID, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}
