package app

import (
	"context"
	"fmt"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	GetAvailability(ctx context.Context, bookID string) (domain.Availability, error)
	CountLiveReservationsByMember(ctx context.Context, memberID string) (int, error)
	FindLiveReservationByMemberAndBook(ctx context.Context, memberID, bookID string) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	ListActiveReservationsByBook(ctx context.Context, bookID string) ([]domain.Reservation, error)
	ListReservationsByMember(ctx context.Context, memberID string) ([]domain.Reservation, error)
	ListFulfilledPastPickup(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	FindAvailableCopy(ctx context.Context, bookID string) (*domain.Copy, error)
	GetCopyForUpdate(ctx context.Context, copyID string) (domain.Copy, error)
	UpdateCopyStatus(ctx context.Context, copyID string, status domain.CopyStatus) error
	FulfillReservation(ctx context.Context, reservationID, copyID string, pickupBy time.Time) error
	SetReservationStatus(ctx context.Context, reservationID string, status domain.ReservationStatus) error
	HeadActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
	CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

type ReservationService struct {
	repo         ReservationRepository
	clock        clock.Clock
	limit        int
	pickupWindow time.Duration
}

const defaultReservationLimit = 3

func NewReservationService(repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:         repo,
		clock:        clk,
		limit:        defaultReservationLimit,
		pickupWindow: defaultPickupWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithReservationPolicy overrides the per-member reservation limit and the
// pickup window. Non-positive values keep the defaults.
func WithReservationPolicy(limit int, pickupWindow time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if limit > 0 {
			s.limit = limit
		}
		if pickupWindow > 0 {
			s.pickupWindow = pickupWindow
		}
	}
}

type ReserveInput struct {
	MemberID string
	BookID   string
}

func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetBook(txCtx, in.BookID); err != nil {
			return err
		}

		availability, err := s.repo.GetAvailability(txCtx, in.BookID)
		if err != nil {
			return err
		}
		if availability.CopiesAvailable > 0 {
			return domain.ErrCopyAvailable
		}

		existing, err := s.repo.FindLiveReservationByMemberAndBook(txCtx, in.MemberID, in.BookID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateReservation
		}

		live, err := s.repo.CountLiveReservationsByMember(txCtx, in.MemberID)
		if err != nil {
			return err
		}
		if live >= s.limit {
			return domain.ErrReservationLimit
		}

		reservation := domain.Reservation{
			ID:         newID(),
			BookID:     in.BookID,
			MemberID:   in.MemberID,
			Status:     domain.ReservationStatusActive,
			ReservedAt: now,
		}
		if err := s.repo.CreateReservation(txCtx, reservation); err != nil {
			return err
		}
		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.MemberID,
			Action:    "reservation.create",
			Entity:    "reservation",
			EntityID:  reservation.ID,
			Detail:    "reserved book " + in.BookID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = reservation
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

// QueuePosition returns the 1-based rank of an active reservation among the
// book's active reservations, ordered by reservation date. Recomputed by a
// scan on each call; there is no persistent queue structure.
func (s *ReservationService) QueuePosition(ctx context.Context, reservationID string) (int, error) {
	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return 0, err
	}
	if reservation.Status != domain.ReservationStatusActive {
		return 0, domain.ErrReservationNotActive
	}

	active, err := s.repo.ListActiveReservationsByBook(ctx, reservation.BookID)
	if err != nil {
		return 0, err
	}
	for i, r := range active {
		if r.ID == reservationID {
			return i + 1, nil
		}
	}
	return 0, domain.ErrReservationNotFound
}

type FulfillInput struct {
	ReservationID string
	ActorID       string
}

func (s *ReservationService) Fulfill(ctx context.Context, in FulfillInput) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if reservation.Status != domain.ReservationStatusActive {
			return domain.ErrReservationNotActive
		}

		active, err := s.repo.ListActiveReservationsByBook(txCtx, reservation.BookID)
		if err != nil {
			return err
		}
		if len(active) == 0 || active[0].ID != reservation.ID {
			return domain.ErrNotHeadOfQueue
		}

		cp, err := s.repo.FindAvailableCopy(txCtx, reservation.BookID)
		if err != nil {
			return err
		}
		if cp == nil {
			return domain.ErrCopyNotAvailable
		}

		pickupBy := now.Add(s.pickupWindow)
		if err := s.repo.FulfillReservation(txCtx, reservation.ID, cp.ID, pickupBy); err != nil {
			return err
		}
		if err := s.repo.UpdateCopyStatus(txCtx, cp.ID, domain.CopyStatusReserved); err != nil {
			return err
		}

		book, err := s.repo.GetBook(txCtx, reservation.BookID)
		if err != nil {
			return err
		}
		if err := s.repo.CreateNotification(txCtx, domain.Notification{
			ID:        newID(),
			UserID:    reservation.MemberID,
			Type:      domain.NotificationAvailability,
			Subject:   "Reserved book ready for pickup",
			Body:      fmt.Sprintf("%q is ready; collect it before %s.", book.Title, pickupBy.Format(time.RFC3339)),
			Status:    domain.NotificationStatusPending,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "reservation.fulfill",
			Entity:    "reservation",
			EntityID:  reservation.ID,
			Detail:    fmt.Sprintf("assigned copy %s, pickup by %s", cp.ID, pickupBy.Format(time.RFC3339)),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		reservation.Status = domain.ReservationStatusFulfilled
		reservation.CopyID = &cp.ID
		reservation.PickupBy = &pickupBy
		result = reservation
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

type CancelInput struct {
	ReservationID string
	ActorID       string
	ActorRole     domain.Role
}

func (s *ReservationService) Cancel(ctx context.Context, in CancelInput) error {
	now := s.clock.Now()

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if reservation.MemberID != in.ActorID && in.ActorRole != domain.RoleLibrarian {
			return domain.ErrPermissionDenied
		}
		if !reservation.Live() {
			return domain.ErrReservationNotActive
		}

		if err := s.repo.SetReservationStatus(txCtx, reservation.ID, domain.ReservationStatusCancelled); err != nil {
			return err
		}
		if reservation.Status == domain.ReservationStatusFulfilled && reservation.CopyID != nil {
			if err := s.releaseCopy(txCtx, *reservation.CopyID, now); err != nil {
				return err
			}
		}

		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "reservation.cancel",
			Entity:    "reservation",
			EntityID:  reservation.ID,
			Detail:    "cancelled reservation for book " + reservation.BookID,
			CreatedAt: now,
		})
	})
}

// MyReservations lists the member's reservations, newest first.
func (s *ReservationService) MyReservations(ctx context.Context, memberID string) ([]domain.Reservation, error) {
	return s.repo.ListReservationsByMember(ctx, memberID)
}

// SweepExpired flips fulfilled reservations past their pickup deadline to
// expired and releases the assigned copies. Returns the number expired.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.repo.ListFulfilledPastPickup(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, reservation := range stale {
		reservation := reservation
		flipped := false
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.repo.GetReservationForUpdate(txCtx, reservation.ID)
			if err != nil {
				return err
			}
			// Re-check under lock; the row may have been collected or
			// cancelled since the listing.
			if current.Status != domain.ReservationStatusFulfilled || current.CollectedAt != nil {
				return nil
			}
			if current.PickupBy == nil || current.PickupBy.After(now) {
				return nil
			}

			if err := s.repo.SetReservationStatus(txCtx, current.ID, domain.ReservationStatusExpired); err != nil {
				return err
			}
			if current.CopyID != nil {
				if err := s.releaseCopy(txCtx, *current.CopyID, now); err != nil {
					return err
				}
			}
			flipped = true
			return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
				ID:        newID(),
				Action:    "reservation.expire",
				Entity:    "reservation",
				EntityID:  current.ID,
				Detail:    "pickup deadline passed",
				CreatedAt: now,
			})
		})
		if err != nil {
			return expired, err
		}
		if flipped {
			expired++
		}
	}
	return expired, nil
}

// releaseCopy hands a freed reserved copy to the next waiting reservation,
// or reverts it to available when the queue is empty.
func (s *ReservationService) releaseCopy(ctx context.Context, copyID string, now time.Time) error {
	cp, err := s.repo.GetCopyForUpdate(ctx, copyID)
	if err != nil {
		return err
	}

	head, err := s.repo.HeadActiveReservation(ctx, cp.BookID)
	if err != nil {
		return err
	}
	if head == nil {
		return s.repo.UpdateCopyStatus(ctx, cp.ID, domain.CopyStatusAvailable)
	}

	pickupBy := now.Add(s.pickupWindow)
	if err := s.repo.FulfillReservation(ctx, head.ID, cp.ID, pickupBy); err != nil {
		return err
	}

	book, err := s.repo.GetBook(ctx, cp.BookID)
	if err != nil {
		return err
	}
	return s.repo.CreateNotification(ctx, domain.Notification{
		ID:        newID(),
		UserID:    head.MemberID,
		Type:      domain.NotificationAvailability,
		Subject:   "Reserved book ready for pickup",
		Body:      fmt.Sprintf("%q is ready; collect it before %s.", book.Title, pickupBy.Format(time.RFC3339)),
		Status:    domain.NotificationStatusPending,
		CreatedAt: now,
	})
}
