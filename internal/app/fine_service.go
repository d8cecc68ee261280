package app

import (
	"context"
	"fmt"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type FineRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetFineForUpdate(ctx context.Context, fineID string) (domain.Fine, error)
	SettleFine(ctx context.Context, fineID string, status domain.FineStatus, at time.Time) error
	ListFinesByMember(ctx context.Context, memberID string) ([]domain.Fine, error)
	SumPendingFines(ctx context.Context, memberID string) (int, error)
	CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

type FineService struct {
	repo  FineRepository
	clock clock.Clock
}

func NewFineService(repo FineRepository, clk clock.Clock) *FineService {
	return &FineService{repo: repo, clock: clk}
}

type SettleFineInput struct {
	FineID    string
	ActorID   string
	ActorRole domain.Role
}

// Pay settles a pending fine as paid. Members may pay their own fines;
// librarians may record payment for anyone.
func (s *FineService) Pay(ctx context.Context, in SettleFineInput) (domain.Fine, error) {
	return s.settle(ctx, in, domain.FineStatusPaid, "fine.pay")
}

// Waive settles a pending fine without payment. Role enforcement happens at
// the transport layer; the actor is still checked against ownership here so
// a member cannot waive through a mis-wired route.
func (s *FineService) Waive(ctx context.Context, in SettleFineInput) (domain.Fine, error) {
	if in.ActorRole != domain.RoleLibrarian {
		return domain.Fine{}, domain.ErrPermissionDenied
	}
	return s.settle(ctx, in, domain.FineStatusWaived, "fine.waive")
}

func (s *FineService) settle(ctx context.Context, in SettleFineInput, status domain.FineStatus, action string) (domain.Fine, error) {
	now := s.clock.Now()
	var result domain.Fine

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		fine, err := s.repo.GetFineForUpdate(txCtx, in.FineID)
		if err != nil {
			return err
		}
		if fine.MemberID != in.ActorID && in.ActorRole != domain.RoleLibrarian {
			return domain.ErrPermissionDenied
		}
		if fine.Status != domain.FineStatusPending {
			return domain.ErrFineAlreadySettled
		}

		if err := s.repo.SettleFine(txCtx, fine.ID, status, now); err != nil {
			return err
		}
		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    action,
			Entity:    "fine",
			EntityID:  fine.ID,
			Detail:    fmt.Sprintf("%d cents %s", fine.AmountCents, status),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		fine.Status = status
		fine.SettledAt = &now
		result = fine
		return nil
	})
	if err != nil {
		return domain.Fine{}, err
	}
	return result, nil
}

// ListByMember returns the member's fines, newest first.
func (s *FineService) ListByMember(ctx context.Context, memberID string) ([]domain.Fine, error) {
	return s.repo.ListFinesByMember(ctx, memberID)
}

// OutstandingBalance sums the member's pending fine amounts in cents.
func (s *FineService) OutstandingBalance(ctx context.Context, memberID string) (int, error) {
	return s.repo.SumPendingFines(ctx, memberID)
}
