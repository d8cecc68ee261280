package app

import (
	"context"
	"testing"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

func TestFineService_Settle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 11, 0, 0, 0, time.UTC)

	makeRepo := func() *fakeRepo {
		repo := newFakeRepo()
		repo.fines = append(repo.fines, domain.Fine{
			ID: "fine-1", MemberID: "member-1", AmountCents: 200,
			Status: domain.FineStatusPending, IssuedAt: now.Add(-24 * time.Hour),
		})
		return repo
	}

	t.Run("member pays own fine", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		fine, err := svc.Pay(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "member-1", ActorRole: domain.RoleMember})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fine.Status != domain.FineStatusPaid {
			t.Fatalf("expected paid, got %s", fine.Status)
		}
		if fine.SettledAt == nil || !fine.SettledAt.Equal(now) {
			t.Fatalf("expected settled at %v, got %v", now, fine.SettledAt)
		}
	})

	t.Run("member cannot pay someone else's fine", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		_, err := svc.Pay(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "member-2", ActorRole: domain.RoleMember})
		if err != domain.ErrPermissionDenied {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("librarian records payment for any member", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		if _, err := svc.Pay(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "librarian-1", ActorRole: domain.RoleLibrarian}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("librarian waives a fine", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		fine, err := svc.Waive(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "librarian-1", ActorRole: domain.RoleLibrarian})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fine.Status != domain.FineStatusWaived {
			t.Fatalf("expected waived, got %s", fine.Status)
		}
	})

	t.Run("member cannot waive", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		_, err := svc.Waive(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "member-1", ActorRole: domain.RoleMember})
		if err != domain.ErrPermissionDenied {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("settling twice is refused", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		if _, err := svc.Pay(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "member-1", ActorRole: domain.RoleMember}); err != nil {
			t.Fatalf("first settle: %v", err)
		}
		_, err := svc.Pay(context.Background(), SettleFineInput{FineID: "fine-1", ActorID: "member-1", ActorRole: domain.RoleMember})
		if err != domain.ErrFineAlreadySettled {
			t.Fatalf("expected ErrFineAlreadySettled, got %v", err)
		}
	})

	t.Run("unknown fine", func(t *testing.T) {
		repo := makeRepo()
		svc := NewFineService(repo, clock.NewFixed(now))

		_, err := svc.Pay(context.Background(), SettleFineInput{FineID: "missing", ActorID: "member-1", ActorRole: domain.RoleMember})
		if err != domain.ErrFineNotFound {
			t.Fatalf("expected ErrFineNotFound, got %v", err)
		}
	})
}

func TestFineService_OutstandingBalance(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 11, 0, 0, 0, time.UTC)
	settled := now.Add(-time.Hour)
	repo := newFakeRepo()
	repo.fines = append(repo.fines,
		domain.Fine{ID: "fine-1", MemberID: "member-1", AmountCents: 200, Status: domain.FineStatusPending},
		domain.Fine{ID: "fine-2", MemberID: "member-1", AmountCents: 150, Status: domain.FineStatusPending},
		domain.Fine{ID: "fine-3", MemberID: "member-1", AmountCents: 500, Status: domain.FineStatusPaid, SettledAt: &settled},
		domain.Fine{ID: "fine-4", MemberID: "member-2", AmountCents: 50, Status: domain.FineStatusPending},
	)
	svc := NewFineService(repo, clock.NewFixed(now))

	total, err := svc.OutstandingBalance(context.Background(), "member-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if total != 350 {
		t.Fatalf("expected 350 cents outstanding, got %d", total)
	}
}
