package app

import (
	"context"
	"fmt"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type LoanRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCopyForUpdate(ctx context.Context, copyID string) (domain.Copy, error)
	UpdateCopyStatus(ctx context.Context, copyID string, status domain.CopyStatus) error
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	GetLoanForUpdate(ctx context.Context, loanID string) (domain.Loan, error)
	CreateLoan(ctx context.Context, loan domain.Loan) error
	UpdateLoanDue(ctx context.Context, loanID string, dueAt time.Time, renewals int) error
	CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error
	MarkLoanOverdue(ctx context.Context, loanID string) error
	ListLoansByMember(ctx context.Context, memberID string) ([]domain.Loan, error)
	ListLoansPastDue(ctx context.Context, now time.Time) ([]domain.Loan, error)
	CountOpenLoansByMember(ctx context.Context, memberID string) (int, error)
	SumPendingFines(ctx context.Context, memberID string) (int, error)
	CreateFine(ctx context.Context, fine domain.Fine) error
	GetFulfilledReservationByCopy(ctx context.Context, copyID string) (*domain.Reservation, error)
	MarkReservationCollected(ctx context.Context, reservationID string, at time.Time) error
	HeadActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error)
	FulfillReservation(ctx context.Context, reservationID, copyID string, pickupBy time.Time) error
	CreateNotification(ctx context.Context, n domain.Notification) error
	CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

type LoanService struct {
	repo           LoanRepository
	clock          clock.Clock
	loanPeriod     time.Duration
	maxRenewals    int
	maxActiveLoans int
	fineRateCents  int
	fineCapCents   int
	pickupWindow   time.Duration
}

const (
	defaultLoanPeriod     = 14 * 24 * time.Hour
	defaultMaxRenewals    = 2
	defaultMaxActiveLoans = 5
	defaultFineRateCents  = 50
	defaultPickupWindow   = 72 * time.Hour
)

func NewLoanService(repo LoanRepository, clk clock.Clock, opts ...LoanServiceOption) *LoanService {
	svc := &LoanService{
		repo:           repo,
		clock:          clk,
		loanPeriod:     defaultLoanPeriod,
		maxRenewals:    defaultMaxRenewals,
		maxActiveLoans: defaultMaxActiveLoans,
		fineRateCents:  defaultFineRateCents,
		pickupWindow:   defaultPickupWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LoanServiceOption func(*LoanService)

// WithLoanPolicy overrides the loan period, renewal limit and concurrent
// loan limit. Non-positive values keep the defaults.
func WithLoanPolicy(period time.Duration, maxRenewals, maxActiveLoans int) LoanServiceOption {
	return func(s *LoanService) {
		if period > 0 {
			s.loanPeriod = period
		}
		if maxRenewals > 0 {
			s.maxRenewals = maxRenewals
		}
		if maxActiveLoans > 0 {
			s.maxActiveLoans = maxActiveLoans
		}
	}
}

// WithFinePolicy overrides the per-day fine rate and optional cap.
func WithFinePolicy(rateCents, capCents int) LoanServiceOption {
	return func(s *LoanService) {
		if rateCents > 0 {
			s.fineRateCents = rateCents
		}
		if capCents > 0 {
			s.fineCapCents = capCents
		}
	}
}

// WithPickupWindow overrides how long a returned copy is held for the head
// of the reservation queue.
func WithPickupWindow(d time.Duration) LoanServiceOption {
	return func(s *LoanService) {
		if d > 0 {
			s.pickupWindow = d
		}
	}
}

type CheckoutInput struct {
	MemberID string
	CopyID   string
	ActorID  string
	// DueAt overrides the default due date when set.
	DueAt *time.Time
}

func (s *LoanService) Checkout(ctx context.Context, in CheckoutInput) (domain.Loan, error) {
	now := s.clock.Now()
	var result domain.Loan

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cp, err := s.repo.GetCopyForUpdate(txCtx, in.CopyID)
		if err != nil {
			return err
		}

		pending, err := s.repo.SumPendingFines(txCtx, in.MemberID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return domain.ErrOutstandingFine
		}

		open, err := s.repo.CountOpenLoansByMember(txCtx, in.MemberID)
		if err != nil {
			return err
		}
		if open >= s.maxActiveLoans {
			return domain.ErrLoanLimit
		}

		switch cp.Status {
		case domain.CopyStatusAvailable:
			// walk-in checkout
		case domain.CopyStatusReserved:
			reservation, err := s.repo.GetFulfilledReservationByCopy(txCtx, in.CopyID)
			if err != nil {
				return err
			}
			if reservation == nil || reservation.MemberID != in.MemberID {
				return domain.ErrCopyNotAvailable
			}
			if err := s.repo.MarkReservationCollected(txCtx, reservation.ID, now); err != nil {
				return err
			}
		default:
			return domain.ErrCopyNotAvailable
		}

		dueAt := now.Add(s.loanPeriod)
		if in.DueAt != nil {
			dueAt = *in.DueAt
		}

		loan := domain.Loan{
			ID:       newID(),
			CopyID:   in.CopyID,
			MemberID: in.MemberID,
			LoanedAt: now,
			DueAt:    dueAt,
			Status:   domain.LoanStatusActive,
		}
		if err := s.repo.CreateLoan(txCtx, loan); err != nil {
			return err
		}
		if err := s.repo.UpdateCopyStatus(txCtx, in.CopyID, domain.CopyStatusLoaned); err != nil {
			return err
		}
		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "loan.checkout",
			Entity:    "loan",
			EntityID:  loan.ID,
			Detail:    fmt.Sprintf("copy %s to member %s, due %s", in.CopyID, in.MemberID, dueAt.Format(time.RFC3339)),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = loan
		return nil
	})
	if err != nil {
		return domain.Loan{}, err
	}
	return result, nil
}

type RenewInput struct {
	LoanID   string
	MemberID string
}

func (s *LoanService) Renew(ctx context.Context, in RenewInput) (domain.Loan, error) {
	now := s.clock.Now()
	var result domain.Loan

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		loan, err := s.repo.GetLoanForUpdate(txCtx, in.LoanID)
		if err != nil {
			return err
		}
		if loan.MemberID != in.MemberID {
			return domain.ErrPermissionDenied
		}
		switch loan.Status {
		case domain.LoanStatusReturned:
			return domain.ErrLoanClosed
		case domain.LoanStatusOverdue:
			return domain.ErrLoanOverdue
		}
		// Status can lag the sweep; a loan past due is overdue either way.
		if domain.OverdueDays(loan.DueAt, now) > 0 {
			return domain.ErrLoanOverdue
		}
		if loan.Renewals >= s.maxRenewals {
			return domain.ErrRenewalLimit
		}

		pending, err := s.repo.SumPendingFines(txCtx, in.MemberID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return domain.ErrOutstandingFine
		}

		loan.DueAt = loan.DueAt.Add(s.loanPeriod)
		loan.Renewals++
		if err := s.repo.UpdateLoanDue(txCtx, loan.ID, loan.DueAt, loan.Renewals); err != nil {
			return err
		}
		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.MemberID,
			Action:    "loan.renew",
			Entity:    "loan",
			EntityID:  loan.ID,
			Detail:    fmt.Sprintf("renewal %d, now due %s", loan.Renewals, loan.DueAt.Format(time.RFC3339)),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = loan
		return nil
	})
	if err != nil {
		return domain.Loan{}, err
	}
	return result, nil
}

type ReturnInput struct {
	LoanID  string
	ActorID string
}

// ReturnResult reports what the return triggered: the fine issued for a late
// return (nil when on time) and the reservation fulfilled by the freed copy.
type ReturnResult struct {
	Loan        domain.Loan
	Fine        *domain.Fine
	FulfilledID string
}

func (s *LoanService) Return(ctx context.Context, in ReturnInput) (ReturnResult, error) {
	now := s.clock.Now()
	var result ReturnResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		loan, err := s.repo.GetLoanForUpdate(txCtx, in.LoanID)
		if err != nil {
			return err
		}
		if !loan.Open() {
			return domain.ErrLoanClosed
		}
		cp, err := s.repo.GetCopyForUpdate(txCtx, loan.CopyID)
		if err != nil {
			return err
		}

		if err := s.repo.CloseLoan(txCtx, loan.ID, now); err != nil {
			return err
		}
		returnedAt := now
		loan.ReturnedAt = &returnedAt
		loan.Status = domain.LoanStatusReturned

		if days := domain.OverdueDays(loan.DueAt, now); days > 0 {
			fine := domain.Fine{
				ID:          newID(),
				MemberID:    loan.MemberID,
				LoanID:      &loan.ID,
				AmountCents: domain.FineAmount(days, s.fineRateCents, s.fineCapCents),
				Status:      domain.FineStatusPending,
				IssuedAt:    now,
			}
			if err := s.repo.CreateFine(txCtx, fine); err != nil {
				return err
			}
			if err := s.repo.CreateNotification(txCtx, domain.Notification{
				ID:        newID(),
				UserID:    loan.MemberID,
				Type:      domain.NotificationFine,
				Subject:   "Overdue fine issued",
				Body:      fmt.Sprintf("Returned %d day(s) late; fine of %d cents issued.", days, fine.AmountCents),
				Status:    domain.NotificationStatusPending,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			result.Fine = &fine
		}

		fulfilledID, err := s.offerCopy(txCtx, cp, now)
		if err != nil {
			return err
		}
		result.FulfilledID = fulfilledID

		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "loan.return",
			Entity:    "loan",
			EntityID:  loan.ID,
			Detail:    fmt.Sprintf("copy %s returned by member %s", loan.CopyID, loan.MemberID),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result.Loan = loan
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	return result, nil
}

// offerCopy routes a freed copy to the head of the book's reservation queue,
// or back to available when nobody is waiting. Returns the fulfilled
// reservation ID, if any.
func (s *LoanService) offerCopy(ctx context.Context, cp domain.Copy, now time.Time) (string, error) {
	head, err := s.repo.HeadActiveReservation(ctx, cp.BookID)
	if err != nil {
		return "", err
	}
	if head == nil {
		return "", s.repo.UpdateCopyStatus(ctx, cp.ID, domain.CopyStatusAvailable)
	}

	pickupBy := now.Add(s.pickupWindow)
	if err := s.repo.FulfillReservation(ctx, head.ID, cp.ID, pickupBy); err != nil {
		return "", err
	}
	if err := s.repo.UpdateCopyStatus(ctx, cp.ID, domain.CopyStatusReserved); err != nil {
		return "", err
	}

	book, err := s.repo.GetBook(ctx, cp.BookID)
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateNotification(ctx, domain.Notification{
		ID:        newID(),
		UserID:    head.MemberID,
		Type:      domain.NotificationAvailability,
		Subject:   "Reserved book ready for pickup",
		Body:      fmt.Sprintf("%q is ready; collect it before %s.", book.Title, pickupBy.Format(time.RFC3339)),
		Status:    domain.NotificationStatusPending,
		CreatedAt: now,
	}); err != nil {
		return "", err
	}
	return head.ID, nil
}

// MyLoans lists the member's loans, newest first.
func (s *LoanService) MyLoans(ctx context.Context, memberID string) ([]domain.Loan, error) {
	return s.repo.ListLoansByMember(ctx, memberID)
}

// SweepOverdue flips active loans past their due date to overdue and queues
// one overdue notice per loan. Returns the number of loans marked.
func (s *LoanService) SweepOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.ListLoansPastDue(ctx, now)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, loan := range due {
		loan := loan
		flipped := false
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.repo.GetLoanForUpdate(txCtx, loan.ID)
			if err != nil {
				return err
			}
			// Re-check under lock; the loan may have been returned or
			// already swept since the listing.
			if current.Status != domain.LoanStatusActive {
				return nil
			}
			if err := s.repo.MarkLoanOverdue(txCtx, loan.ID); err != nil {
				return err
			}
			if err := s.repo.CreateNotification(txCtx, domain.Notification{
				ID:        newID(),
				UserID:    loan.MemberID,
				Type:      domain.NotificationOverdue,
				Subject:   "Loan overdue",
				Body:      fmt.Sprintf("Your loan was due %s; please return it.", loan.DueAt.Format(time.RFC3339)),
				Status:    domain.NotificationStatusPending,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			flipped = true
			return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
				ID:        newID(),
				Action:    "loan.overdue",
				Entity:    "loan",
				EntityID:  loan.ID,
				Detail:    "marked overdue by sweep",
				CreatedAt: now,
			})
		})
		if err != nil {
			return marked, err
		}
		if flipped {
			marked++
		}
	}
	return marked, nil
}
