package app

import (
	"context"
	"fmt"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type CatalogRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateBook(ctx context.Context, book domain.Book) error
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	ListBooks(ctx context.Context) ([]domain.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
	CountOpenLoansByBook(ctx context.Context, bookID string) (int, error)
	CountLiveReservationsByBook(ctx context.Context, bookID string) (int, error)
	GetAvailability(ctx context.Context, bookID string) (domain.Availability, error)
	CreateCategory(ctx context.Context, category domain.Category) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListCategoriesByBook(ctx context.Context, bookID string) ([]domain.Category, error)
	AssignCategory(ctx context.Context, bookID, categoryID string) error
	CreateCopy(ctx context.Context, cp domain.Copy) error
	ListCopiesByBook(ctx context.Context, bookID string) ([]domain.Copy, error)
	GetCopyForUpdate(ctx context.Context, copyID string) (domain.Copy, error)
	UpdateCopyStatus(ctx context.Context, copyID string, status domain.CopyStatus) error
	GetOpenLoanByCopy(ctx context.Context, copyID string) (*domain.Loan, error)
	CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error
	CreateFine(ctx context.Context, fine domain.Fine) error
	CreateNotification(ctx context.Context, n domain.Notification) error
	CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

type CatalogService struct {
	repo            CatalogRepository
	clock           clock.Clock
	replacementFine int
}

const defaultReplacementFineCents = 2500

func NewCatalogService(repo CatalogRepository, clk clock.Clock, opts ...CatalogServiceOption) *CatalogService {
	svc := &CatalogService{
		repo:            repo,
		clock:           clk,
		replacementFine: defaultReplacementFineCents,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CatalogServiceOption func(*CatalogService)

// WithReplacementFine overrides the flat fine issued when a loaned copy is
// reported lost.
func WithReplacementFine(cents int) CatalogServiceOption {
	return func(s *CatalogService) {
		if cents > 0 {
			s.replacementFine = cents
		}
	}
}

type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          string
	PublishedYear int
	ActorID       string
}

func (s *CatalogService) CreateBook(ctx context.Context, in CreateBookInput) (domain.Book, error) {
	if in.Title == "" || in.Author == "" {
		return domain.Book{}, domain.ErrTitleRequired
	}

	now := s.clock.Now()
	book := domain.Book{
		ID:            newID(),
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		PublishedYear: in.PublishedYear,
		CreatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateBook(txCtx, book); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "book.create",
			Entity:    "book",
			EntityID:  book.ID,
			Detail:    fmt.Sprintf("%s by %s", book.Title, book.Author),
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// BookDetail bundles a book with its categories, copies and derived
// availability counts.
type BookDetail struct {
	Book         domain.Book
	Categories   []domain.Category
	Copies       []domain.Copy
	Availability domain.Availability
}

func (s *CatalogService) GetBook(ctx context.Context, bookID string) (BookDetail, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	categories, err := s.repo.ListCategoriesByBook(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	copies, err := s.repo.ListCopiesByBook(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	availability, err := s.repo.GetAvailability(ctx, bookID)
	if err != nil {
		return BookDetail{}, err
	}
	return BookDetail{
		Book:         book,
		Categories:   categories,
		Copies:       copies,
		Availability: availability,
	}, nil
}

func (s *CatalogService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	return s.repo.ListBooks(ctx)
}

// DeleteBook removes a title, rejected while any copy is on loan or any
// reservation for the book is still live.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID, actorID string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		book, err := s.repo.GetBook(txCtx, bookID)
		if err != nil {
			return err
		}

		loans, err := s.repo.CountOpenLoansByBook(txCtx, bookID)
		if err != nil {
			return err
		}
		reservations, err := s.repo.CountLiveReservationsByBook(txCtx, bookID)
		if err != nil {
			return err
		}
		if loans > 0 || reservations > 0 {
			return domain.ErrBookInUse
		}

		if err := s.repo.DeleteBook(txCtx, bookID); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "book.delete",
			Entity:    "book",
			EntityID:  bookID,
			Detail:    "deleted " + book.Title,
			CreatedAt: now,
		})
	})
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, actorID string) (domain.Category, error) {
	if name == "" {
		return domain.Category{}, domain.ErrNameRequired
	}
	category := domain.Category{ID: newID(), Name: name}
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateCategory(txCtx, category); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "category.create",
			Entity:    "category",
			EntityID:  category.ID,
			Detail:    name,
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *CatalogService) AssignCategory(ctx context.Context, bookID, categoryID, actorID string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		book, err := s.repo.GetBook(txCtx, bookID)
		if err != nil {
			return err
		}
		if err := s.repo.AssignCategory(txCtx, bookID, categoryID); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "category.assign",
			Entity:    "book",
			EntityID:  bookID,
			Detail:    "categorized " + book.Title,
			CreatedAt: now,
		})
	})
}

type AddCopyInput struct {
	BookID  string
	Barcode string
	ActorID string
}

func (s *CatalogService) AddCopy(ctx context.Context, in AddCopyInput) (domain.Copy, error) {
	if in.Barcode == "" {
		return domain.Copy{}, domain.ErrBarcodeRequired
	}

	now := s.clock.Now()
	cp := domain.Copy{
		ID:      newID(),
		BookID:  in.BookID,
		Barcode: in.Barcode,
		Status:  domain.CopyStatusAvailable,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetBook(txCtx, in.BookID); err != nil {
			return err
		}
		if err := s.repo.CreateCopy(txCtx, cp); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   in.ActorID,
			Action:    "copy.add",
			Entity:    "copy",
			EntityID:  cp.ID,
			Detail:    "barcode " + in.Barcode,
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Copy{}, err
	}
	return cp, nil
}

// MarkCopyDamaged withdraws an available or reserved-but-unassigned copy.
// Loaned copies must be returned first, or reported lost.
func (s *CatalogService) MarkCopyDamaged(ctx context.Context, copyID, actorID string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cp, err := s.repo.GetCopyForUpdate(txCtx, copyID)
		if err != nil {
			return err
		}
		if cp.Status != domain.CopyStatusAvailable {
			return domain.ErrCopyNotAvailable
		}
		if err := s.repo.UpdateCopyStatus(txCtx, copyID, domain.CopyStatusDamaged); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "copy.damaged",
			Entity:    "copy",
			EntityID:  copyID,
			Detail:    "withdrawn as damaged",
			CreatedAt: now,
		})
	})
}

// MarkCopyLost writes a copy off. A copy lost while on loan closes the loan
// and issues a flat replacement fine to the borrowing member.
func (s *CatalogService) MarkCopyLost(ctx context.Context, copyID, actorID string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		cp, err := s.repo.GetCopyForUpdate(txCtx, copyID)
		if err != nil {
			return err
		}
		if cp.Status == domain.CopyStatusLost {
			return nil
		}

		detail := "written off as lost"
		if cp.Status == domain.CopyStatusLoaned {
			loan, err := s.repo.GetOpenLoanByCopy(txCtx, copyID)
			if err != nil {
				return err
			}
			if loan != nil {
				if err := s.repo.CloseLoan(txCtx, loan.ID, now); err != nil {
					return err
				}
				fine := domain.Fine{
					ID:          newID(),
					MemberID:    loan.MemberID,
					LoanID:      &loan.ID,
					AmountCents: s.replacementFine,
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
					Subject:   "Replacement fine issued",
					Body:      fmt.Sprintf("A lost copy was charged at %d cents.", s.replacementFine),
					Status:    domain.NotificationStatusPending,
					CreatedAt: now,
				}); err != nil {
					return err
				}
				detail = fmt.Sprintf("lost on loan %s, replacement fine issued", loan.ID)
			}
		}

		if err := s.repo.UpdateCopyStatus(txCtx, copyID, domain.CopyStatusLost); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "copy.lost",
			Entity:    "copy",
			EntityID:  copyID,
			Detail:    detail,
			CreatedAt: now,
		})
	})
}
