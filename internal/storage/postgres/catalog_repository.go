package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type CatalogRepository struct {
	store
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{store{pool: pool}}
}

func (r *CatalogRepository) CreateBook(ctx context.Context, book domain.Book) error {
	const stmt = `
INSERT INTO books (id, title, author, isbn, published_year, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		book.ID,
		book.Title,
		book.Author,
		book.ISBN,
		book.PublishedYear,
		book.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrISBNTaken
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListBooks(ctx context.Context) ([]domain.Book, error) {
	const query = `
SELECT id, title, author, isbn, published_year, created_at
FROM books
ORDER BY created_at ASC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.PublishedYear, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate books: %w", rows.Err())
	}
	return books, nil
}

func (r *CatalogRepository) DeleteBook(ctx context.Context, bookID string) error {
	const stmt = `DELETE FROM books WHERE id = $1`

	tag, err := r.exec(ctx, stmt, bookID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBookInUse
		}
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (r *CatalogRepository) CountOpenLoansByBook(ctx context.Context, bookID string) (int, error) {
	const query = `
SELECT COUNT(*)
FROM loans l
JOIN copies c ON c.id = l.copy_id
WHERE c.book_id = $1 AND l.returned_at IS NULL`

	return r.countQuery(ctx, query, bookID)
}

func (r *CatalogRepository) CountLiveReservationsByBook(ctx context.Context, bookID string) (int, error) {
	const query = `
SELECT COUNT(*)
FROM reservations
WHERE book_id = $1
  AND (status = 'active' OR (status = 'fulfilled' AND collected_at IS NULL))`

	return r.countQuery(ctx, query, bookID)
}

func (r *CatalogRepository) countQuery(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := r.queryRow(ctx, query, args...).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, category domain.Category) error {
	const stmt = `INSERT INTO categories (id, name) VALUES ($1, $2)`

	_, err := r.exec(ctx, stmt, category.ID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCategoryTaken
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	const query = `SELECT id, name FROM categories ORDER BY name ASC`
	return r.listCategories(ctx, query)
}

func (r *CatalogRepository) ListCategoriesByBook(ctx context.Context, bookID string) ([]domain.Category, error) {
	const query = `
SELECT c.id, c.name
FROM categories c
JOIN book_categories bc ON bc.category_id = c.id
WHERE bc.book_id = $1
ORDER BY c.name ASC`

	return r.listCategories(ctx, query, bookID)
}

func (r *CatalogRepository) listCategories(ctx context.Context, query string, args ...any) ([]domain.Category, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate categories: %w", rows.Err())
	}
	return categories, nil
}

func (r *CatalogRepository) AssignCategory(ctx context.Context, bookID, categoryID string) error {
	const stmt = `
INSERT INTO book_categories (book_id, category_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

	_, err := r.exec(ctx, stmt, bookID, categoryID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "category") {
				return domain.ErrCategoryNotFound
			}
			return domain.ErrBookNotFound
		}
		return fmt.Errorf("assign category: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateCopy(ctx context.Context, cp domain.Copy) error {
	const stmt = `
INSERT INTO copies (id, book_id, barcode, status)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, cp.ID, cp.BookID, cp.Barcode, cp.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBarcodeTaken
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBookNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create copy: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListCopiesByBook(ctx context.Context, bookID string) ([]domain.Copy, error) {
	const query = `
SELECT id, book_id, barcode, status
FROM copies
WHERE book_id = $1
ORDER BY barcode ASC`

	rows, err := r.query(ctx, query, bookID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list copies: %w", err)
	}
	defer rows.Close()

	var copies []domain.Copy
	for rows.Next() {
		var c domain.Copy
		if err := rows.Scan(&c.ID, &c.BookID, &c.Barcode, &c.Status); err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		copies = append(copies, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate copies: %w", rows.Err())
	}
	return copies, nil
}

func (r *CatalogRepository) GetOpenLoanByCopy(ctx context.Context, copyID string) (*domain.Loan, error) {
	const query = `
SELECT id, copy_id, member_id, loaned_at, due_at, returned_at, renewals, status
FROM loans
WHERE copy_id = $1 AND returned_at IS NULL
FOR UPDATE`

	l, err := scanLoan(r.queryRow(ctx, query, copyID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get open loan: %w", err)
	}
	return &l, nil
}

func scanLoan(row pgx.Row) (domain.Loan, error) {
	var l domain.Loan
	err := row.Scan(&l.ID, &l.CopyID, &l.MemberID, &l.LoanedAt, &l.DueAt, &l.ReturnedAt, &l.Renewals, &l.Status)
	if err != nil {
		return domain.Loan{}, err
	}
	return l, nil
}
