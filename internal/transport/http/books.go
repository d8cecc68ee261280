package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// CatalogBrowser is the minimal interface for the public catalogue endpoints.
type CatalogBrowser interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
	GetBook(ctx context.Context, bookID string) (app.BookDetail, error)
}

// CatalogManager is the minimal interface for librarian catalogue mutations.
type CatalogManager interface {
	CreateBook(ctx context.Context, in app.CreateBookInput) (domain.Book, error)
	DeleteBook(ctx context.Context, bookID, actorID string) error
	AssignCategory(ctx context.Context, bookID, categoryID, actorID string) error
	AddCopy(ctx context.Context, in app.AddCopyInput) (domain.Copy, error)
}

// HandleBooks returns an HTTP handler for GET /books and POST /books.
func HandleBooks(browser CatalogBrowser, manager CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			books, err := browser.ListBooks(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]bookResponse, 0, len(books))
			for _, book := range books {
				resp = append(resp, toBookResponse(book))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			identity, ok := requireLibrarian(w, r)
			if !ok {
				return
			}
			var req createBookRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			book, err := manager.CreateBook(r.Context(), app.CreateBookInput{
				Title:         req.Title,
				Author:        req.Author,
				ISBN:          req.ISBN,
				PublishedYear: req.PublishedYear,
				ActorID:       identity.UserID,
			})
			if err != nil {
				switch err {
				case domain.ErrTitleRequired:
					writeError(w, http.StatusBadRequest, codeTitleRequired, err.Error())
				case domain.ErrISBNTaken:
					writeError(w, http.StatusConflict, codeISBNTaken, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusCreated, toBookResponse(book))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleBook returns an HTTP handler for /books/{id} and its sub-resources
// /books/{id}/categories and /books/{id}/copies.
func HandleBook(browser CatalogBrowser, manager CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, sub, ok := parseBookPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch sub {
		case "":
			handleBookRoot(w, r, browser, manager, bookID)
		case "categories":
			handleBookCategories(w, r, manager, bookID)
		case "copies":
			handleBookCopies(w, r, manager, bookID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleBookRoot(w http.ResponseWriter, r *http.Request, browser CatalogBrowser, manager CatalogManager, bookID string) {
	switch r.Method {
	case http.MethodGet:
		detail, err := browser.GetBook(r.Context(), bookID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrBookNotFound:
				writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := bookDetailResponse{
			Book:            toBookResponse(detail.Book),
			CopiesTotal:     detail.Availability.CopiesTotal,
			CopiesAvailable: detail.Availability.CopiesAvailable,
		}
		resp.Categories = make([]categoryResponse, 0, len(detail.Categories))
		for _, c := range detail.Categories {
			resp.Categories = append(resp.Categories, categoryResponse{ID: c.ID, Name: c.Name})
		}
		resp.Copies = make([]copyResponse, 0, len(detail.Copies))
		for _, cp := range detail.Copies {
			resp.Copies = append(resp.Copies, toCopyResponse(cp))
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		identity, ok := requireLibrarian(w, r)
		if !ok {
			return
		}
		if err := manager.DeleteBook(r.Context(), bookID, identity.UserID); err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrBookNotFound:
				writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
			case domain.ErrBookInUse:
				writeError(w, http.StatusConflict, codeBookInUse, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

func handleBookCategories(w http.ResponseWriter, r *http.Request, manager CatalogManager, bookID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	identity, ok := requireLibrarian(w, r)
	if !ok {
		return
	}

	var req assignCategoryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	if err := manager.AssignCategory(r.Context(), bookID, req.CategoryID, identity.UserID); err != nil {
		switch err {
		case domain.ErrInvalidID:
			writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
		case domain.ErrBookNotFound:
			writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
		case domain.ErrCategoryNotFound:
			writeError(w, http.StatusNotFound, codeCategoryNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleBookCopies(w http.ResponseWriter, r *http.Request, manager CatalogManager, bookID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	identity, ok := requireLibrarian(w, r)
	if !ok {
		return
	}

	var req addCopyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	cp, err := manager.AddCopy(r.Context(), app.AddCopyInput{
		BookID:  bookID,
		Barcode: req.Barcode,
		ActorID: identity.UserID,
	})
	if err != nil {
		switch err {
		case domain.ErrBarcodeRequired:
			writeError(w, http.StatusBadRequest, codeBarcodeRequired, err.Error())
		case domain.ErrInvalidID:
			writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
		case domain.ErrBookNotFound:
			writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
		case domain.ErrBarcodeTaken:
			writeError(w, http.StatusConflict, codeBarcodeTaken, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toCopyResponse(cp))
}

// CategoryService is the minimal interface for category endpoints.
type CategoryService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name, actorID string) (domain.Category, error)
}

// HandleCategories returns an HTTP handler for GET /categories and
// POST /categories.
func HandleCategories(svc CategoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			categories, err := svc.ListCategories(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]categoryResponse, 0, len(categories))
			for _, c := range categories {
				resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name})
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			identity, ok := requireLibrarian(w, r)
			if !ok {
				return
			}
			var req createCategoryRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			category, err := svc.CreateCategory(r.Context(), req.Name, identity.UserID)
			if err != nil {
				switch err {
				case domain.ErrNameRequired:
					writeError(w, http.StatusBadRequest, codeNameRequired, err.Error())
				case domain.ErrCategoryTaken:
					writeError(w, http.StatusConflict, codeCategoryTaken, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// CopyConditionService marks copies damaged or lost.
type CopyConditionService interface {
	MarkCopyDamaged(ctx context.Context, copyID, actorID string) error
	MarkCopyLost(ctx context.Context, copyID, actorID string) error
}

// HandleCopyCondition returns an HTTP handler for POST /copies/{id}/damaged
// and POST /copies/{id}/lost.
func HandleCopyCondition(svc CopyConditionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "copies" || parts[1] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		copyID, action := parts[1], parts[2]

		identity, ok := requireLibrarian(w, r)
		if !ok {
			return
		}

		var err error
		switch action {
		case "damaged":
			err = svc.MarkCopyDamaged(r.Context(), copyID, identity.UserID)
		case "lost":
			err = svc.MarkCopyLost(r.Context(), copyID, identity.UserID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrCopyNotFound:
				writeError(w, http.StatusNotFound, codeCopyNotFound, err.Error())
			case domain.ErrCopyNotAvailable:
				writeError(w, http.StatusConflict, codeCopyNotAvailable, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseBookPath(path string) (bookID, sub string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "books" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

type createBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"published_year"`
}

type bookResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedYear int       `json:"published_year"`
	CreatedAt     time.Time `json:"created_at"`
}

func toBookResponse(b domain.Book) bookResponse {
	return bookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		PublishedYear: b.PublishedYear,
		CreatedAt:     b.CreatedAt,
	}
}

type bookDetailResponse struct {
	Book            bookResponse       `json:"book"`
	Categories      []categoryResponse `json:"categories"`
	Copies          []copyResponse     `json:"copies"`
	CopiesTotal     int                `json:"copies_total"`
	CopiesAvailable int                `json:"copies_available"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

type assignCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

type addCopyRequest struct {
	Barcode string `json:"barcode"`
}

type copyResponse struct {
	ID      string `json:"id"`
	BookID  string `json:"book_id"`
	Barcode string `json:"barcode"`
	Status  string `json:"status"`
}

func toCopyResponse(c domain.Copy) copyResponse {
	return copyResponse{
		ID:      c.ID,
		BookID:  c.BookID,
		Barcode: c.Barcode,
		Status:  string(c.Status),
	}
}
