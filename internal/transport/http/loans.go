package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// LoanService is the minimal interface for loan endpoints.
type LoanService interface {
	Checkout(ctx context.Context, in app.CheckoutInput) (domain.Loan, error)
	Renew(ctx context.Context, in app.RenewInput) (domain.Loan, error)
	Return(ctx context.Context, in app.ReturnInput) (app.ReturnResult, error)
	MyLoans(ctx context.Context, memberID string) ([]domain.Loan, error)
}

// HandleLoans returns an HTTP handler for GET /loans (the caller's loans)
// and POST /loans (librarian checkout).
func HandleLoans(svc LoanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			identity, ok := requireIdentity(w, r)
			if !ok {
				return
			}
			loans, err := svc.MyLoans(r.Context(), identity.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]loanResponse, 0, len(loans))
			for _, loan := range loans {
				resp = append(resp, toLoanResponse(loan))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			identity, ok := requireLibrarian(w, r)
			if !ok {
				return
			}
			var req checkoutRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if req.MemberID == "" || req.CopyID == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "member_id and copy_id are required")
				return
			}

			var dueAt *time.Time
			if req.DueAt != "" {
				parsed, err := time.Parse(time.RFC3339, req.DueAt)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid due_at format")
					return
				}
				dueAt = &parsed
			}

			loan, err := svc.Checkout(r.Context(), app.CheckoutInput{
				MemberID: req.MemberID,
				CopyID:   req.CopyID,
				ActorID:  identity.UserID,
				DueAt:    dueAt,
			})
			if err != nil {
				switch err {
				case domain.ErrInvalidID:
					writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
				case domain.ErrUserNotFound:
					writeError(w, http.StatusNotFound, codeUserNotFound, err.Error())
				case domain.ErrCopyNotFound:
					writeError(w, http.StatusNotFound, codeCopyNotFound, err.Error())
				case domain.ErrCopyNotAvailable:
					writeError(w, http.StatusConflict, codeCopyNotAvailable, err.Error())
				case domain.ErrOutstandingFine:
					writeError(w, http.StatusConflict, codeOutstandingFine, err.Error())
				case domain.ErrLoanLimit:
					writeError(w, http.StatusConflict, codeLoanLimit, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusCreated, toLoanResponse(loan))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleLoanRenew returns an HTTP handler for POST /loans/{id}/renew.
func HandleLoanRenew(svc LoanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		loanID, ok := parseActionPath(r.URL.Path, "loans", "renew")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		loan, err := svc.Renew(r.Context(), app.RenewInput{
			LoanID:   loanID,
			MemberID: identity.UserID,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrLoanNotFound:
				writeError(w, http.StatusNotFound, codeLoanNotFound, err.Error())
			case domain.ErrPermissionDenied:
				writeError(w, http.StatusForbidden, codeForbidden, err.Error())
			case domain.ErrLoanClosed:
				writeError(w, http.StatusConflict, codeLoanClosed, err.Error())
			case domain.ErrLoanOverdue:
				writeError(w, http.StatusConflict, codeLoanOverdue, err.Error())
			case domain.ErrRenewalLimit:
				writeError(w, http.StatusConflict, codeRenewalLimit, err.Error())
			case domain.ErrOutstandingFine:
				writeError(w, http.StatusConflict, codeOutstandingFine, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		writeJSON(w, http.StatusOK, toLoanResponse(loan))
	}
}

// HandleLoanReturn returns an HTTP handler for POST /loans/{id}/return.
func HandleLoanReturn(svc LoanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		loanID, ok := parseActionPath(r.URL.Path, "loans", "return")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		identity, ok := requireLibrarian(w, r)
		if !ok {
			return
		}

		result, err := svc.Return(r.Context(), app.ReturnInput{
			LoanID:  loanID,
			ActorID: identity.UserID,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrLoanNotFound:
				writeError(w, http.StatusNotFound, codeLoanNotFound, err.Error())
			case domain.ErrLoanClosed:
				writeError(w, http.StatusConflict, codeLoanClosed, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := returnResponse{
			Loan:                   toLoanResponse(result.Loan),
			FulfilledReservationID: result.FulfilledID,
		}
		if result.Fine != nil {
			fine := toFineResponse(*result.Fine)
			resp.Fine = &fine
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type checkoutRequest struct {
	MemberID string `json:"member_id"`
	CopyID   string `json:"copy_id"`
	DueAt    string `json:"due_at,omitempty"`
}

type loanResponse struct {
	ID         string     `json:"id"`
	CopyID     string     `json:"copy_id"`
	MemberID   string     `json:"member_id"`
	LoanedAt   time.Time  `json:"loaned_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Renewals   int        `json:"renewals"`
	Status     string     `json:"status"`
}

func toLoanResponse(l domain.Loan) loanResponse {
	return loanResponse{
		ID:         l.ID,
		CopyID:     l.CopyID,
		MemberID:   l.MemberID,
		LoanedAt:   l.LoanedAt,
		DueAt:      l.DueAt,
		ReturnedAt: l.ReturnedAt,
		Renewals:   l.Renewals,
		Status:     string(l.Status),
	}
}

type returnResponse struct {
	Loan                   loanResponse  `json:"loan"`
	Fine                   *fineResponse `json:"fine,omitempty"`
	FulfilledReservationID string        `json:"fulfilled_reservation_id,omitempty"`
}
