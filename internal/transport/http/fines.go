package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// FineService is the minimal interface for fine endpoints.
type FineService interface {
	Pay(ctx context.Context, in app.SettleFineInput) (domain.Fine, error)
	Waive(ctx context.Context, in app.SettleFineInput) (domain.Fine, error)
	ListByMember(ctx context.Context, memberID string) ([]domain.Fine, error)
	OutstandingBalance(ctx context.Context, memberID string) (int, error)
}

// HandleFines returns an HTTP handler for GET /fines, listing the caller's
// fines with their outstanding balance.
func HandleFines(svc FineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		writeFineList(w, r, svc, identity.UserID)
	}
}

// HandleMemberFines returns an HTTP handler for GET /members/{id}/fines,
// restricted to librarians.
func HandleMemberFines(svc FineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		memberID, ok := parseActionPath(r.URL.Path, "members", "fines")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if _, ok := requireLibrarian(w, r); !ok {
			return
		}
		writeFineList(w, r, svc, memberID)
	}
}

func writeFineList(w http.ResponseWriter, r *http.Request, svc FineService, memberID string) {
	fines, err := svc.ListByMember(r.Context(), memberID)
	if err != nil {
		if err == domain.ErrInvalidID {
			writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	balance, err := svc.OutstandingBalance(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	resp := fineListResponse{
		Fines:            make([]fineResponse, 0, len(fines)),
		OutstandingCents: balance,
	}
	for _, fine := range fines {
		resp.Fines = append(resp.Fines, toFineResponse(fine))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleFineSettle returns an HTTP handler for POST /fines/{id}/pay and
// POST /fines/{id}/waive.
func HandleFineSettle(svc FineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "fines" || parts[1] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		fineID, action := parts[1], parts[2]

		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		in := app.SettleFineInput{
			FineID:    fineID,
			ActorID:   identity.UserID,
			ActorRole: identity.Role,
		}

		var fine domain.Fine
		var err error
		switch action {
		case "pay":
			fine, err = svc.Pay(r.Context(), in)
		case "waive":
			fine, err = svc.Waive(r.Context(), in)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrFineNotFound:
				writeError(w, http.StatusNotFound, codeFineNotFound, err.Error())
			case domain.ErrPermissionDenied:
				writeError(w, http.StatusForbidden, codeForbidden, err.Error())
			case domain.ErrFineAlreadySettled:
				writeError(w, http.StatusConflict, codeFineAlreadySettled, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		writeJSON(w, http.StatusOK, toFineResponse(fine))
	}
}

type fineResponse struct {
	ID          string     `json:"id"`
	MemberID    string     `json:"member_id"`
	LoanID      *string    `json:"loan_id,omitempty"`
	AmountCents int        `json:"amount_cents"`
	Status      string     `json:"status"`
	IssuedAt    time.Time  `json:"issued_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

func toFineResponse(f domain.Fine) fineResponse {
	return fineResponse{
		ID:          f.ID,
		MemberID:    f.MemberID,
		LoanID:      f.LoanID,
		AmountCents: f.AmountCents,
		Status:      string(f.Status),
		IssuedAt:    f.IssuedAt,
		SettledAt:   f.SettledAt,
	}
}

type fineListResponse struct {
	Fines            []fineResponse `json:"fines"`
	OutstandingCents int            `json:"outstanding_cents"`
}
