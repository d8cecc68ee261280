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

// ReservationService is the minimal interface for reservation endpoints.
type ReservationService interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
	QueuePosition(ctx context.Context, reservationID string) (int, error)
	Fulfill(ctx context.Context, in app.FulfillInput) (domain.Reservation, error)
	Cancel(ctx context.Context, in app.CancelInput) error
	MyReservations(ctx context.Context, memberID string) ([]domain.Reservation, error)
}

// HandleReservations returns an HTTP handler for GET /reservations (the
// caller's reservations) and POST /reservations.
func HandleReservations(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			reservations, err := svc.MyReservations(r.Context(), identity.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]reservationResponse, 0, len(reservations))
			for _, res := range reservations {
				resp = append(resp, toReservationResponse(res))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req reserveRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil || req.BookID == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			reservation, err := svc.Reserve(r.Context(), app.ReserveInput{
				MemberID: identity.UserID,
				BookID:   req.BookID,
			})
			if err != nil {
				switch err {
				case domain.ErrInvalidID:
					writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
				case domain.ErrBookNotFound:
					writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
				case domain.ErrCopyAvailable:
					writeError(w, http.StatusConflict, codeCopyAvailable, err.Error())
				case domain.ErrDuplicateReservation:
					writeError(w, http.StatusConflict, codeDuplicateReservation, err.Error())
				case domain.ErrReservationLimit:
					writeError(w, http.StatusConflict, codeReservationLimit, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleReservation returns an HTTP handler for the reservation sub-resources
// GET /reservations/{id}/position, POST /reservations/{id}/cancel and
// POST /reservations/{id}/fulfill.
func HandleReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "reservations" || parts[1] == "" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		reservationID, action := parts[1], parts[2]

		switch action {
		case "position":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			if _, ok := requireIdentity(w, r); !ok {
				return
			}
			position, err := svc.QueuePosition(r.Context(), reservationID)
			if err != nil {
				writeReservationError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, queuePositionResponse{Position: position})
		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			identity, ok := requireIdentity(w, r)
			if !ok {
				return
			}
			err := svc.Cancel(r.Context(), app.CancelInput{
				ReservationID: reservationID,
				ActorID:       identity.UserID,
				ActorRole:     identity.Role,
			})
			if err != nil {
				writeReservationError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "fulfill":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			identity, ok := requireLibrarian(w, r)
			if !ok {
				return
			}
			reservation, err := svc.Fulfill(r.Context(), app.FulfillInput{
				ReservationID: reservationID,
				ActorID:       identity.UserID,
			})
			if err != nil {
				writeReservationError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toReservationResponse(reservation))
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func writeReservationError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
	case domain.ErrReservationNotFound:
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case domain.ErrPermissionDenied:
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case domain.ErrReservationNotActive:
		writeError(w, http.StatusConflict, codeReservationNotActive, err.Error())
	case domain.ErrNotHeadOfQueue:
		writeError(w, http.StatusConflict, codeNotHeadOfQueue, err.Error())
	case domain.ErrCopyNotAvailable:
		writeError(w, http.StatusConflict, codeCopyNotAvailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type reserveRequest struct {
	BookID string `json:"book_id"`
}

type reservationResponse struct {
	ID          string     `json:"id"`
	BookID      string     `json:"book_id"`
	MemberID    string     `json:"member_id"`
	CopyID      *string    `json:"copy_id,omitempty"`
	Status      string     `json:"status"`
	ReservedAt  time.Time  `json:"reserved_at"`
	PickupBy    *time.Time `json:"pickup_by,omitempty"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:          res.ID,
		BookID:      res.BookID,
		MemberID:    res.MemberID,
		CopyID:      res.CopyID,
		Status:      string(res.Status),
		ReservedAt:  res.ReservedAt,
		PickupBy:    res.PickupBy,
		CollectedAt: res.CollectedAt,
	}
}

type queuePositionResponse struct {
	Position int `json:"position"`
}
