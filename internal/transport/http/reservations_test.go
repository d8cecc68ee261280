package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type stubReservationService struct {
	reservation  domain.Reservation
	reservations []domain.Reservation
	position     int
	err          error

	cancelled app.CancelInput
}

func (s *stubReservationService) Reserve(_ context.Context, _ app.ReserveInput) (domain.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubReservationService) QueuePosition(_ context.Context, _ string) (int, error) {
	return s.position, s.err
}

func (s *stubReservationService) Fulfill(_ context.Context, _ app.FulfillInput) (domain.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubReservationService) Cancel(_ context.Context, in app.CancelInput) error {
	s.cancelled = in
	return s.err
}

func (s *stubReservationService) MyReservations(_ context.Context, _ string) ([]domain.Reservation, error) {
	return s.reservations, s.err
}

func TestHandleReservations_Reserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	success := domain.Reservation{
		ID:         "res-123",
		BookID:     "book-1",
		MemberID:   "member-1",
		Status:     domain.ReservationStatusActive,
		ReservedAt: now,
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"book_id":"book-1"}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"id":"res-123"`,
		},
		{
			name:           "invalid json",
			body:           `{"book_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing book",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "book not found",
			body:           `{"book_id":"book-1"}`,
			serviceErr:     domain.ErrBookNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "copy on the shelf",
			body:           `{"book_id":"book-1"}`,
			serviceErr:     domain.ErrCopyAvailable,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "duplicate",
			body:           `{"book_id":"book-1"}`,
			serviceErr:     domain.ErrDuplicateReservation,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "limit reached",
			body:           `{"book_id":"book-1"}`,
			serviceErr:     domain.ErrReservationLimit,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "internal error",
			body:           `{"book_id":"book-1"}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{reservation: success, err: tt.serviceErr}
			req := asMember(httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewBufferString(tt.body)), "member-1")
			rec := httptest.NewRecorder()

			HandleReservations(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}

	t.Run("anonymous is rejected", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewBufferString(`{"book_id":"book-1"}`))
		rec := httptest.NewRecorder()

		HandleReservations(&stubReservationService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})
}

func TestHandleReservation_Position(t *testing.T) {
	t.Parallel()

	t.Run("returns the queue rank", func(t *testing.T) {
		t.Parallel()
		svc := &stubReservationService{position: 3}
		req := asMember(httptest.NewRequest(http.MethodGet, "/reservations/res-1/position", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"position":3`) {
			t.Fatalf("expected position in response, got %q", rec.Body.String())
		}
	})

	t.Run("settled reservation has no position", func(t *testing.T) {
		t.Parallel()
		svc := &stubReservationService{err: domain.ErrReservationNotActive}
		req := asMember(httptest.NewRequest(http.MethodGet, "/reservations/res-1/position", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("position requires GET", func(t *testing.T) {
		t.Parallel()
		req := asMember(httptest.NewRequest(http.MethodPost, "/reservations/res-1/position", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(&stubReservationService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status 405, got %d", rec.Code)
		}
	})
}

func TestHandleReservation_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("owner cancels", func(t *testing.T) {
		t.Parallel()
		svc := &stubReservationService{}
		req := asMember(httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		if svc.cancelled.ActorID != "member-1" || svc.cancelled.ActorRole != domain.RoleMember {
			t.Fatalf("expected actor passed through, got %+v", svc.cancelled)
		}
	})

	t.Run("someone else's reservation", func(t *testing.T) {
		t.Parallel()
		svc := &stubReservationService{err: domain.ErrPermissionDenied}
		req := asMember(httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", nil), "member-2")
		rec := httptest.NewRecorder()

		HandleReservation(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})
}

func TestHandleReservation_Fulfill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
	}{
		{name: "success", expectedStatus: http.StatusOK},
		{name: "not found", serviceErr: domain.ErrReservationNotFound, expectedStatus: http.StatusNotFound},
		{name: "not head of queue", serviceErr: domain.ErrNotHeadOfQueue, expectedStatus: http.StatusConflict},
		{name: "no copy free", serviceErr: domain.ErrCopyNotAvailable, expectedStatus: http.StatusConflict},
		{name: "not active", serviceErr: domain.ErrReservationNotActive, expectedStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{reservation: domain.Reservation{ID: "res-1"}, err: tt.serviceErr}
			req := asLibrarian(httptest.NewRequest(http.MethodPost, "/reservations/res-1/fulfill", nil), "librarian-1")
			rec := httptest.NewRecorder()

			HandleReservation(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}

	t.Run("member cannot fulfill", func(t *testing.T) {
		t.Parallel()
		req := asMember(httptest.NewRequest(http.MethodPost, "/reservations/res-1/fulfill", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(&stubReservationService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()
		req := asMember(httptest.NewRequest(http.MethodPost, "/reservations/res-1/bump", nil), "member-1")
		rec := httptest.NewRecorder()

		HandleReservation(&stubReservationService{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}
