package http

import (
	"context"
	"net/http"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// NotificationService is the minimal interface for notification endpoints.
type NotificationService interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, in app.MarkReadInput) error
}

// HandleNotifications returns an HTTP handler for GET /notifications,
// listing the caller's notifications.
func HandleNotifications(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		notifications, err := svc.ListByUser(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		resp := make([]notificationResponse, 0, len(notifications))
		for _, n := range notifications {
			resp = append(resp, toNotificationResponse(n))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleNotificationRead returns an HTTP handler for
// POST /notifications/{id}/read.
func HandleNotificationRead(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		notificationID, ok := parseActionPath(r.URL.Path, "notifications", "read")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		err := svc.MarkRead(r.Context(), app.MarkReadInput{
			NotificationID: notificationID,
			UserID:         identity.UserID,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrNotificationNotFound:
				writeError(w, http.StatusNotFound, codeNotificationNotFound, err.Error())
			case domain.ErrPermissionDenied:
				writeError(w, http.StatusForbidden, codeForbidden, err.Error())
			case domain.ErrNotificationNotSent:
				writeError(w, http.StatusConflict, codeNotificationNotSent, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type notificationResponse struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Subject:   n.Subject,
		Body:      n.Body,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt,
		SentAt:    n.SentAt,
	}
}
