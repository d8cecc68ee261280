package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// AuditReader is the minimal interface for the audit log endpoint.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

const defaultAuditLimit = 100

// HandleAudit returns an HTTP handler for GET /audit, restricted to
// librarians. The optional limit query parameter caps the page size.
func HandleAudit(svc AuditReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireLibrarian(w, r); !ok {
			return
		}

		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit")
				return
			}
			limit = parsed
		}

		entries, err := svc.ListRecent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		resp := make([]auditEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, auditEntryResponse{
				ID:        e.ID,
				ActorID:   e.ActorID,
				Action:    e.Action,
				Entity:    e.Entity,
				EntityID:  e.EntityID,
				Detail:    e.Detail,
				CreatedAt: e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
