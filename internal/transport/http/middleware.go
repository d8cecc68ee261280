package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/app"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Printf(
			"request method=%s path=%s status=%d duration=%s",
			r.Method,
			r.URL.Path,
			rec.status,
			time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (app.Claims, error)
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Role   domain.Role
}

type identityKey struct{}

// Authenticate validates the Authorization bearer token, when present, and
// stores the caller's identity in the request context. Requests without a
// token pass through anonymously; handlers that need an identity reject them.
func Authenticate(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "malformed authorization header")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
			return
		}

		identity := Identity{
			UserID: claims.Subject,
			Role:   domain.Role(claims.Role),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// requireIdentity writes a 401 and returns false when the request carries no
// authenticated identity.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return Identity{}, false
	}
	return id, true
}

// requireLibrarian writes a 403 and returns false when the caller is not a
// librarian.
func requireLibrarian(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return Identity{}, false
	}
	if id.Role != domain.RoleLibrarian {
		writeError(w, http.StatusForbidden, codeForbidden, "librarian role required")
		return Identity{}, false
	}
	return id, true
}
