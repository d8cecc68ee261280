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

// Registrar is the minimal interface needed to register an account.
type Registrar interface {
	Register(ctx context.Context, in app.RegisterInput) (app.RegisterResult, error)
}

// HandleRegister returns an HTTP handler for member registration.
func HandleRegister(svc Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req registerRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		result, err := svc.Register(r.Context(), app.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			switch err {
			case domain.ErrEmailRequired:
				writeError(w, http.StatusBadRequest, codeEmailRequired, err.Error())
			case domain.ErrPasswordTooShort:
				writeError(w, http.StatusBadRequest, codePasswordTooShort, err.Error())
			case domain.ErrEmailTaken:
				writeError(w, http.StatusConflict, codeEmailTaken, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, registerResponse{
			User:              toUserResponse(result.User),
			VerificationToken: result.VerificationToken,
		})
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	User userResponse `json:"user"`
	// VerificationToken would normally travel by email; it is returned here
	// so clients without a mail relay can complete verification.
	VerificationToken string `json:"verification_token"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// Authenticator is the minimal interface needed to log in.
type Authenticator interface {
	Login(ctx context.Context, in app.LoginInput) (app.LoginResult, error)
}

// HandleLogin returns an HTTP handler for credential login.
func HandleLogin(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req loginRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		result, err := svc.Login(r.Context(), app.LoginInput{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidCredentials:
				writeError(w, http.StatusUnauthorized, codeInvalidCredentials, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			AccessToken: result.AccessToken,
			ExpiresAt:   result.ExpiresAt,
			User:        toUserResponse(result.User),
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

// PasswordResetService is the minimal interface for the reset flow.
type PasswordResetService interface {
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, in app.ResetPasswordInput) error
}

// HandlePasswordReset returns an HTTP handler for requesting and confirming
// password resets. Requests always succeed so callers cannot probe for
// registered addresses.
func HandlePasswordReset(svc PasswordResetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch strings.TrimSuffix(r.URL.Path, "/") {
		case "/auth/password-reset":
			var req resetRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil || req.Email == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if _, err := svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			w.WriteHeader(http.StatusAccepted)
		case "/auth/password-reset/confirm":
			var req resetConfirmRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			err := svc.ResetPassword(r.Context(), app.ResetPasswordInput{
				Token:       req.Token,
				NewPassword: req.NewPassword,
			})
			if err != nil {
				switch err {
				case domain.ErrPasswordTooShort:
					writeError(w, http.StatusBadRequest, codePasswordTooShort, err.Error())
				case domain.ErrTokenNotFound, domain.ErrTokenExpired, domain.ErrTokenConsumed:
					writeError(w, http.StatusBadRequest, codeInvalidToken, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// EmailVerifier is the minimal interface needed to verify an address.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

// HandleVerifyEmail returns an HTTP handler that consumes a verification token.
func HandleVerifyEmail(svc EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req verifyEmailRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil || req.Token == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.VerifyEmail(r.Context(), req.Token); err != nil {
			switch err {
			case domain.ErrTokenNotFound, domain.ErrTokenExpired, domain.ErrTokenConsumed:
				writeError(w, http.StatusBadRequest, codeInvalidToken, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// Promoter is the minimal interface needed to grant the librarian role.
type Promoter interface {
	PromoteToLibrarian(ctx context.Context, actorID, userID string) error
}

// HandlePromote returns an HTTP handler for POST /users/{id}/promote.
func HandlePromote(svc Promoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := parseActionPath(r.URL.Path, "users", "promote")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		identity, ok := requireLibrarian(w, r)
		if !ok {
			return
		}

		if err := svc.PromoteToLibrarian(r.Context(), identity.UserID, userID); err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
			case domain.ErrUserNotFound:
				writeError(w, http.StatusNotFound, codeUserNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseActionPath matches /{resource}/{id}/{action} and returns the id.
func parseActionPath(path, resource, action string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != resource || parts[2] != action {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
