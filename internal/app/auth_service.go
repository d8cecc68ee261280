package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type UserRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateUser(ctx context.Context, user domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetEmailVerified(ctx context.Context, userID string) error
	UpdateUserRole(ctx context.Context, userID string, role domain.Role) error
	CreateToken(ctx context.Context, token domain.Token) error
	GetTokenBySecret(ctx context.Context, purpose domain.TokenPurpose, secret string) (domain.Token, error)
	ConsumeToken(ctx context.Context, tokenID string, at time.Time) error
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
	CreateAuditEntry(ctx context.Context, e domain.AuditEntry) error
}

type AuthService struct {
	repo      UserRepository
	clock     clock.Clock
	jwtSecret []byte
	jwtTTL    time.Duration
	resetTTL  time.Duration
	verifyTTL time.Duration
}

const (
	defaultJWTTTL    = time.Hour
	defaultResetTTL  = 30 * time.Minute
	defaultVerifyTTL = 24 * time.Hour
)

func NewAuthService(repo UserRepository, clk clock.Clock, jwtSecret string, opts ...AuthServiceOption) *AuthService {
	svc := &AuthService{
		repo:      repo,
		clock:     clk,
		jwtSecret: []byte(jwtSecret),
		jwtTTL:    defaultJWTTTL,
		resetTTL:  defaultResetTTL,
		verifyTTL: defaultVerifyTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type AuthServiceOption func(*AuthService)

// WithTokenTTLs overrides the access-token, password-reset and
// email-verification lifetimes. Zero values keep the defaults.
func WithTokenTTLs(jwtTTL, resetTTL, verifyTTL time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		if jwtTTL > 0 {
			s.jwtTTL = jwtTTL
		}
		if resetTTL > 0 {
			s.resetTTL = resetTTL
		}
		if verifyTTL > 0 {
			s.verifyTTL = verifyTTL
		}
	}
}

// Claims is the JWT payload for an authenticated user.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult carries the new user and the email-verification token that
// would normally travel out of band.
type RegisterResult struct {
	User              domain.User
	VerificationToken string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if in.Name == "" || in.Email == "" {
		return RegisterResult{}, domain.ErrEmailRequired
	}
	if len(in.Password) < 8 {
		return RegisterResult{}, domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	var result RegisterResult

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetUserByEmail(txCtx, in.Email); err == nil {
			return domain.ErrEmailTaken
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		user := domain.User{
			ID:           newID(),
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: string(hash),
			Role:         domain.RoleMember,
			CreatedAt:    now,
		}
		if err := s.repo.CreateUser(txCtx, user); err != nil {
			return err
		}

		secret := newSecret()
		token := domain.Token{
			ID:        newID(),
			UserID:    user.ID,
			Purpose:   domain.TokenEmailVerification,
			Token:     secret,
			ExpiresAt: now.Add(s.verifyTTL),
		}
		if err := s.repo.CreateToken(txCtx, token); err != nil {
			return err
		}

		notice := domain.Notification{
			ID:        newID(),
			UserID:    user.ID,
			Type:      domain.NotificationAccount,
			Subject:   "Verify your email",
			Body:      "Use token " + secret + " to verify your library account.",
			Status:    domain.NotificationStatusPending,
			CreatedAt: now,
		}
		if err := s.repo.CreateNotification(txCtx, notice); err != nil {
			return err
		}

		if err := s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   user.ID,
			Action:    "user.register",
			Entity:    "user",
			EntityID:  user.ID,
			Detail:    "registered " + user.Email,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = RegisterResult{User: user, VerificationToken: secret}
		return nil
	})
	if err != nil {
		return RegisterResult{}, err
	}
	return result, nil
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	User        domain.User
	AccessToken string
	ExpiresAt   time.Time
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.jwtTTL)
	claims := Claims{
		Role:  string(user.Role),
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResult{User: user, AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates an access token, returning its claims.
func (s *AuthService) Verify(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Claims{}, domain.ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, domain.ErrInvalidCredentials
	}
	return *claims, nil
}

// RequestPasswordReset issues a reset token for the account, if one exists.
// Unknown emails return the empty string without error so the endpoint does
// not leak which addresses are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}

	now := s.clock.Now()
	secret := newSecret()

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		token := domain.Token{
			ID:        newID(),
			UserID:    user.ID,
			Purpose:   domain.TokenPasswordReset,
			Token:     secret,
			ExpiresAt: now.Add(s.resetTTL),
		}
		if err := s.repo.CreateToken(txCtx, token); err != nil {
			return err
		}
		notice := domain.Notification{
			ID:        newID(),
			UserID:    user.ID,
			Type:      domain.NotificationAccount,
			Subject:   "Password reset requested",
			Body:      "Use token " + secret + " to reset your password.",
			Status:    domain.NotificationStatusPending,
			CreatedAt: now,
		}
		return s.repo.CreateNotification(txCtx, notice)
	})
	if err != nil {
		return "", err
	}
	return secret, nil
}

type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if len(in.NewPassword) < 8 {
		return domain.ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		token, err := s.consumeToken(txCtx, domain.TokenPasswordReset, in.Token, now)
		if err != nil {
			return err
		}
		if err := s.repo.UpdatePasswordHash(txCtx, token.UserID, string(hash)); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   token.UserID,
			Action:    "user.password_reset",
			Entity:    "user",
			EntityID:  token.UserID,
			Detail:    "password reset via token",
			CreatedAt: now,
		})
	})
}

func (s *AuthService) VerifyEmail(ctx context.Context, secret string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		token, err := s.consumeToken(txCtx, domain.TokenEmailVerification, secret, now)
		if err != nil {
			return err
		}
		return s.repo.SetEmailVerified(txCtx, token.UserID)
	})
}

func (s *AuthService) consumeToken(ctx context.Context, purpose domain.TokenPurpose, secret string, now time.Time) (domain.Token, error) {
	token, err := s.repo.GetTokenBySecret(ctx, purpose, secret)
	if err != nil {
		return domain.Token{}, err
	}
	if token.ConsumedAt != nil {
		return domain.Token{}, domain.ErrTokenConsumed
	}
	if !token.ExpiresAt.After(now) {
		return domain.Token{}, domain.ErrTokenExpired
	}
	if err := s.repo.ConsumeToken(ctx, token.ID, now); err != nil {
		return domain.Token{}, err
	}
	return token, nil
}

// PromoteToLibrarian grants the librarian role. Role enforcement for the
// actor happens at the transport layer; the actor is recorded for audit.
func (s *AuthService) PromoteToLibrarian(ctx context.Context, actorID, userID string) error {
	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.repo.GetUserByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user.Role == domain.RoleLibrarian {
			return nil
		}
		if err := s.repo.UpdateUserRole(txCtx, userID, domain.RoleLibrarian); err != nil {
			return err
		}
		return s.repo.CreateAuditEntry(txCtx, domain.AuditEntry{
			ID:        newID(),
			ActorID:   actorID,
			Action:    "user.promote",
			Entity:    "user",
			EntityID:  userID,
			Detail:    "promoted " + user.Email + " to librarian",
			CreatedAt: now,
		})
	})
}

// BootstrapLibrarian creates a librarian account unless the email is already
// registered. Used at startup so deployments start with a working admin.
func (s *AuthService) BootstrapLibrarian(ctx context.Context, name, email, password string) (domain.User, bool, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:            newID(),
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          domain.RoleLibrarian,
		EmailVerified: true,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// PurgeExpiredTokens removes expired single-use tokens; called by the sweep.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int, error) {
	return s.repo.DeleteExpiredTokens(ctx, s.clock.Now())
}
