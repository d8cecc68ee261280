package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type UserRepository struct {
	store
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{store{pool: pool}}
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	const stmt = `
INSERT INTO users (id, name, email, password_hash, role, email_verified, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.EmailVerified,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, password_hash, role, email_verified, created_at`

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.queryRow(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.EmailVerified, &u.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.User{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.updateUser(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, userID string) error {
	return r.updateUser(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, userID)
}

func (r *UserRepository) UpdateUserRole(ctx context.Context, userID string, role domain.Role) error {
	return r.updateUser(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, role)
}

func (r *UserRepository) updateUser(ctx context.Context, stmt string, args ...any) error {
	tag, err := r.exec(ctx, stmt, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CreateToken(ctx context.Context, token domain.Token) error {
	const stmt = `
INSERT INTO user_tokens (id, user_id, purpose, token, expires_at, consumed_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		token.ID,
		token.UserID,
		token.Purpose,
		token.Token,
		token.ExpiresAt,
		token.ConsumedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (r *UserRepository) GetTokenBySecret(ctx context.Context, purpose domain.TokenPurpose, secret string) (domain.Token, error) {
	const query = `
SELECT id, user_id, purpose, token, expires_at, consumed_at
FROM user_tokens
WHERE purpose = $1 AND token = $2`

	var t domain.Token
	err := r.queryRow(ctx, query, purpose, secret).
		Scan(&t.ID, &t.UserID, &t.Purpose, &t.Token, &t.ExpiresAt, &t.ConsumedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Token{}, domain.ErrTokenNotFound
		}
		return domain.Token{}, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func (r *UserRepository) ConsumeToken(ctx context.Context, tokenID string, at time.Time) error {
	const stmt = `UPDATE user_tokens SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`

	tag, err := r.exec(ctx, stmt, tokenID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenConsumed
	}
	return nil
}

func (r *UserRepository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	const stmt = `DELETE FROM user_tokens WHERE expires_at <= $1`

	tag, err := r.exec(ctx, stmt, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
