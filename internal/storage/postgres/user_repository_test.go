package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/domain"
	"github.com/BaoThanh22042004/library-api/internal/testutil"
)

func TestUserRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewUserRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreateUser rejects a duplicate email", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		user := domain.User{
			ID:           "10000000-0000-0000-0000-000000000001",
			Name:         "Ada",
			Email:        "ada@example.com",
			PasswordHash: "hash",
			Role:         domain.RoleMember,
			CreatedAt:    now,
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		user.ID = "10000000-0000-0000-0000-000000000002"
		if err := repo.CreateUser(ctx, user); err != domain.ErrEmailTaken {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("GetUserByEmail round-trips the stored row", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertUser(t, ctx, pool, domain.User{
			Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: domain.RoleLibrarian,
		})

		user, err := repo.GetUserByEmail(ctx, "ada@example.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != id || user.Role != domain.RoleLibrarian {
			t.Fatalf("unexpected user %+v", user)
		}

		if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); err != domain.ErrUserNotFound {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("GetUserByID maps a malformed id", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.GetUserByID(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("UpdateUserRole requires an existing user", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertUser(t, ctx, pool, domain.User{
			Name: "Ada", Email: "ada@example.com", Role: domain.RoleMember,
		})
		if err := repo.UpdateUserRole(ctx, id, domain.RoleLibrarian); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		user, err := repo.GetUserByID(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.Role != domain.RoleLibrarian {
			t.Fatalf("expected librarian role, got %q", user.Role)
		}

		missing := "00000000-0000-0000-0000-000000000001"
		if err := repo.UpdateUserRole(ctx, missing, domain.RoleLibrarian); err != domain.ErrUserNotFound {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("ConsumeToken is single use", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		userID := testutil.InsertUser(t, ctx, pool, domain.User{
			Name: "Ada", Email: "ada@example.com", Role: domain.RoleMember,
		})
		token := domain.Token{
			ID:        "20000000-0000-0000-0000-000000000001",
			UserID:    userID,
			Purpose:   domain.TokenPasswordReset,
			Token:     "secret-1",
			ExpiresAt: now.Add(30 * time.Minute),
		}
		if err := repo.CreateToken(ctx, token); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored, err := repo.GetTokenBySecret(ctx, domain.TokenPasswordReset, "secret-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stored.ID != token.ID || stored.ConsumedAt != nil {
			t.Fatalf("unexpected token %+v", stored)
		}

		if err := repo.ConsumeToken(ctx, token.ID, now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.ConsumeToken(ctx, token.ID, now); err != domain.ErrTokenConsumed {
			t.Fatalf("expected ErrTokenConsumed on second consume, got %v", err)
		}
	})

	t.Run("GetTokenBySecret matches on purpose", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		userID := testutil.InsertUser(t, ctx, pool, domain.User{
			Name: "Ada", Email: "ada@example.com", Role: domain.RoleMember,
		})
		err := repo.CreateToken(ctx, domain.Token{
			ID:        "20000000-0000-0000-0000-000000000001",
			UserID:    userID,
			Purpose:   domain.TokenEmailVerification,
			Token:     "secret-1",
			ExpiresAt: now.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := repo.GetTokenBySecret(ctx, domain.TokenPasswordReset, "secret-1"); err != domain.ErrTokenNotFound {
			t.Fatalf("expected ErrTokenNotFound for wrong purpose, got %v", err)
		}
	})

	t.Run("CreateToken rejects an unknown user", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateToken(ctx, domain.Token{
			ID:        "20000000-0000-0000-0000-000000000001",
			UserID:    "00000000-0000-0000-0000-000000000001",
			Purpose:   domain.TokenPasswordReset,
			Token:     "secret-1",
			ExpiresAt: now.Add(30 * time.Minute),
		})
		if err != domain.ErrUserNotFound {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("DeleteExpiredTokens reports how many it removed", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		userID := testutil.InsertUser(t, ctx, pool, domain.User{
			Name: "Ada", Email: "ada@example.com", Role: domain.RoleMember,
		})
		tokens := []domain.Token{
			{ID: "20000000-0000-0000-0000-000000000001", UserID: userID, Purpose: domain.TokenPasswordReset, Token: "old-1", ExpiresAt: now.Add(-time.Hour)},
			{ID: "20000000-0000-0000-0000-000000000002", UserID: userID, Purpose: domain.TokenEmailVerification, Token: "old-2", ExpiresAt: now.Add(-time.Minute)},
			{ID: "20000000-0000-0000-0000-000000000003", UserID: userID, Purpose: domain.TokenPasswordReset, Token: "fresh", ExpiresAt: now.Add(time.Hour)},
		}
		for _, token := range tokens {
			if err := repo.CreateToken(ctx, token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		removed, err := repo.DeleteExpiredTokens(ctx, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if removed != 2 {
			t.Fatalf("expected 2 tokens removed, got %d", removed)
		}

		if _, err := repo.GetTokenBySecret(ctx, domain.TokenPasswordReset, "fresh"); err != nil {
			t.Fatalf("expected the fresh token to survive, got %v", err)
		}
	})
}
