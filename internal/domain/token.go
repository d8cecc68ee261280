package domain

import "time"

type TokenPurpose string

const (
	TokenPasswordReset     TokenPurpose = "password_reset"
	TokenEmailVerification TokenPurpose = "email_verification"
)

// Token is an expiring single-use secret handed to a user out of band.
type Token struct {
	ID         string
	UserID     string
	Purpose    TokenPurpose
	Token      string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Usable reports whether the token can still be consumed at the given time.
func (t Token) Usable(now time.Time) bool {
	return t.ConsumedAt == nil && t.ExpiresAt.After(now)
}
