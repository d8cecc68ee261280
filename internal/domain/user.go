package domain

import "time"

type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
)

// User is a library account; Role distinguishes members from librarians.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
}
