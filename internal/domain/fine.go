package domain

import "time"

type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusPaid    FineStatus = "paid"
	FineStatusWaived  FineStatus = "waived"
)

// Fine is a monetary penalty against a member, optionally tied to a loan.
// Amounts are integer cents.
type Fine struct {
	ID          string
	MemberID    string
	LoanID      *string
	AmountCents int
	Status      FineStatus
	IssuedAt    time.Time
	SettledAt   *time.Time
}

// FineAmount computes the flat-rate overdue fine in cents: days times the
// per-day rate, capped when capCents > 0.
func FineAmount(overdueDays, rateCents, capCents int) int {
	if overdueDays <= 0 || rateCents <= 0 {
		return 0
	}
	amount := overdueDays * rateCents
	if capCents > 0 && amount > capCents {
		return capCents
	}
	return amount
}
