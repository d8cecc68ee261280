package domain

import "time"

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan ties a member to a copy for a date range.
type Loan struct {
	ID         string
	CopyID     string
	MemberID   string
	LoanedAt   time.Time
	DueAt      time.Time
	ReturnedAt *time.Time
	Renewals   int
	Status     LoanStatus
}

// Open reports whether the loan still holds the copy.
func (l Loan) Open() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusOverdue
}

// OverdueDays returns calendar days past the due date at the given instant,
// comparing UTC dates so the time of day does not matter. Zero when on time.
func OverdueDays(dueAt, at time.Time) int {
	due := dateOf(dueAt)
	now := dateOf(at)
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due) / (24 * time.Hour))
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
