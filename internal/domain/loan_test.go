package domain

import (
	"testing"
	"time"
)

func TestOverdueDays(t *testing.T) {
	t.Parallel()

	due := time.Date(2025, 1, 1, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"before due date", due.Add(-48 * time.Hour), 0},
		{"on due date", due, 0},
		{"same day later hour", time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC), 0},
		{"next morning", time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC), 1},
		{"four days late", time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC), 4},
		{"four days late at night", time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC), 4},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := OverdueDays(due, tc.at); got != tc.want {
				t.Fatalf("OverdueDays(%v, %v) = %d, want %d", due, tc.at, got, tc.want)
			}
		})
	}
}

func TestOverdueDaysCrossesTimezones(t *testing.T) {
	t.Parallel()

	// Both instants fall on the same UTC date even though local dates differ.
	loc := time.FixedZone("UTC+7", 7*60*60)
	due := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 11, 5, 0, 0, 0, loc)

	if got := OverdueDays(due, at); got != 0 {
		t.Fatalf("OverdueDays across zones = %d, want 0", got)
	}
}

func TestLoanOpen(t *testing.T) {
	t.Parallel()

	returned := time.Now()
	tests := []struct {
		name string
		loan Loan
		want bool
	}{
		{"active", Loan{Status: LoanStatusActive}, true},
		{"overdue", Loan{Status: LoanStatusOverdue}, true},
		{"returned", Loan{Status: LoanStatusReturned, ReturnedAt: &returned}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.loan.Open(); got != tc.want {
				t.Fatalf("Open() = %v, want %v", got, tc.want)
			}
		})
	}
}
