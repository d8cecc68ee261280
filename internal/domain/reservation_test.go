package domain

import (
	"testing"
	"time"
)

func TestReservationLive(t *testing.T) {
	t.Parallel()

	collected := time.Now()
	tests := []struct {
		name string
		res  Reservation
		want bool
	}{
		{"active", Reservation{Status: ReservationStatusActive}, true},
		{"fulfilled awaiting pickup", Reservation{Status: ReservationStatusFulfilled}, true},
		{"fulfilled and collected", Reservation{Status: ReservationStatusFulfilled, CollectedAt: &collected}, false},
		{"cancelled", Reservation{Status: ReservationStatusCancelled}, false},
		{"expired", Reservation{Status: ReservationStatusExpired}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.res.Live(); got != tc.want {
				t.Fatalf("Live() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTokenUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	used := now.Add(-time.Hour)

	tests := []struct {
		name  string
		token Token
		want  bool
	}{
		{"fresh", Token{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Token{ExpiresAt: now.Add(-time.Minute)}, false},
		{"consumed", Token{ExpiresAt: now.Add(time.Hour), ConsumedAt: &used}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.token.Usable(now); got != tc.want {
				t.Fatalf("Usable() = %v, want %v", got, tc.want)
			}
		})
	}
}
