package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation queues a member for a book. CopyID is set when the reservation
// is fulfilled; PickupBy is the deadline to collect the assigned copy;
// CollectedAt is set when the member checks the copy out.
type Reservation struct {
	ID          string
	BookID      string
	MemberID    string
	CopyID      *string
	Status      ReservationStatus
	ReservedAt  time.Time
	PickupBy    *time.Time
	CollectedAt *time.Time
}

// Live reports whether the reservation counts against the member's
// reservation limit: active, or fulfilled but not yet collected.
func (r Reservation) Live() bool {
	switch r.Status {
	case ReservationStatusActive:
		return true
	case ReservationStatusFulfilled:
		return r.CollectedAt == nil
	default:
		return false
	}
}
