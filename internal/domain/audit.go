package domain

import "time"

// AuditEntry is one append-only action record. ActorID is empty for actions
// taken by the system itself (sweeps).
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	Entity    string
	EntityID  string
	Detail    string
	CreatedAt time.Time
}
