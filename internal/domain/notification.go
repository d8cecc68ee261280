package domain

import "time"

type NotificationType string

const (
	NotificationOverdue      NotificationType = "overdue_notice"
	NotificationAvailability NotificationType = "availability_notice"
	NotificationFine         NotificationType = "fine_notice"
	NotificationAccount      NotificationType = "account_notice"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusRead    NotificationStatus = "read"
)

// Notification is a message queued for a user. Pending and failed rows are
// picked up by the dispatch sweep; read is only reachable from sent.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Subject   string
	Body      string
	Status    NotificationStatus
	Attempts  int
	CreatedAt time.Time
	SentAt    *time.Time
}
