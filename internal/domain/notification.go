package domain

import "time"

// Notification types inserted by this service.
const (
	NotificationSystemAlert = "system_alert"
)

// Notification is an administrator-facing alert row. This service only
// inserts them; the back office UI reads and dismisses them.
type Notification struct {
	ID           string
	CompanyID    int64
	Type         string
	Title        string
	Message      string
	ConnectionID int64
	CreatedAt    time.Time
}
