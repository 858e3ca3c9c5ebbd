package model

import "time"

// Notification types produced by lifecycle transitions.
const (
	NotifyCheckIn      = "RESERVATION_CHECKED_IN"
	NotifyNoShow       = "RESERVATION_EXPIRED"
	NotifyCancelled    = "RESERVATION_CANCELLED"
	NotifyCompleted    = "RESERVATION_COMPLETED"
	NotifyLoanDueSoon  = "LOAN_DUE_SOON"
	NotifyLoanOverdue  = "LOAN_OVERDUE"
	NotifyLoanReturned = "LOAN_RETURNED"
)

// Notification is a message addressed to one user, produced as a side
// effect of lifecycle transitions. Its lifecycle (read/unread) is
// independent of the reservation or loan that produced it.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – addressee.
//  Type      – notification type tag (see constants above).
//  Title     – short headline.
//  Message   – body text.
//  ActionURL – optional link the client may render (nullable).
//  IsRead    – whether the user has seen it.
//  CreatedAt – creation timestamp.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id
	Type      string    // notifications.type
	Title     string    // notifications.title
	Message   string    // notifications.message
	ActionURL *string   // notifications.action_url (nullable)
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}
