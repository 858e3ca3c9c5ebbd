package model

import "time"

// Loan states. ACTIVE and RENEWED both hold a copy; RETURNED gives it
// back; EXPIRED marks an overdue loan (the copy is still out).
const (
	LoanActive   = "ACTIVE"
	LoanRenewed  = "RENEWED"
	LoanReturned = "RETURNED"
	LoanExpired  = "EXPIRED"
)

// DefaultMaxRenewals caps how many times a loan can be extended.
const DefaultMaxRenewals = 2

// Loan records a borrowed copy of a book.
//
// Invariant: a book's available-copy counter decrements exactly once
// when the loan is created and increments exactly once on the RETURNED
// transition; the counter never goes negative.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – borrowing user.
//  BookID         – borrowed title.
//  LoanDate       – when the copy left the shelf.
//  DueDate        – when it is due back.
//  ReturnedAt     – when it came back (nil while out).
//  RenewalCount   – how many renewals have been used.
//  MaxRenewals    – renewal ceiling for this loan.
//  Status         – lifecycle state (see constants above).
//  ReminderSentAt – when the due-soon reminder went out (nil before);
//                   the sweep uses this to send at most one reminder.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Loan struct {
	ID             uint64     // loans.id
	UserID         uint64     // loans.user_id
	BookID         uint64     // loans.book_id
	LoanDate       time.Time  // loans.loan_date
	DueDate        time.Time  // loans.due_date
	ReturnedAt     *time.Time // loans.returned_at (nullable)
	RenewalCount   uint32     // loans.renewal_count
	MaxRenewals    uint32     // loans.max_renewals
	Status         string     // loans.status
	ReminderSentAt *time.Time // loans.reminder_sent_at (nullable)
	CreatedAt      time.Time  // loans.created_at
	UpdatedAt      time.Time  // loans.updated_at
}

// Out reports whether the loan still holds a copy.
func (l *Loan) Out() bool {
	return l.Status == LoanActive || l.Status == LoanRenewed || l.Status == LoanExpired
}
