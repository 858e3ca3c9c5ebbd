package model

import "time"

// Event type tags written by the lifecycle paths. Free-form detail text
// travels alongside; the type tag is what audit queries filter on.
const (
	EventReservationCreated  = "RESERVATION_CREATED"
	EventReservationCheckIn  = "RESERVATION_CHECK_IN"
	EventReservationCancel   = "RESERVATION_CANCELLED"
	EventReservationExpired  = "RESERVATION_EXPIRED"
	EventReservationComplete = "RESERVATION_COMPLETED"
	EventSeatOverride        = "SEAT_OVERRIDE"
	EventLoanCreated         = "LOAN_CREATED"
	EventLoanRenewed         = "LOAN_RENEWED"
	EventLoanReturned        = "LOAN_RETURNED"
	EventLoanExpired         = "LOAN_EXPIRED"
)

// EventLog is an append-only audit entry. The core only ever inserts
// rows; nothing mutates or deletes them.
//
// Fields:
//  ID            – primary key identifier.
//  ActorID       – user who performed the action (0 for the automation
//                  sweep, which acts as the system).
//  TargetUserID  – user the action was performed for, when different
//                  from the actor (nullable).
//  ReservationID – reservation involved, when any (nullable).
//  Type          – event type tag (see constants above).
//  Detail        – free-form description of what happened.
//  CreatedAt     – append timestamp.
type EventLog struct {
	ID            uint64    // event_logs.id
	ActorID       uint64    // event_logs.actor_id
	TargetUserID  *uint64   // event_logs.target_user_id (nullable)
	ReservationID *uint64   // event_logs.reservation_id (nullable)
	Type          string    // event_logs.type
	Detail        string    // event_logs.detail
	CreatedAt     time.Time // event_logs.created_at
}
