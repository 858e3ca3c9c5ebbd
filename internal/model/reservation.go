package model

import (
	"time"

	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// Reservation states. CONFIRMED is the initial state; COMPLETED,
// CANCELLED and EXPIRED are terminal. A reservation that was checked in
// can never become EXPIRED (no-show applies only before check-in).
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCheckedIn = "CHECKED_IN"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
	ReservationExpired   = "EXPIRED"
)

// GracePeriod is the tolerance around a reservation's start time within
// which check-in is accepted, and after which an unclaimed reservation
// is released as a no-show.
const GracePeriod = 15 * time.Minute

// Reservation records a user's booking of one seat for a time window on
// a calendar date. Rows are never physically deleted; terminal states
// keep them around for audit and statistics.
//
// Invariant: for a given seat and date, no two reservations in states
// CONFIRMED or CHECKED_IN may have overlapping [start,end) windows.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user who booked the seat.
//  SeatID      – seat being booked.
//  Date        – calendar date of the window ("2006-01-02").
//  Start       – window start, minutes since midnight.
//  End         – window end (exclusive), minutes since midnight.
//  Status      – lifecycle state (see constants above).
//  CheckedInAt – when the user checked in (nil before check-in).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          uint64             // reservations.id
	UserID      uint64             // reservations.user_id
	SeatID      uint64             // reservations.seat_id
	Date        string             // reservations.date (DATE column)
	Start       timeslot.TimeOfDay // reservations.start_time (TIME column)
	End         timeslot.TimeOfDay // reservations.end_time (TIME column)
	Status      string             // reservations.status
	CheckedInAt *time.Time         // reservations.checked_in_at (nullable)
	CreatedAt   time.Time          // reservations.created_at
	UpdatedAt   time.Time          // reservations.updated_at
}

// Window returns the reservation's half-open time window.
func (r *Reservation) Window() timeslot.Window {
	return timeslot.Window{Start: r.Start, End: r.End}
}

// StartAt combines the reservation date and start time into an instant
// in the given location. Used for grace-window arithmetic.
func (r *Reservation) StartAt(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", r.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(r.Start) * time.Minute), nil
}

// EndAt combines the reservation date and end time into an instant.
func (r *Reservation) EndAt(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", r.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(r.End) * time.Minute), nil
}
