// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers such
// as handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by someone
// else, while ErrSeatUnavailable signals that a booking cannot proceed
// because an overlapping reservation already holds the window.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as cancelling a reservation that has already
// reached a terminal state. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSeatUnavailable is returned by the booking-creation guard when the
// requested window overlaps an existing CONFIRMED or CHECKED_IN
// reservation for the same seat and date, or the seat itself is not
// bookable. Maps to HTTP 409.
var ErrSeatUnavailable = errors.New("seat unavailable for the requested window")

// ErrNoCopies is returned when a loan is requested for a book whose
// available-copy counter is already zero. Maps to HTTP 409.
var ErrNoCopies = errors.New("no copies available")

// ErrRoomNotFound is returned when a room lookup yields no rows.
var ErrRoomNotFound = errors.New("room not found")

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrBookNotFound is returned when a book lookup yields no rows.
var ErrBookNotFound = errors.New("book not found")

// ErrReservationNotFound is returned when a reservation lookup yields
// no rows.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrLoanNotFound is returned when a loan lookup yields no rows.
var ErrLoanNotFound = errors.New("loan not found")
