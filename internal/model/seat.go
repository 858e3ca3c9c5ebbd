package model

import "time"

// Seat lifecycle states. The state column carries only "now" facts:
// OCCUPIED while a checked-in session is live, MAINTENANCE/RESERVED for
// staff overrides. Windowed availability is always derived from
// reservations, never from this column.
const (
	SeatAvailable   = "AVAILABLE"
	SeatOccupied    = "OCCUPIED"
	SeatMaintenance = "MAINTENANCE"
	SeatReserved    = "RESERVED"
)

// ValidSeatState reports whether s is one of the known seat states.
func ValidSeatState(s string) bool {
	switch s {
	case SeatAvailable, SeatOccupied, SeatMaintenance, SeatReserved:
		return true
	}
	return false
}

// Seat describes a physical seat in a reading room. Seats belong to the
// library's physical inventory and are never deleted, only deactivated.
//
// Fields:
//  ID           – primary key identifier.
//  RoomID       – room to which this seat belongs.
//  Number       – human label of the seat within the room.
//  HasPower     – whether the seat has a power outlet.
//  HasWindow    – whether the seat is next to a window.
//  IsAccessible – whether the seat is wheelchair accessible.
//  State        – lifecycle state (see constants above).
//  IsActive     – whether the seat is part of the bookable inventory.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Seat struct {
	ID           uint64    // seats.id
	RoomID       uint64    // seats.room_id
	Number       string    // seats.number
	HasPower     bool      // seats.has_power
	HasWindow    bool      // seats.has_window
	IsAccessible bool      // seats.is_accessible
	State        string    // seats.state
	IsActive     bool      // seats.is_active
	CreatedAt    time.Time // seats.created_at
	UpdatedAt    time.Time // seats.updated_at
}
