package model

import (
	"time"

	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// Room represents a reading room in the library. A room owns a set of
// seats (1:N) and defines the opening hours within which seat windows
// may be booked. This struct corresponds to a row in the `rooms` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – unique room name (e.g. "Sala Studio 2").
//  Floor     – floor the room is on.
//  Capacity  – number of seats the room can hold.
//  IsQuiet   – whether the room is a silent-study room.
//  IsGroup   – whether the room allows group work.
//  OpensAt   – wall-clock opening time, minutes since midnight.
//  ClosesAt  – wall-clock closing time, minutes since midnight.
//  IsActive  – whether the room is bookable.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Room struct {
	ID        uint64             // rooms.id
	Name      string             // rooms.name
	Floor     int32              // rooms.floor
	Capacity  uint32             // rooms.capacity
	IsQuiet   bool               // rooms.is_quiet
	IsGroup   bool               // rooms.is_group
	OpensAt   timeslot.TimeOfDay // rooms.opens_at (TIME column)
	ClosesAt  timeslot.TimeOfDay // rooms.closes_at (TIME column)
	IsActive  bool               // rooms.is_active
	CreatedAt time.Time          // rooms.created_at
	UpdatedAt time.Time          // rooms.updated_at
}
