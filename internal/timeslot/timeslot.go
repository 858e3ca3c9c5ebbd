// Package timeslot defines the minute-granularity time values used by
// seat reservations and the single overlap predicate shared by the
// availability and booking paths. Reservation windows are half-open
// intervals [start, end) on one calendar day.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// The storage layer keeps times in TIME/DATETIME columns whose date
// component is an encoding artifact; converting to TimeOfDay at the
// repository boundary discards it so that two reservations on the same
// date can never miscompare because of it.
type TimeOfDay int

// MinutesPerDay bounds valid TimeOfDay values; 24:00 is allowed as an
// exclusive end (a window closing at midnight).
const MinutesPerDay = 24 * 60

// ErrInvalidClock is returned when a clock string cannot be parsed or
// falls outside a single day.
var ErrInvalidClock = errors.New("invalid clock value")

// ParseClock converts "HH:MM" (or "HH:MM:SS", seconds discarded) into a
// TimeOfDay. MySQL TIME columns scan as "15:04:05" strings, so this is
// the conversion point for values read from storage.
func ParseClock(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || m < 0 || m > 59 || h*60+m > MinutesPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return TimeOfDay(h*60 + m), nil
}

// FromTime extracts the wall-clock minutes from t, discarding the date.
// Used when a DATETIME column carries an incidental calendar date.
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// String renders the value as "HH:MM" for JSON responses and SQL TIME
// parameters.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether the value lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t <= MinutesPerDay }

// Window is a half-open interval [Start, End) on one calendar day.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Valid reports whether the window is well-formed and non-empty.
func (w Window) Valid() bool {
	return w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

// Overlaps reports whether two half-open windows on the same date
// conflict. This predicate is the sole source of truth for conflicts:
// both the availability resolver and the booking-creation guard call
// it, never ad hoc comparisons. Zero-length windows never overlap with
// anything; back-to-back windows (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	if aStart >= aEnd || bStart >= bEnd {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// WindowsOverlap is Overlaps lifted to Window values.
func WindowsOverlap(a, b Window) bool {
	return Overlaps(a.Start, a.End, b.Start, b.End)
}
