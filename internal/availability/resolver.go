// Package availability computes seat availability from persisted
// reservations. Reservations are the authoritative source for windowed
// queries; the seat state column only contributes "now" facts
// (maintenance, staff holds). The annotation core is pure so it can be
// tested without a database.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// ErrBadRange is returned when a summary range is inverted or too wide.
var ErrBadRange = errors.New("availability: invalid date range")

// MaxSummaryDays bounds one day-summary query.
const MaxSummaryDays = 31

// openStatuses are the reservation states that occupy a seat's window.
var openStatuses = []string{model.ReservationConfirmed, model.ReservationCheckedIn}

// AnnotatedSeat is a seat with its computed availability for a query.
type AnnotatedSeat struct {
	model.Seat
	Available bool
}

// DaySummary gives the availability headline for one calendar day.
type DaySummary struct {
	Date           string
	SeatsAvailable uint32
	SeatsTotal     uint32
}

// Annotate computes per-seat availability. Without a window a seat is
// available iff it is active and its state is AVAILABLE. With a window
// the seat must additionally have no reservation in reservations whose
// window overlaps it. Callers pass only open-status reservations for
// the seats on the queried date; Annotate does not filter by date.
func Annotate(seats []model.Seat, reservations []model.Reservation, win *timeslot.Window) []AnnotatedSeat {
	bySeat := make(map[uint64][]model.Reservation, len(seats))
	if win != nil {
		for _, res := range reservations {
			bySeat[res.SeatID] = append(bySeat[res.SeatID], res)
		}
	}

	annotated := make([]AnnotatedSeat, 0, len(seats))
	for _, s := range seats {
		free := s.IsActive && s.State == model.SeatAvailable
		if free && win != nil {
			for _, res := range bySeat[s.ID] {
				if timeslot.WindowsOverlap(*win, res.Window()) {
					free = false
					break
				}
			}
		}
		annotated = append(annotated, AnnotatedSeat{Seat: s, Available: free})
	}
	return annotated
}

// Resolver answers availability queries against the repositories.
type Resolver struct {
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
}

// NewResolver constructs a Resolver.
func NewResolver(seats *repository.SeatRepo, reservations *repository.ReservationRepo) *Resolver {
	return &Resolver{seats: seats, reservations: reservations}
}

// Seats lists seats matching the filter, annotated for the given date
// and optional window. This is a pure read path; booking creation does
// its own overlap re-check inside a transaction.
func (r *Resolver) Seats(ctx context.Context, f repository.SeatFilter, date string, win *timeslot.Window) ([]AnnotatedSeat, error) {
	seats, err := r.seats.List(ctx, f)
	if err != nil {
		return nil, err
	}
	var open []model.Reservation
	if win != nil && len(seats) > 0 {
		ids := make([]uint64, 0, len(seats))
		for _, s := range seats {
			ids = append(ids, s.ID)
		}
		open, err = r.reservations.ListForSeatsOnDate(ctx, ids, date, openStatuses)
		if err != nil {
			return nil, err
		}
	}
	return Annotate(seats, open, win), nil
}

// Days returns one summary per day in [startDate, endDate]. A seat
// counts as available for a day when it is active, not under a staff
// hold (MAINTENANCE/RESERVED), and has no open reservation anywhere on
// that day. SeatsTotal is the full active inventory.
func (r *Resolver) Days(ctx context.Context, startDate, endDate string) ([]DaySummary, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, ErrBadRange
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, ErrBadRange
	}
	if end.Before(start) || end.Sub(start) > MaxSummaryDays*24*time.Hour {
		return nil, ErrBadRange
	}

	total, err := r.seats.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	var out []DaySummary
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		free, err := r.seats.CountFreeOnDate(ctx, date)
		if err != nil {
			return nil, err
		}
		if free > total {
			free = total
		}
		out = append(out, DaySummary{Date: date, SeatsAvailable: free, SeatsTotal: total})
	}
	return out, nil
}
