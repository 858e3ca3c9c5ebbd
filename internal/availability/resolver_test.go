package availability

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

func seat(id uint64, state string, active bool) model.Seat {
	return model.Seat{ID: id, RoomID: 1, Number: "A1", State: state, IsActive: active}
}

func reservation(seatID uint64, start, end timeslot.TimeOfDay) model.Reservation {
	return model.Reservation{
		SeatID: seatID,
		Date:   "2025-06-01",
		Start:  start,
		End:    end,
		Status: model.ReservationConfirmed,
	}
}

func TestAnnotateWithoutWindow(t *testing.T) {
	seats := []model.Seat{
		seat(1, model.SeatAvailable, true),
		seat(2, model.SeatMaintenance, true),
		seat(3, model.SeatOccupied, true),
		seat(4, model.SeatAvailable, false),
	}

	annotated := Annotate(seats, nil, nil)

	assert.Len(t, annotated, 4)
	assert.True(t, annotated[0].Available, "active AVAILABLE seat")
	assert.False(t, annotated[1].Available, "maintenance seat")
	assert.False(t, annotated[2].Available, "occupied seat")
	assert.False(t, annotated[3].Available, "deactivated seat")
}

func TestAnnotateWithWindow(t *testing.T) {
	ten, _ := timeslot.ParseClock("10:00")
	eleven, _ := timeslot.ParseClock("11:00")
	noon, _ := timeslot.ParseClock("12:00")
	halfTen, _ := timeslot.ParseClock("10:30")
	halfEleven, _ := timeslot.ParseClock("11:30")

	seats := []model.Seat{
		seat(1, model.SeatAvailable, true),
		seat(2, model.SeatAvailable, true),
	}
	// Seat 1 is booked 10:00-11:00; seat 2 is free all day.
	open := []model.Reservation{reservation(1, ten, eleven)}

	cases := []struct {
		name      string
		win       timeslot.Window
		seat1Free bool
	}{
		{"overlapping window", timeslot.Window{Start: halfTen, End: halfEleven}, false},
		{"contained window", timeslot.Window{Start: ten, End: halfTen}, false},
		{"back-to-back window", timeslot.Window{Start: eleven, End: noon}, true},
		{"disjoint window", timeslot.Window{Start: halfEleven, End: noon}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			annotated := Annotate(seats, open, &tc.win)
			assert.Equal(t, tc.seat1Free, annotated[0].Available, "seat 1")
			assert.True(t, annotated[1].Available, "seat 2 has no reservations")
		})
	}
}

func TestAnnotateWindowIgnoresSeatWithOtherSeatsBooking(t *testing.T) {
	ten, _ := timeslot.ParseClock("10:00")
	eleven, _ := timeslot.ParseClock("11:00")
	win := timeslot.Window{Start: ten, End: eleven}

	seats := []model.Seat{seat(7, model.SeatAvailable, true)}
	open := []model.Reservation{reservation(99, ten, eleven)}

	annotated := Annotate(seats, open, &win)
	assert.True(t, annotated[0].Available, "another seat's booking must not block seat 7")
}

func TestAnnotateWindowStillRequiresAvailableState(t *testing.T) {
	ten, _ := timeslot.ParseClock("10:00")
	eleven, _ := timeslot.ParseClock("11:00")
	win := timeslot.Window{Start: ten, End: eleven}

	seats := []model.Seat{seat(1, model.SeatReserved, true)}

	annotated := Annotate(seats, nil, &win)
	assert.False(t, annotated[0].Available, "staff hold blocks even a conflict-free window")
}

func TestDaysExcludesStaffHeldSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewResolver(repository.NewSeatRepo(db), repository.NewReservationRepo(db))

	// Inventory of two active seats, one under MAINTENANCE. No
	// reservations anywhere, so only the hold keeps a seat out.
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("2025-06-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	days, err := r.Days(context.Background(), "2025-06-01", "2025-06-01")

	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, uint32(1), days[0].SeatsAvailable, "held seat must not count as available")
	assert.Equal(t, uint32(2), days[0].SeatsTotal, "total stays the full active inventory")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDaysRejectsBadRanges(t *testing.T) {
	r := NewResolver(nil, nil)
	ctx := context.Background()

	for _, tc := range []struct{ start, end string }{
		{"2025-06-02", "2025-06-01"}, // inverted
		{"2025-06-01", "2025-08-01"}, // too wide
		{"junk", "2025-06-01"},
		{"2025-06-01", "junk"},
	} {
		_, err := r.Days(ctx, tc.start, tc.end)
		assert.ErrorIs(t, err, ErrBadRange, "%s..%s", tc.start, tc.end)
	}
}
