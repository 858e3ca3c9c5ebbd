package booking

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/queue"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

type capture struct {
	events []queue.NotificationCreatedEvent
}

func (c *capture) publish(_ context.Context, ev queue.NotificationCreatedEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *capture, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sink := &capture{}
	notifier := notify.NewWithPublisher(repository.NewNotificationRepo(db), sink.publish)
	svc := NewService(
		repository.NewUnitOfWork(db),
		repository.NewSeatRepo(db),
		repository.NewReservationRepo(db),
		repository.NewEventLogRepo(db),
		notifier,
		time.UTC,
	)
	return svc, mock, sink, func() { db.Close() }
}

func mustClock(t *testing.T, s string) timeslot.TimeOfDay {
	tod, err := timeslot.ParseClock(s)
	require.NoError(t, err)
	return tod
}

func reservationRow(res model.Reservation) *sqlmock.Rows {
	var checkedIn any
	if res.CheckedInAt != nil {
		checkedIn = *res.CheckedInAt
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "seat_id", "date", "start_time", "end_time",
		"status", "checked_in_at", "created_at", "updated_at",
	}).AddRow(
		res.ID, res.UserID, res.SeatID, res.Date, res.Start.String(), res.End.String(),
		res.Status, checkedIn, time.Now(), time.Now(),
	)
}

func seatRow(s model.Seat) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "room_id", "number", "has_power", "has_window", "is_accessible",
		"state", "is_active", "created_at", "updated_at",
	}).AddRow(
		s.ID, s.RoomID, s.Number, s.HasPower, s.HasWindow, s.IsAccessible,
		s.State, s.IsActive, time.Now(), time.Now(),
	)
}

func confirmedAtTen(t *testing.T) model.Reservation {
	return model.Reservation{
		ID:     42,
		UserID: 7,
		SeatID: 3,
		Date:   "2025-06-01",
		Start:  mustClock(t, "10:00"),
		End:    mustClock(t, "11:00"),
		Status: model.ReservationConfirmed,
	}
}

func TestCheckInSuccessWithinGrace(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	at := time.Date(2025, 6, 1, 9, 50, 0, 0, time.UTC) // start - 10min

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectExec("UPDATE reservations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := svc.CheckIn(context.Background(), res.ID, res.UserID, false, at)

	require.NoError(t, err)
	assert.Equal(t, CheckInOK, result.Status)
	require.NotNil(t, result.CheckedInAt)
	assert.True(t, result.CheckedInAt.Equal(at))
	assert.False(t, result.Cancelled)

	require.Len(t, sink.events, 1)
	assert.Equal(t, model.NotifyCheckIn, sink.events[0].Type)
	assert.Equal(t, res.UserID, sink.events[0].UserID)
	assert.NotEmpty(t, sink.events[0].EventID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTooEarly(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	at := time.Date(2025, 6, 1, 9, 44, 0, 0, time.UTC) // start - 16min

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectCommit()

	result, err := svc.CheckIn(context.Background(), res.ID, res.UserID, false, at)

	require.NoError(t, err)
	assert.Equal(t, CheckInTooEarly, result.Status)
	assert.False(t, result.Cancelled)
	assert.Empty(t, sink.events, "no notification for a refused attempt")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTooLateSelfServiceLeavesBooking(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	at := time.Date(2025, 6, 1, 10, 20, 0, 0, time.UTC) // start + 20min

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectCommit()

	result, err := svc.CheckIn(context.Background(), res.ID, res.UserID, false, at)

	require.NoError(t, err)
	assert.Equal(t, CheckInTooLate, result.Status)
	assert.False(t, result.Cancelled, "self-service path never cancels")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInTooLateScannerCancels(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	at := time.Date(2025, 6, 1, 10, 20, 0, 0, time.UTC) // start + 20min

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectExec("UPDATE reservations").
		WithArgs(model.ReservationCancelled, res.ID, model.ReservationConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := svc.CheckIn(context.Background(), res.ID, res.UserID, true, at)

	require.NoError(t, err)
	assert.Equal(t, CheckInTooLate, result.Status)
	assert.True(t, result.Cancelled, "scanner path forfeits the slot")

	require.Len(t, sink.events, 1)
	assert.Equal(t, model.NotifyCancelled, sink.events[0].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInAlreadyCheckedInReturnsOriginalTimestamp(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	original := time.Date(2025, 6, 1, 9, 55, 0, 0, time.UTC)
	res.Status = model.ReservationCheckedIn
	res.CheckedInAt = &original
	at := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectCommit()

	result, err := svc.CheckIn(context.Background(), res.ID, res.UserID, true, at)

	require.NoError(t, err)
	assert.Equal(t, CheckInAlready, result.Status)
	require.NotNil(t, result.CheckedInAt)
	assert.True(t, result.CheckedInAt.Equal(original), "must carry the original check-in instant")
	assert.Empty(t, sink.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInRejectsForeignReservation(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectRollback()

	_, err := svc.CheckIn(context.Background(), res.ID, res.UserID+1, false, at)

	assert.ErrorIs(t, err, repository.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConflictOnOverlap(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	seat := model.Seat{ID: 3, RoomID: 1, Number: "A3", State: model.SeatAvailable, IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectQuery("SELECT start_time, end_time FROM reservations").
		WithArgs(seat.ID, "2025-06-01").
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}).AddRow("10:00:00", "11:00:00"))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: 7,
		SeatID: seat.ID,
		Date:   "2025-06-01",
		Start:  mustClock(t, "10:30"),
		End:    mustClock(t, "11:30"),
	})

	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBackToBackSucceeds(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	seat := model.Seat{ID: 3, RoomID: 1, Number: "A3", State: model.SeatAvailable, IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectQuery("SELECT start_time, end_time FROM reservations").
		WithArgs(seat.ID, "2025-06-01").
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}).AddRow("10:00:00", "11:00:00"))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(99, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := svc.Create(context.Background(), CreateInput{
		UserID: 7,
		SeatID: seat.ID,
		Date:   "2025-06-01",
		Start:  mustClock(t, "11:00"),
		End:    mustClock(t, "12:00"),
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(99), res.ID)
	assert.Equal(t, model.ReservationConfirmed, res.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefusesSeatUnderMaintenance(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	seat := model.Seat{ID: 3, RoomID: 1, Number: "A3", State: model.SeatMaintenance, IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: 7,
		SeatID: seat.ID,
		Date:   "2025-06-01",
		Start:  mustClock(t, "10:00"),
		End:    mustClock(t, "11:00"),
	})

	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireSkipsAlreadyTransitioned(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	// A concurrent sweep already moved the row; the conditional update
	// affects nothing and this run must not notify again.
	mock.ExpectExec("UPDATE reservations").
		WithArgs(model.ReservationExpired, res.ID, model.ReservationConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := svc.Expire(context.Background(), res.ID)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, sink.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteReleasesOccupiedSeat(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	res := confirmedAtTen(t)
	checkedIn := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	res.Status = model.ReservationCheckedIn
	res.CheckedInAt = &checkedIn
	seat := model.Seat{ID: res.SeatID, RoomID: 1, Number: "A3", State: model.SeatOccupied, IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(reservationRow(res))
	mock.ExpectExec("UPDATE reservations").
		WithArgs(model.ReservationCompleted, res.ID, model.ReservationCheckedIn).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	changed, err := svc.Complete(context.Background(), res.ID)

	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, sink.events, 1)
	assert.Equal(t, model.NotifyCompleted, sink.events[0].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSeatStateRefusedWhileSessionLive(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	seat := model.Seat{ID: 3, RoomID: 1, Number: "A3", State: model.SeatOccupied, IsActive: true}
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := svc.OverrideSeatState(context.Background(), 1, seat.ID, model.SeatMaintenance, "cleaning", now)

	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideSeatStateAudited(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	seat := model.Seat{ID: 3, RoomID: 1, Number: "A3", State: model.SeatAvailable, IsActive: true}
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM seats").WithArgs(seat.ID).WillReturnRows(seatRow(seat))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := svc.OverrideSeatState(context.Background(), 1, seat.ID, model.SeatMaintenance, "broken lamp", now)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
