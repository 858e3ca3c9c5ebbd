package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// ReservationRepo provides CRUD operations for seat reservations.
// Start/end times are stored in TIME columns and converted to
// timeslot.TimeOfDay the moment they are scanned; any date component
// the driver attaches to a time-of-day value is a storage artifact and
// is discarded here, never compared.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, seat_id, date, start_time, end_time,
	               status, checked_in_at, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		res              model.Reservation
		dateStr          string
		startStr, endStr string
		checkedIn        sql.NullTime
	)
	err := row.Scan(
		&res.ID, &res.UserID, &res.SeatID, &dateStr, &startStr, &endStr,
		&res.Status, &checkedIn, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	// DATE columns scan as "2006-01-02" or "2006-01-02T00:00:00Z"
	// depending on driver options; keep only the calendar date.
	res.Date = dateStr
	if len(dateStr) > 10 {
		res.Date = dateStr[:10]
	}
	if res.Start, err = timeslot.ParseClock(startStr); err != nil {
		return model.Reservation{}, err
	}
	if res.End, err = timeslot.ParseClock(endStr); err != nil {
		return model.Reservation{}, err
	}
	if checkedIn.Valid {
		t := checkedIn.Time
		res.CheckedInAt = &t
	}
	return res, nil
}

// CreateTx inserts a new CONFIRMED reservation after re-checking the
// no-overlap invariant inside the caller's transaction. The open
// reservations for the seat and date are read FOR UPDATE so that two
// concurrent bookings of the same window serialize on the storage
// layer; exactly one of them observes the other's committed row and
// fails with ErrSeatUnavailable. This is the authoritative guard: the
// availability resolver's answer is advisory by the time a write
// happens.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const lockQ = `SELECT start_time, end_time FROM reservations
	               WHERE seat_id = ? AND date = ? AND status IN ('CONFIRMED','CHECKED_IN')
	               FOR UPDATE`
	rows, err := tx.QueryContext(ctx, lockQ, res.SeatID, res.Date)
	if err != nil {
		return err
	}
	var windows []timeslot.Window
	for rows.Next() {
		var startStr, endStr string
		if scanErr := rows.Scan(&startStr, &endStr); scanErr != nil {
			rows.Close()
			return scanErr
		}
		start, perr := timeslot.ParseClock(startStr)
		if perr != nil {
			rows.Close()
			return perr
		}
		end, perr := timeslot.ParseClock(endStr)
		if perr != nil {
			rows.Close()
			return perr
		}
		windows = append(windows, timeslot.Window{Start: start, End: end})
	}
	if err = rows.Close(); err != nil {
		return err
	}
	for _, w := range windows {
		if timeslot.WindowsOverlap(w, res.Window()) {
			return ErrSeatUnavailable
		}
	}

	const insQ = `INSERT INTO reservations (user_id, seat_id, date, start_time, end_time, status)
	              VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, insQ,
		res.UserID, res.SeatID, res.Date, res.Start.String(), res.End.String(), model.ReservationConfirmed)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Status = model.ReservationConfirmed
	return nil
}

// GetByID retrieves a reservation by its id.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// GetByIDTx retrieves a reservation inside a transaction with a row
// lock so state transitions on the same reservation serialize.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ListForSeatsOnDate returns the reservations for the given seats on a
// date whose status is in the given set. Used by the availability
// resolver; a plain read, no locks.
func (r *ReservationRepo) ListForSeatsOnDate(ctx context.Context, seatIDs []uint64, date string, statuses []string) ([]model.Reservation, error) {
	if len(seatIDs) == 0 || len(statuses) == 0 {
		return nil, nil
	}
	seatPh := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+len(statuses)+1)
	for i, id := range seatIDs {
		seatPh[i] = "?"
		args = append(args, id)
	}
	args = append(args, date)
	statusPh := make([]string, len(statuses))
	for i, s := range statuses {
		statusPh[i] = "?"
		args = append(args, s)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE seat_id IN (` + strings.Join(seatPh, ",") + `)
	        AND date = ?
	        AND status IN (` + strings.Join(statusPh, ",") + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByUser returns a user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE user_id = ?
	           ORDER BY date DESC, start_time DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatusIfTx transitions a reservation from one status to another
// within a transaction. The WHERE clause re-checks the pre-transition
// status at mutation time, so a record already moved by a concurrent
// caller is left alone; the returned flag reports whether this call
// performed the transition.
func (r *ReservationRepo) UpdateStatusIfTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetCheckedInTx marks a CONFIRMED reservation as checked in, recording
// the check-in instant. Same conditional shape as UpdateStatusIfTx.
func (r *ReservationRepo) SetCheckedInTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE reservations SET status = ?, checked_in_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.ReservationCheckedIn, at.UTC(), id, model.ReservationConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListNoShows returns CONFIRMED reservations whose check-in grace
// deadline (start + grace) has passed as of now. The sweep re-checks
// the status again at mutation time; this listing is only candidate
// discovery.
func (r *ReservationRepo) ListNoShows(ctx context.Context, now time.Time, grace time.Duration) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'CONFIRMED'
	             AND TIMESTAMP(date, start_time) < ?`
	return r.listByDeadline(ctx, q, now.UTC().Add(-grace))
}

// ListFinished returns CHECKED_IN reservations whose end time has
// passed as of now.
func (r *ReservationRepo) ListFinished(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'CHECKED_IN'
	             AND TIMESTAMP(date, end_time) <= ?`
	return r.listByDeadline(ctx, q, now.UTC())
}

func (r *ReservationRepo) listByDeadline(ctx context.Context, q string, deadline time.Time) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, deadline.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// HasLiveSessionForSeat reports whether the seat currently hosts a
// checked-in session whose window covers now. The staff override guard
// uses this to refuse forcing a seat out from under a live session.
func (r *ReservationRepo) HasLiveSessionForSeat(ctx context.Context, tx *sql.Tx, seatID uint64, now time.Time) (bool, error) {
	const q = `SELECT COUNT(*) FROM reservations
	           WHERE seat_id = ? AND status = 'CHECKED_IN'
	             AND date = ? AND start_time <= ? AND end_time > ?`
	clock := timeslot.FromTime(now.UTC()).String()
	var n int
	err := tx.QueryRowContext(ctx, q, seatID, now.UTC().Format("2006-01-02"), clock, clock).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
