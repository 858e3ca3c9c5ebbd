package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mariocelzo/biblioflow/internal/model"
)

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, room_id, number, has_power, has_window, is_accessible,
	               state, is_active, created_at, updated_at`

func scanSeat(row interface{ Scan(...any) error }) (model.Seat, error) {
	var s model.Seat
	err := row.Scan(
		&s.ID, &s.RoomID, &s.Number, &s.HasPower, &s.HasWindow, &s.IsAccessible,
		&s.State, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// Create inserts a single seat record. On success the seat's ID is populated.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (room_id, number, has_power, has_window, is_accessible)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.RoomID, s.Number, s.HasPower, s.HasWindow, s.IsAccessible)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CreateBulk inserts multiple seats in a single statement.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (room_id, number, has_power, has_window, is_accessible) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, seat := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, seat.RoomID, seat.Number, seat.HasPower, seat.HasWindow, seat.IsAccessible)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ?`
	s, err := scanSeat(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByIDTx retrieves a seat inside a transaction with a row lock, so
// concurrent lifecycle transitions on the same seat serialize.
func (r *SeatRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ? FOR UPDATE`
	s, err := scanSeat(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SeatFilter narrows List results. Nil pointer fields are ignored, so
// untyped filter keys can never silently do nothing: every supported
// criterion is an explicit struct field translated to SQL in one place.
type SeatFilter struct {
	RoomID       *uint64
	State        *string
	HasPower     *bool
	HasWindow    *bool
	IsAccessible *bool
	ActiveOnly   bool
}

// List returns seats matching the filter, ordered by room then number.
func (r *SeatRepo) List(ctx context.Context, f SeatFilter) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats`
	var (
		conds []string
		args  []interface{}
	)
	if f.RoomID != nil {
		conds = append(conds, "room_id = ?")
		args = append(args, *f.RoomID)
	}
	if f.State != nil {
		conds = append(conds, "state = ?")
		args = append(args, *f.State)
	}
	if f.HasPower != nil {
		conds = append(conds, "has_power = ?")
		args = append(args, *f.HasPower)
	}
	if f.HasWindow != nil {
		conds = append(conds, "has_window = ?")
		args = append(args, *f.HasWindow)
	}
	if f.IsAccessible != nil {
		conds = append(conds, "is_accessible = ?")
		args = append(args, *f.IsAccessible)
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY room_id, number"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountActive returns the number of seats in the bookable inventory.
func (r *SeatRepo) CountActive(ctx context.Context) (uint32, error) {
	var n uint32
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE is_active = 1`).Scan(&n)
	return n, err
}

// CountFreeOnDate returns how many active seats can still take a
// booking on the given date: not held by staff (MAINTENANCE/RESERVED)
// and without any open reservation that day. A seat that is OCCUPIED
// right now always has an open reservation, so the NOT EXISTS clause
// covers it without counting it twice.
func (r *SeatRepo) CountFreeOnDate(ctx context.Context, date string) (uint32, error) {
	const q = `SELECT COUNT(*)
	           FROM seats s
	           WHERE s.is_active = 1
	             AND s.state NOT IN ('MAINTENANCE','RESERVED')
	             AND NOT EXISTS (
	                   SELECT 1 FROM reservations r
	                   WHERE r.seat_id = s.id
	                     AND r.date = ?
	                     AND r.status IN ('CONFIRMED','CHECKED_IN'))`
	var n uint32
	err := r.db.QueryRowContext(ctx, q, date).Scan(&n)
	return n, err
}

// UpdateStateTx sets a seat's lifecycle state within a transaction. The
// state-machine operations are the only callers; nothing else mutates
// seat state.
func (r *SeatRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, id uint64, state string) error {
	// No rows-affected check: MySQL reports zero affected rows for a
	// same-value update, and callers have already locked the row.
	const q = `UPDATE seats SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, state, id)
	return err
}

// SetActive flips a seat's inventory flag. Seats are never deleted.
func (r *SeatRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	const q = `UPDATE seats SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeatNotFound
	}
	return nil
}
