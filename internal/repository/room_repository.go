package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// RoomRepo provides data access to the rooms table.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// scanRoom reads one rooms row. Opening hours live in TIME columns and
// scan as "HH:MM:SS" strings; they are converted to TimeOfDay here, at
// the storage boundary, so no date artifact survives into the domain.
func scanRoom(row interface{ Scan(...any) error }) (model.Room, error) {
	var (
		rm               model.Room
		opensAt, closesAt string
	)
	err := row.Scan(
		&rm.ID, &rm.Name, &rm.Floor, &rm.Capacity, &rm.IsQuiet, &rm.IsGroup,
		&opensAt, &closesAt, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		return model.Room{}, err
	}
	if rm.OpensAt, err = timeslot.ParseClock(opensAt); err != nil {
		return model.Room{}, err
	}
	if rm.ClosesAt, err = timeslot.ParseClock(closesAt); err != nil {
		return model.Room{}, err
	}
	return rm, nil
}

const roomColumns = `id, name, floor, capacity, is_quiet, is_group,
	               opens_at, closes_at, is_active, created_at, updated_at`

// Create inserts a room record. On success the room's ID is populated.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	const q = `INSERT INTO rooms (name, floor, capacity, is_quiet, is_group, opens_at, closes_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		rm.Name, rm.Floor, rm.Capacity, rm.IsQuiet, rm.IsGroup,
		rm.OpensAt.String(), rm.ClosesAt.String())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	return nil
}

// GetByID retrieves a room by its id.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	rm, err := scanRoom(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// List returns all rooms ordered by floor then name. Set activeOnly to
// exclude deactivated rooms.
func (r *RoomRepo) List(ctx context.Context, activeOnly bool) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY floor, name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update changes a room's attributes and opening hours.
func (r *RoomRepo) Update(ctx context.Context, rm *model.Room) error {
	const q = `UPDATE rooms
	           SET name = ?, floor = ?, capacity = ?, is_quiet = ?, is_group = ?,
	               opens_at = ?, closes_at = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		rm.Name, rm.Floor, rm.Capacity, rm.IsQuiet, rm.IsGroup,
		rm.OpensAt.String(), rm.ClosesAt.String(), rm.IsActive, rm.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}
