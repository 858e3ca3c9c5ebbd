package repository

import (
	"context"
	"database/sql"

	"github.com/mariocelzo/biblioflow/internal/model"
)

// EventLogRepo provides data access to the append-only event_logs
// table. There are intentionally no update or delete methods.
type EventLogRepo struct {
	db *sql.DB
}

// NewEventLogRepo constructs an EventLogRepo with the given DB handle.
func NewEventLogRepo(db *sql.DB) *EventLogRepo { return &EventLogRepo{db: db} }

const eventLogColumns = `id, actor_id, target_user_id, reservation_id, type, detail, created_at`

func scanEventLog(row interface{ Scan(...any) error }) (model.EventLog, error) {
	var (
		e             model.EventLog
		targetUserID  sql.NullInt64
		reservationID sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.ActorID, &targetUserID, &reservationID, &e.Type, &e.Detail, &e.CreatedAt)
	if err != nil {
		return model.EventLog{}, err
	}
	if targetUserID.Valid {
		v := uint64(targetUserID.Int64)
		e.TargetUserID = &v
	}
	if reservationID.Valid {
		v := uint64(reservationID.Int64)
		e.ReservationID = &v
	}
	return e, nil
}

// AppendTx inserts an audit entry within the caller's transaction so the
// entry commits or rolls back with the action it records.
func (r *EventLogRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.EventLog) error {
	const q = `INSERT INTO event_logs (actor_id, target_user_id, reservation_id, type, detail)
	           VALUES (?, ?, ?, ?, ?)`
	var targetUserID, reservationID any
	if e.TargetUserID != nil {
		targetUserID = *e.TargetUserID
	}
	if e.ReservationID != nil {
		reservationID = *e.ReservationID
	}
	res, err := tx.ExecContext(ctx, q, e.ActorID, targetUserID, reservationID, e.Type, e.Detail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByReservation returns the audit trail for one reservation, oldest
// first.
func (r *EventLogRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.EventLog, error) {
	const q = `SELECT ` + eventLogColumns + ` FROM event_logs
	           WHERE reservation_id = ? ORDER BY created_at ASC, id ASC`
	return r.list(ctx, q, reservationID)
}

// ListRecent returns the newest audit entries up to limit.
func (r *EventLogRepo) ListRecent(ctx context.Context, limit int) ([]model.EventLog, error) {
	const q = `SELECT ` + eventLogColumns + ` FROM event_logs
	           ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.list(ctx, q, limit)
}

func (r *EventLogRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.EventLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.EventLog
	for rows.Next() {
		e, err := scanEventLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
