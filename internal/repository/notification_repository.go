package repository

import (
	"context"
	"database/sql"

	"github.com/mariocelzo/biblioflow/internal/model"
)

// NotificationRepo provides data access to the notifications table.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo constructs a NotificationRepo with the given DB
// handle.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, user_id, type, title, message, action_url, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (model.Notification, error) {
	var (
		n         model.Notification
		actionURL sql.NullString
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &actionURL, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return model.Notification{}, err
	}
	if actionURL.Valid {
		s := actionURL.String
		n.ActionURL = &s
	}
	return n, nil
}

// CreateTx inserts a notification within the caller's transaction so the
// row commits with the transition that produced it.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, n *model.Notification) error {
	const q = `INSERT INTO notifications (user_id, type, title, message, action_url)
	           VALUES (?, ?, ?, ?, ?)`
	var actionURL any
	if n.ActionURL != nil {
		actionURL = *n.ActionURL
	}
	res, err := tx.ExecContext(ctx, q, n.UserID, n.Type, n.Title, n.Message, actionURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns a user's notifications, newest first. unreadOnly
// narrows the list to the ones not yet seen.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, unreadOnly bool) ([]model.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = FALSE`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead flags one of the user's notifications as seen. The user_id
// predicate keeps users from touching each other's rows; zero affected
// rows means the notification was not theirs or already read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) (bool, error) {
	const q = `UPDATE notifications SET is_read = TRUE
	           WHERE id = ? AND user_id = ? AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkAllRead flags all of a user's unread notifications as seen and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	const q = `UPDATE notifications SET is_read = TRUE
	           WHERE user_id = ? AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
