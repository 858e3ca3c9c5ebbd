package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mariocelzo/biblioflow/internal/model"
)

// LoanRepo provides data access to the loans table.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo constructs a LoanRepo with the given DB handle.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

const loanColumns = `id, user_id, book_id, loan_date, due_date, returned_at,
	               renewal_count, max_renewals, status, reminder_sent_at, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (model.Loan, error) {
	var (
		l          model.Loan
		returnedAt sql.NullTime
		reminderAt sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.BookID, &l.LoanDate, &l.DueDate, &returnedAt,
		&l.RenewalCount, &l.MaxRenewals, &l.Status, &reminderAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return model.Loan{}, err
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		l.ReturnedAt = &t
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		l.ReminderSentAt = &t
	}
	return l, nil
}

// CreateTx inserts an ACTIVE loan within the caller's transaction. The
// caller pairs this with BookRepo.TakeCopyTx in the same transaction so
// the copy counter and the loan row move together or not at all.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	const q = `INSERT INTO loans (user_id, book_id, loan_date, due_date, max_renewals, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		l.UserID, l.BookID, l.LoanDate.UTC(), l.DueDate.UTC(), l.MaxRenewals, model.LoanActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	l.Status = model.LoanActive
	return nil
}

// GetByID retrieves a loan by its id.
func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`
	l, err := scanLoan(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetByIDTx retrieves a loan inside a transaction with a row lock.
func (r *LoanRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans WHERE id = ? FOR UPDATE`
	l, err := scanLoan(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListByUser returns a user's loans, newest first.
func (r *LoanRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE user_id = ? ORDER BY loan_date DESC`
	return r.list(ctx, q, userID)
}

// CountOutForUserAndBook returns how many of the user's loans for this
// book still hold a copy. Used to refuse borrowing the same title twice.
func (r *LoanRepo) CountOutForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM loans
	           WHERE user_id = ? AND book_id = ? AND status IN ('ACTIVE','RENEWED','EXPIRED')`
	var n int
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&n)
	return n, err
}

// RenewTx extends a loan's due date and bumps the renewal counter. The
// WHERE clause re-checks both the live status and the renewal ceiling
// at mutation time; zero rows means the loan was not renewable.
func (r *LoanRepo) RenewTx(ctx context.Context, tx *sql.Tx, id uint64, newDue time.Time) (bool, error) {
	const q = `UPDATE loans
	           SET due_date = ?, renewal_count = renewal_count + 1, status = 'RENEWED',
	               reminder_sent_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status IN ('ACTIVE','RENEWED') AND renewal_count < max_renewals`
	res, err := tx.ExecContext(ctx, q, newDue.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkReturnedTx transitions a loan that still holds a copy to
// RETURNED. Zero rows means the loan was already returned.
func (r *LoanRepo) MarkReturnedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE loans
	           SET status = 'RETURNED', returned_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status IN ('ACTIVE','RENEWED','EXPIRED')`
	res, err := tx.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListDueSoon returns live loans due within the given number of days
// that have not had their reminder sent yet.
func (r *LoanRepo) ListDueSoon(ctx context.Context, now time.Time, days int) ([]model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE status IN ('ACTIVE','RENEWED')
	             AND reminder_sent_at IS NULL
	             AND due_date > ? AND due_date <= ?`
	return r.list(ctx, q, now.UTC(), now.UTC().Add(time.Duration(days)*24*time.Hour))
}

// MarkReminderSentTx records that the due-soon reminder went out. The
// IS NULL re-check makes the sweep idempotent: a second run finds the
// column set and affects zero rows.
func (r *LoanRepo) MarkReminderSentTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE loans SET reminder_sent_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND reminder_sent_at IS NULL AND status IN ('ACTIVE','RENEWED')`
	res, err := tx.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOverdue returns live loans whose due date has passed.
func (r *LoanRepo) ListOverdue(ctx context.Context, now time.Time) ([]model.Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM loans
	           WHERE status IN ('ACTIVE','RENEWED') AND due_date < ?`
	return r.list(ctx, q, now.UTC())
}

// MarkExpiredTx transitions an overdue loan to EXPIRED, re-checking the
// live status at mutation time.
func (r *LoanRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	const q = `UPDATE loans SET status = 'EXPIRED', updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status IN ('ACTIVE','RENEWED')`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *LoanRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Loan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
