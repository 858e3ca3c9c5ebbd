package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mariocelzo/biblioflow/internal/model"
)

// BookRepo provides data access to the books table. The available-copy
// counter is only ever moved by the guarded ...Tx methods below, which
// encode the bounds [0, total_copies] directly in their WHERE clauses
// so the counter can never over- or underflow, even under concurrency.
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo constructs a BookRepo with the given DB handle.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookColumns = `id, isbn, title, author, total_copies, available_copies,
	               is_active, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (model.Book, error) {
	var b model.Book
	err := row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// Create inserts a book; available copies start equal to total copies.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	const q = `INSERT INTO books (isbn, title, author, total_copies, available_copies)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.ISBN, b.Title, b.Author, b.TotalCopies, b.TotalCopies)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.AvailableCopies = b.TotalCopies
	return nil
}

// GetByID retrieves a book by its id.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
	b, err := scanBook(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByIDTx retrieves a book inside a transaction with a row lock, so
// concurrent borrow and return operations on the same title serialize.
func (r *BookRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ? FOR UPDATE`
	b, err := scanBook(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns the catalog ordered by title. When search is non-empty,
// titles and authors are matched case-insensitively.
func (r *BookRepo) List(ctx context.Context, search string) ([]model.Book, error) {
	q := `SELECT ` + bookColumns + ` FROM books WHERE is_active = 1`
	var args []interface{}
	if search != "" {
		q += ` AND (title LIKE ? OR author LIKE ?)`
		pat := "%" + search + "%"
		args = append(args, pat, pat)
	}
	q += ` ORDER BY title`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TakeCopyTx decrements the available-copy counter exactly once, and
// only while copies remain. Returns ErrNoCopies when the counter is
// already zero (zero rows affected).
func (r *BookRepo) TakeCopyTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE books
	           SET available_copies = available_copies - 1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND available_copies > 0`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoCopies
	}
	return nil
}

// ReturnCopyTx increments the available-copy counter, capped at the
// total. A zero-rows result means the counter was already full, which
// indicates a double return; surfaced as ErrConflict so the caller's
// transaction rolls back instead of silently absorbing it.
func (r *BookRepo) ReturnCopyTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE books
	           SET available_copies = available_copies + 1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND available_copies < total_copies`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}
