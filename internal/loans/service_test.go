package loans

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
		repository.NewLoanRepo(db),
		repository.NewBookRepo(db),
		repository.NewEventLogRepo(db),
		notifier,
		30,
	)
	return svc, mock, sink, func() { db.Close() }
}

func bookRow(b model.Book) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "isbn", "title", "author", "total_copies", "available_copies",
		"is_active", "created_at", "updated_at",
	}).AddRow(
		b.ID, b.ISBN, b.Title, b.Author, b.TotalCopies, b.AvailableCopies,
		b.IsActive, time.Now(), time.Now(),
	)
}

func loanRow(l model.Loan) *sqlmock.Rows {
	var returnedAt, reminderAt any
	if l.ReturnedAt != nil {
		returnedAt = *l.ReturnedAt
	}
	if l.ReminderSentAt != nil {
		reminderAt = *l.ReminderSentAt
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "book_id", "loan_date", "due_date", "returned_at",
		"renewal_count", "max_renewals", "status", "reminder_sent_at", "created_at", "updated_at",
	}).AddRow(
		l.ID, l.UserID, l.BookID, l.LoanDate, l.DueDate, returnedAt,
		l.RenewalCount, l.MaxRenewals, l.Status, reminderAt, time.Now(), time.Now(),
	)
}

func activeLoan() model.Loan {
	return model.Loan{
		ID:          5,
		UserID:      7,
		BookID:      2,
		LoanDate:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		MaxRenewals: model.DefaultMaxRenewals,
		Status:      model.LoanActive,
	}
}

func TestBorrowTakesOneCopy(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	book := model.Book{ID: 2, ISBN: "978-88-06-17500-3", Title: "Il barone rampante",
		Author: "Italo Calvino", TotalCopies: 3, AvailableCopies: 1, IsActive: true}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM books").WithArgs(book.ID).WillReturnRows(bookRow(book))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE books").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO loans").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	loan, err := svc.Borrow(context.Background(), 7, book.ID, now)

	require.NoError(t, err)
	assert.Equal(t, uint64(5), loan.ID)
	assert.Equal(t, model.LoanActive, loan.Status)
	assert.Equal(t, now.AddDate(0, 0, 30), loan.DueDate)
	assert.Equal(t, uint32(model.DefaultMaxRenewals), loan.MaxRenewals)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowFailsWhenNoCopies(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	book := model.Book{ID: 2, Title: "Il barone rampante", TotalCopies: 3, AvailableCopies: 0, IsActive: true}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM books").WithArgs(book.ID).WillReturnRows(bookRow(book))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	// Guarded decrement matches no row when available_copies is 0.
	mock.ExpectExec("UPDATE books").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Borrow(context.Background(), 7, book.ID, now)

	assert.ErrorIs(t, err, repository.ErrNoCopies)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowRefusesSecondCopyOfSameTitle(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	book := model.Book{ID: 2, Title: "Il barone rampante", TotalCopies: 3, AvailableCopies: 2, IsActive: true}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM books").WithArgs(book.ID).WillReturnRows(bookRow(book))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Borrow(context.Background(), 7, book.ID, now)

	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewExtendsFromDueDate(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	loan := activeLoan()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans").WithArgs(loan.ID).WillReturnRows(loanRow(loan))
	mock.ExpectExec("UPDATE loans").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	renewed, err := svc.Renew(context.Background(), loan.ID, loan.UserID, false)

	require.NoError(t, err)
	assert.Equal(t, loan.DueDate.AddDate(0, 0, 30), renewed.DueDate)
	assert.Equal(t, uint32(1), renewed.RenewalCount)
	assert.Equal(t, model.LoanRenewed, renewed.Status)
	assert.Nil(t, renewed.ReminderSentAt, "renewal re-arms the due-soon reminder")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewRefusedAtLimit(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	loan := activeLoan()
	loan.RenewalCount = loan.MaxRenewals
	loan.Status = model.LoanRenewed

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans").WithArgs(loan.ID).WillReturnRows(loanRow(loan))
	// renewal_count < max_renewals fails inside the guarded update.
	mock.ExpectExec("UPDATE loans").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Renew(context.Background(), loan.ID, loan.UserID, false)

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Contains(t, err.Error(), "2/2", "conflict carries the renewal counters")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewForeignLoanForbidden(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	loan := activeLoan()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans").WithArgs(loan.ID).WillReturnRows(loanRow(loan))
	mock.ExpectRollback()

	_, err := svc.Renew(context.Background(), loan.ID, loan.UserID+1, false)

	assert.ErrorIs(t, err, repository.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnGivesCopyBackAndNotifies(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	loan := activeLoan()
	now := time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans").WithArgs(loan.ID).WillReturnRows(loanRow(loan))
	mock.ExpectExec("UPDATE loans").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE books").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	err := svc.Return(context.Background(), loan.ID, loan.UserID, false, now)

	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, model.NotifyLoanReturned, sink.events[0].Type)
	assert.Equal(t, loan.UserID, sink.events[0].UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnTwiceIsConflict(t *testing.T) {
	svc, mock, sink, done := newTestService(t)
	defer done()

	loan := activeLoan()
	returned := time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC)
	loan.Status = model.LoanReturned
	loan.ReturnedAt = &returned

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM loans").WithArgs(loan.ID).WillReturnRows(loanRow(loan))
	mock.ExpectExec("UPDATE loans").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.Return(context.Background(), loan.ID, loan.UserID, false, returned.Add(time.Hour))

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Empty(t, sink.events, "no second notification, no second counter increment")
	require.NoError(t, mock.ExpectationsWereMet())
}
