// Package loans implements the book-loan lifecycle: borrow, renew and
// return. It parallels the reservation state machine but is simpler;
// the two couple only through the automation sweep and notifications.
// Every mutation runs inside one unit of work so the loan row and the
// book's copy counter move together.
package loans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// Service drives loan transitions.
type Service struct {
	uow      *repository.UnitOfWork
	loans    *repository.LoanRepo
	books    *repository.BookRepo
	events   *repository.EventLogRepo
	notifier *notify.Notifier
	loanDays int
}

// NewService constructs the loan service. loanDays is the loan term
// granted on borrow and added per renewal.
func NewService(
	uow *repository.UnitOfWork,
	loans *repository.LoanRepo,
	books *repository.BookRepo,
	events *repository.EventLogRepo,
	notifier *notify.Notifier,
	loanDays int,
) *Service {
	return &Service{
		uow:      uow,
		loans:    loans,
		books:    books,
		events:   events,
		notifier: notifier,
		loanDays: loanDays,
	}
}

// Borrow takes one copy of a book for the user. The copy counter moves
// through a guarded decrement in the same transaction as the loan
// insert, so the counter can never go negative and never drifts from
// the set of loans holding copies.
func (s *Service) Borrow(ctx context.Context, userID, bookID uint64, now time.Time) (*model.Loan, error) {
	loan := &model.Loan{
		UserID:      userID,
		BookID:      bookID,
		LoanDate:    now,
		DueDate:     now.AddDate(0, 0, s.loanDays),
		MaxRenewals: model.DefaultMaxRenewals,
	}
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		book, err := s.books.GetByIDTx(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !book.IsActive {
			return fmt.Errorf("%w: title %d is not borrowable", repository.ErrConflict, bookID)
		}
		out, err := s.loans.CountOutForUserAndBook(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if out > 0 {
			return fmt.Errorf("%w: user already holds a copy of book %d", repository.ErrConflict, bookID)
		}
		if err := s.books.TakeCopyTx(ctx, tx, bookID); err != nil {
			return err
		}
		if err := s.loans.CreateTx(ctx, tx, loan); err != nil {
			return err
		}
		return s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID: userID,
			Type:    model.EventLoanCreated,
			Detail:  fmt.Sprintf("loan %d: %q borrowed, due %s", loan.ID, book.Title, loan.DueDate.Format("2006-01-02")),
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Renew extends a loan by the standard term from its current due date.
// The repository re-checks the live status and the renewal ceiling at
// mutation time; a refused renewal surfaces as a conflict carrying the
// counters so the client can render "limit reached" rather than a
// generic failure.
func (s *Service) Renew(ctx context.Context, loanID, actorID uint64, staff bool) (*model.Loan, error) {
	var renewed *model.Loan
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		loan, err := s.loans.GetByIDTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !staff && loan.UserID != actorID {
			return repository.ErrForbidden
		}
		newDue := loan.DueDate.AddDate(0, 0, s.loanDays)
		ok, err := s.loans.RenewTx(ctx, tx, loanID, newDue)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: loan %d not renewable (status %s, %d/%d renewals)",
				repository.ErrConflict, loanID, loan.Status, loan.RenewalCount, loan.MaxRenewals)
		}
		loan.DueDate = newDue
		loan.RenewalCount++
		loan.Status = model.LoanRenewed
		loan.ReminderSentAt = nil
		renewed = loan
		return s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID: actorID,
			Type:    model.EventLoanRenewed,
			Detail:  fmt.Sprintf("loan %d renewed, due %s", loanID, newDue.Format("2006-01-02")),
		})
	})
	if err != nil {
		return nil, err
	}
	return renewed, nil
}

// Return gives the copy back. The loan transition and the guarded
// counter increment share one transaction, and both re-check their
// preconditions, so returning twice is a conflict, not a double
// increment.
func (s *Service) Return(ctx context.Context, loanID, actorID uint64, staff bool, now time.Time) error {
	batch := s.notifier.Begin()
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		loan, err := s.loans.GetByIDTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !staff && loan.UserID != actorID {
			return repository.ErrForbidden
		}
		ok, err := s.loans.MarkReturnedTx(ctx, tx, loanID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: loan %d already returned", repository.ErrConflict, loanID)
		}
		if err := s.books.ReturnCopyTx(ctx, tx, loan.BookID); err != nil {
			return err
		}
		if err := s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID: actorID,
			Type:    model.EventLoanReturned,
			Detail:  fmt.Sprintf("loan %d returned", loanID),
		}); err != nil {
			return err
		}
		return batch.CreateTx(ctx, tx, model.Notification{
			UserID:  loan.UserID,
			Type:    model.NotifyLoanReturned,
			Title:   "Book returned",
			Message: fmt.Sprintf("Your loan %d was returned. Thank you!", loanID),
		})
	})
	if err != nil {
		return err
	}
	batch.Flush(ctx)
	return nil
}
