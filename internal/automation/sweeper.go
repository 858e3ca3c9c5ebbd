// Package automation runs the periodic sweep that advances
// reservations and loans whose deadlines have passed. The sweep is
// idempotent: candidates are discovered with plain reads and every
// mutation re-checks the pre-transition state, so a concurrent or
// repeated run is a no-op. Each record gets its own transaction; one
// failing record never blocks the rest of the batch.
package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

// Report aggregates what one sweep did. Counts cover only transitions
// this run performed; records another run got to first are not counted.
type Report struct {
	ExpiredReservations   int      `json:"expiredReservations"`
	CompletedReservations int      `json:"completedReservations"`
	LoanReminders         int      `json:"loanReminders"`
	ExpiredLoans          int      `json:"expiredLoans"`
	Errors                []string `json:"errors,omitempty"`
}

// Sweeper performs the four sweep categories in one pass.
type Sweeper struct {
	uow          *repository.UnitOfWork
	reservations *repository.ReservationRepo
	loans        *repository.LoanRepo
	events       *repository.EventLogRepo
	booking      *booking.Service
	notifier     *notify.Notifier
	reminderDays int
}

// NewSweeper constructs a Sweeper. reminderDays is how many days before
// the due date the loan reminder goes out.
func NewSweeper(
	uow *repository.UnitOfWork,
	reservations *repository.ReservationRepo,
	loans *repository.LoanRepo,
	events *repository.EventLogRepo,
	bookingSvc *booking.Service,
	notifier *notify.Notifier,
	reminderDays int,
) *Sweeper {
	return &Sweeper{
		uow:          uow,
		reservations: reservations,
		loans:        loans,
		events:       events,
		booking:      bookingSvc,
		notifier:     notifier,
		reminderDays: reminderDays,
	}
}

// Run executes one sweep as of now and returns the aggregate report.
func (s *Sweeper) Run(ctx context.Context, now time.Time) Report {
	var report Report
	s.expireNoShows(ctx, now, &report)
	s.completeFinished(ctx, now, &report)
	s.remindDueSoon(ctx, now, &report)
	s.expireOverdueLoans(ctx, now, &report)
	return report
}

func (s *Sweeper) expireNoShows(ctx context.Context, now time.Time, report *Report) {
	candidates, err := s.reservations.ListNoShows(ctx, now, model.GracePeriod)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list no-shows: %v", err))
		return
	}
	for _, res := range candidates {
		changed, err := s.booking.Expire(ctx, res.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("reservation %d: %v", res.ID, err))
			continue
		}
		if changed {
			report.ExpiredReservations++
		}
	}
}

func (s *Sweeper) completeFinished(ctx context.Context, now time.Time, report *Report) {
	candidates, err := s.reservations.ListFinished(ctx, now)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list finished: %v", err))
		return
	}
	for _, res := range candidates {
		changed, err := s.booking.Complete(ctx, res.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("reservation %d: %v", res.ID, err))
			continue
		}
		if changed {
			report.CompletedReservations++
		}
	}
}

func (s *Sweeper) remindDueSoon(ctx context.Context, now time.Time, report *Report) {
	candidates, err := s.loans.ListDueSoon(ctx, now, s.reminderDays)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list due-soon loans: %v", err))
		return
	}
	for _, loan := range candidates {
		loan := loan
		batch := s.notifier.Begin()
		var sent bool
		err := s.uow.Do(ctx, func(tx *sql.Tx) error {
			ok, err := s.loans.MarkReminderSentTx(ctx, tx, loan.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				// Another run sent it between listing and locking.
				return nil
			}
			sent = true
			return batch.CreateTx(ctx, tx, model.Notification{
				UserID: loan.UserID,
				Type:   model.NotifyLoanDueSoon,
				Title:  "Book due soon",
				Message: fmt.Sprintf("Your loan %d is due on %s. Renew it or bring the book back.",
					loan.ID, loan.DueDate.Format("2006-01-02")),
			})
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("loan %d reminder: %v", loan.ID, err))
			continue
		}
		if sent {
			batch.Flush(ctx)
			report.LoanReminders++
		}
	}
}

func (s *Sweeper) expireOverdueLoans(ctx context.Context, now time.Time, report *Report) {
	candidates, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list overdue loans: %v", err))
		return
	}
	for _, loan := range candidates {
		loan := loan
		batch := s.notifier.Begin()
		var changed bool
		err := s.uow.Do(ctx, func(tx *sql.Tx) error {
			ok, err := s.loans.MarkExpiredTx(ctx, tx, loan.ID)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			changed = true
			if err := s.events.AppendTx(ctx, tx, &model.EventLog{
				ActorID:      0, // automation sweep
				TargetUserID: &loan.UserID,
				Type:         model.EventLoanExpired,
				Detail:       fmt.Sprintf("loan %d overdue since %s", loan.ID, loan.DueDate.Format("2006-01-02")),
			}); err != nil {
				return err
			}
			return batch.CreateTx(ctx, tx, model.Notification{
				UserID: loan.UserID,
				Type:   model.NotifyLoanOverdue,
				Title:  "Book overdue",
				Message: fmt.Sprintf("Your loan %d was due on %s and is now overdue. Please return the book.",
					loan.ID, loan.DueDate.Format("2006-01-02")),
			})
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("loan %d: %v", loan.ID, err))
			continue
		}
		if changed {
			batch.Flush(ctx)
			report.ExpiredLoans++
		}
	}
}
