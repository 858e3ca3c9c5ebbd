package automation

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRunner schedules the sweep every interval on an in-process
// scheduler. The HTTP cron endpoint is the primary trigger; the runner
// is an opt-in convenience for deployments without an external
// scheduler. The returned stop function shuts the scheduler down.
func StartRunner(sweeper *Sweeper, interval time.Duration) (func(), error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			report := sweeper.Run(context.Background(), time.Now())
			log.Printf("automation: sweep done | expired_reservations=%d completed=%d loan_reminders=%d expired_loans=%d errors=%d",
				report.ExpiredReservations, report.CompletedReservations,
				report.LoanReminders, report.ExpiredLoans, len(report.Errors))
			for _, e := range report.Errors {
				log.Printf("automation: sweep error: %s", e)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	sched.Start()
	return func() { _ = sched.Shutdown() }, nil
}
