package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/automation"
	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/queue"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

const testCronSecret = "cron-test-secret"

func newCronHandler(t *testing.T) (*CronHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	publish := func(context.Context, queue.NotificationCreatedEvent) error { return nil }
	notifier := notify.NewWithPublisher(repository.NewNotificationRepo(db), publish)
	uow := repository.NewUnitOfWork(db)
	reservations := repository.NewReservationRepo(db)
	loanRepo := repository.NewLoanRepo(db)
	events := repository.NewEventLogRepo(db)
	bookingSvc := booking.NewService(uow, repository.NewSeatRepo(db), reservations, events, notifier, time.UTC)
	sweeper := automation.NewSweeper(uow, reservations, loanRepo, events, bookingSvc, notifier, 3)

	cfg := &config.Config{CronSecret: testCronSecret}
	return NewCronHandler(cfg, sweeper), mock, func() { db.Close() }
}

func callCron(h *CronHandler, authorization string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/cron/automations", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	_ = h.Run(e.NewContext(req, rec))
	return rec
}

func TestCronRejectsMissingSecret(t *testing.T) {
	h, mock, done := newCronHandler(t)
	defer done()

	assert.Equal(t, http.StatusUnauthorized, callCron(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, callCron(h, "Bearer wrong").Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "an unauthorized call must not run the sweep")
}

func TestCronRunsSweepAndReportsCounts(t *testing.T) {
	h, mock, done := newCronHandler(t)
	defer done()

	emptyReservations := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "user_id", "seat_id", "date", "start_time", "end_time",
			"status", "checked_in_at", "created_at", "updated_at",
		})
	}
	emptyLoans := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "user_id", "book_id", "loan_date", "due_date", "returned_at",
			"renewal_count", "max_renewals", "status", "reminder_sent_at",
			"created_at", "updated_at",
		})
	}

	// One listing per sweep category; nothing to do anywhere.
	mock.ExpectQuery("SELECT (.+) FROM reservations").WillReturnRows(emptyReservations())
	mock.ExpectQuery("SELECT (.+) FROM reservations").WillReturnRows(emptyReservations())
	mock.ExpectQuery("SELECT (.+) FROM loans").WillReturnRows(emptyLoans())
	mock.ExpectQuery("SELECT (.+) FROM loans").WillReturnRows(emptyLoans())

	rec := callCron(h, "Bearer "+testCronSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	var report automation.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Zero(t, report.ExpiredReservations)
	assert.Zero(t, report.CompletedReservations)
	assert.Zero(t, report.LoanReminders)
	assert.Zero(t, report.ExpiredLoans)
	assert.Empty(t, report.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}
