package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/booking"
	"github.com/mariocelzo/biblioflow/internal/config"
	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/qrtoken"
	"github.com/mariocelzo/biblioflow/internal/queue"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

const testQRSecret = "scanner-test-secret"

func newScannerHandler(t *testing.T) (*ScannerHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	publish := func(context.Context, queue.NotificationCreatedEvent) error { return nil }
	notifier := notify.NewWithPublisher(repository.NewNotificationRepo(db), publish)
	svc := booking.NewService(
		repository.NewUnitOfWork(db),
		repository.NewSeatRepo(db),
		repository.NewReservationRepo(db),
		repository.NewEventLogRepo(db),
		notifier,
		time.UTC,
	)
	cfg := &config.Config{QRSecret: testQRSecret}
	return NewScannerHandler(cfg, svc), mock, func() { db.Close() }
}

func postScan(t *testing.T, h *ScannerHandler, qr string) *httptest.ResponseRecorder {
	body, err := json.Marshal(map[string]string{"qrCode": qr})
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/scanner/validate", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Validate(e.NewContext(req, rec)))
	return rec
}

func TestScannerRejectsGarbage(t *testing.T) {
	h, mock, done := newScannerHandler(t)
	defer done()

	rec := postScan(t, h, "not even json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp scanErrorResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, string(qrtoken.KindMalformed), resp.Type)
	assert.NoError(t, mock.ExpectationsWereMet(), "an unverifiable token must not touch the database")
}

func TestScannerRejectsTamperedToken(t *testing.T) {
	h, mock, done := newScannerHandler(t)
	defer done()

	token := qrtoken.Generate([]byte(testQRSecret), 42, 7, time.Now())
	token.UserID = 8 // signature no longer covers the payload
	raw, err := qrtoken.Encode(token)
	require.NoError(t, err)

	rec := postScan(t, h, raw)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp scanErrorResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(qrtoken.KindBadSignature), resp.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScannerRejectsExpiredToken(t *testing.T) {
	h, mock, done := newScannerHandler(t)
	defer done()

	old := time.Now().Add(-qrtoken.MaxAge - time.Minute)
	raw, err := qrtoken.Encode(qrtoken.Generate([]byte(testQRSecret), 42, 7, old))
	require.NoError(t, err)

	rec := postScan(t, h, raw)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp scanErrorResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(qrtoken.KindExpired), resp.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScannerValidTokenChecksIn(t *testing.T) {
	h, mock, done := newScannerHandler(t)
	defer done()

	// Anchor the booked window to the current minute so "now" always
	// falls inside the grace period, whenever the test runs.
	now := time.Now().UTC()
	start := timeslot.FromTime(now)
	end := start + 60
	if end > timeslot.MinutesPerDay {
		end = timeslot.MinutesPerDay
	}
	res := model.Reservation{
		ID:     42,
		UserID: 7,
		SeatID: 3,
		Date:   now.Format("2006-01-02"),
		Start:  start,
		End:    end,
		Status: model.ReservationConfirmed,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservations").WithArgs(res.ID).WillReturnRows(sqlmock.NewRows([]string{
		"id", "user_id", "seat_id", "date", "start_time", "end_time",
		"status", "checked_in_at", "created_at", "updated_at",
	}).AddRow(
		res.ID, res.UserID, res.SeatID, res.Date, res.Start.String(), res.End.String(),
		res.Status, nil, now, now,
	))
	mock.ExpectExec("UPDATE reservations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE seats").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	raw, err := qrtoken.Encode(qrtoken.Generate([]byte(testQRSecret), res.ID, res.UserID, now))
	require.NoError(t, err)

	rec := postScan(t, h, raw)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["valid"])
	assert.Equal(t, booking.CheckInOK, resp["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}
