package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/availability"
	"github.com/mariocelzo/biblioflow/internal/repository"
)

func newAvailabilityHandler(t *testing.T) (*AvailabilityHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	r := availability.NewResolver(repository.NewSeatRepo(db), repository.NewReservationRepo(db))
	return NewAvailabilityHandler(r), mock, func() { db.Close() }
}

func getSeats(t *testing.T, h *AvailabilityHandler, query string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/seats?"+query, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Seats(e.NewContext(req, rec)))
	return rec
}

func TestSeatsRejectsMalformedDate(t *testing.T) {
	h, mock, done := newAvailabilityHandler(t)
	defer done()

	rec := getSeats(t, h, "date=yesterday&startTime=09:00&endTime=10:00")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid date", resp["error"])
	assert.NoError(t, mock.ExpectationsWereMet(), "a bad date must be rejected before any query runs")
}

func TestSeatsRequiresWindowPartsTogether(t *testing.T) {
	h, mock, done := newAvailabilityHandler(t)
	defer done()

	rec := getSeats(t, h, "startTime=09:00")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
