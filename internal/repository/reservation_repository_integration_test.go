package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// openTestDB connects to the MySQL instance named by BIBLIOFLOW_TEST_DSN,
// e.g. "user:pass@tcp(localhost:3306)/biblioflow_test?parseTime=true&loc=UTC".
// Without it the test is skipped: the overlap guard depends on InnoDB
// row locking, which sqlmock cannot exercise.
func openTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("BIBLIOFLOW_TEST_DSN")
	if dsn == "" {
		t.Skip("BIBLIOFLOW_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConcurrentCreateAdmitsExactlyOne(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Fresh fixtures per run so reruns never collide.
	suffix := time.Now().UnixNano()
	var userID, roomID, seatID uint64

	res, err := db.ExecContext(ctx,
		`INSERT INTO users (email, full_name, password_hash, role, is_active) VALUES (?, ?, 'x', 'USER', TRUE)`,
		fmt.Sprintf("race-%d@test.local", suffix), "Race Tester")
	require.NoError(t, err)
	id, _ := res.LastInsertId()
	userID = uint64(id)

	res, err = db.ExecContext(ctx,
		`INSERT INTO rooms (name, floor, capacity, is_quiet, is_group, opens_at, closes_at, is_active)
		 VALUES (?, 1, 10, FALSE, FALSE, '08:00', '20:00', TRUE)`,
		fmt.Sprintf("race-room-%d", suffix))
	require.NoError(t, err)
	id, _ = res.LastInsertId()
	roomID = uint64(id)

	res, err = db.ExecContext(ctx,
		`INSERT INTO seats (room_id, number, has_power, has_window, is_accessible, state, is_active)
		 VALUES (?, 'R1', FALSE, FALSE, FALSE, 'AVAILABLE', TRUE)`, roomID)
	require.NoError(t, err)
	id, _ = res.LastInsertId()
	seatID = uint64(id)

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM reservations WHERE seat_id = ?`, seatID)
		db.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, seatID)
		db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID)
		db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	})

	uow := NewUnitOfWork(db)
	repo := NewReservationRepo(db)

	start, err := timeslot.ParseClock("10:00")
	require.NoError(t, err)
	end, err := timeslot.ParseClock("11:00")
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = uow.Do(ctx, func(tx *sql.Tx) error {
				return repo.CreateTx(ctx, tx, &model.Reservation{
					UserID: userID,
					SeatID: seatID,
					Date:   "2030-01-15",
					Start:  start,
					End:    end,
				})
			})
		}(i)
	}
	wg.Wait()

	// Losers normally see ErrSeatUnavailable; under heavy gap-lock
	// contention InnoDB may instead abort one as a deadlock victim.
	// Either way at most one booking commits.
	won := 0
	for _, e := range errs {
		if e == nil {
			won++
		} else if !errors.Is(e, ErrSeatUnavailable) {
			t.Logf("loser error: %v", e)
		}
	}
	assert.Equal(t, 1, won, "exactly one racing booking must win the window")

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE seat_id = ? AND date = ?`, seatID, "2030-01-15").Scan(&count))
	assert.Equal(t, 1, count)
}
