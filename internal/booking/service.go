// Package booking implements the reservation lifecycle state machine.
// Every transition runs inside one unit of work so the reservation row,
// the seat state, the audit entry and the notification commit together
// or not at all. Seat state is never mutated outside these operations.
package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mariocelzo/biblioflow/internal/model"
	"github.com/mariocelzo/biblioflow/internal/notify"
	"github.com/mariocelzo/biblioflow/internal/repository"
	"github.com/mariocelzo/biblioflow/internal/timeslot"
)

// Check-in outcomes. Early and late attempts are ordinary outcomes, not
// errors, because staff scanners render each one differently.
const (
	CheckInOK       = "OK"
	CheckInTooEarly = "TOO_EARLY"
	CheckInTooLate  = "TOO_LATE"
	CheckInAlready  = "ALREADY_CHECKED_IN"
)

// CheckInResult reports what a check-in attempt did.
type CheckInResult struct {
	Status      string
	Reservation *model.Reservation
	// CheckedInAt carries the original check-in timestamp on the
	// ALREADY_CHECKED_IN outcome so scanners can show "already in"
	// instead of a failure.
	CheckedInAt *time.Time
	// Cancelled is set on the TOO_LATE outcome of the scanner path,
	// where a late arrival forfeits the slot.
	Cancelled bool
}

// CreateInput carries a booking request.
type CreateInput struct {
	UserID uint64
	SeatID uint64
	Date   string
	Start  timeslot.TimeOfDay
	End    timeslot.TimeOfDay
}

// Service drives reservation transitions and staff seat overrides.
type Service struct {
	uow          *repository.UnitOfWork
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
	events       *repository.EventLogRepo
	notifier     *notify.Notifier
	loc          *time.Location
}

// NewService constructs the booking service. loc is the wall-clock
// location reservations are interpreted in.
func NewService(
	uow *repository.UnitOfWork,
	seats *repository.SeatRepo,
	reservations *repository.ReservationRepo,
	events *repository.EventLogRepo,
	notifier *notify.Notifier,
	loc *time.Location,
) *Service {
	return &Service{
		uow:          uow,
		seats:        seats,
		reservations: reservations,
		events:       events,
		notifier:     notifier,
		loc:          loc,
	}
}

// Create books a seat for a window. The overlap re-check and the insert
// run inside one transaction with the seat's open reservations locked,
// so two racing requests for the same window cannot both commit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	win := timeslot.Window{Start: in.Start, End: in.End}
	if !win.Valid() {
		return nil, fmt.Errorf("%w: start must be before end", repository.ErrConflict)
	}
	if _, err := time.ParseInLocation("2006-01-02", in.Date, s.loc); err != nil {
		return nil, fmt.Errorf("%w: bad date", repository.ErrConflict)
	}

	res := &model.Reservation{
		UserID: in.UserID,
		SeatID: in.SeatID,
		Date:   in.Date,
		Start:  in.Start,
		End:    in.End,
	}
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		seat, err := s.seats.GetByIDTx(ctx, tx, in.SeatID)
		if err != nil {
			return err
		}
		// Staff holds block booking; OCCUPIED does not, a live session
		// now says nothing about a future window.
		if !seat.IsActive || seat.State == model.SeatMaintenance || seat.State == model.SeatReserved {
			return repository.ErrSeatUnavailable
		}
		if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		return s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID:       in.UserID,
			ReservationID: &res.ID,
			Type:          model.EventReservationCreated,
			Detail:        fmt.Sprintf("seat %d booked for %s %s-%s", in.SeatID, in.Date, in.Start, in.End),
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CheckIn attempts the CONFIRMED -> CHECKED_IN transition at time at.
// userID must match the reservation owner: the self-service path passes
// the authenticated user, the scanner path passes the user bound into
// the QR token. viaScan selects the staff-scan behavior, where a
// too-late arrival additionally cancels the booking.
func (s *Service) CheckIn(ctx context.Context, reservationID, userID uint64, viaScan bool, at time.Time) (*CheckInResult, error) {
	var (
		result CheckInResult
		batch  = s.notifier.Begin()
	)
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetByIDTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return repository.ErrForbidden
		}
		result.Reservation = res

		switch res.Status {
		case model.ReservationCheckedIn, model.ReservationCompleted:
			result.Status = CheckInAlready
			result.CheckedInAt = res.CheckedInAt
			return nil
		case model.ReservationConfirmed:
			// fall through to the grace-window check
		default:
			return repository.ErrConflict
		}

		startAt, err := res.StartAt(s.loc)
		if err != nil {
			return err
		}
		switch {
		case at.Before(startAt.Add(-model.GracePeriod)):
			result.Status = CheckInTooEarly
			return nil
		case at.After(startAt.Add(model.GracePeriod)):
			result.Status = CheckInTooLate
			if !viaScan {
				return nil
			}
			// Late arrival on the scanner path forfeits the slot.
			ok, err := s.reservations.UpdateStatusIfTx(ctx, tx, res.ID, model.ReservationConfirmed, model.ReservationCancelled)
			if err != nil {
				return err
			}
			if !ok {
				return repository.ErrConflict
			}
			result.Cancelled = true
			res.Status = model.ReservationCancelled
			if err := s.events.AppendTx(ctx, tx, &model.EventLog{
				ActorID:       userID,
				ReservationID: &res.ID,
				Type:          model.EventReservationCancel,
				Detail:        "cancelled at scan: arrived after the check-in grace window",
			}); err != nil {
				return err
			}
			return batch.CreateTx(ctx, tx, model.Notification{
				UserID:  res.UserID,
				Type:    model.NotifyCancelled,
				Title:   "Reservation cancelled",
				Message: fmt.Sprintf("Your reservation for seat %d on %s was cancelled: check-in window missed.", res.SeatID, res.Date),
			})
		}

		ok, err := s.reservations.SetCheckedInTx(ctx, tx, res.ID, at)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrConflict
		}
		if err := s.seats.UpdateStateTx(ctx, tx, res.SeatID, model.SeatOccupied); err != nil {
			return err
		}
		result.Status = CheckInOK
		res.Status = model.ReservationCheckedIn
		checkedIn := at
		res.CheckedInAt = &checkedIn
		result.CheckedInAt = &checkedIn

		if err := s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID:       userID,
			ReservationID: &res.ID,
			Type:          model.EventReservationCheckIn,
			Detail:        fmt.Sprintf("checked in at %s", at.UTC().Format(time.RFC3339)),
		}); err != nil {
			return err
		}
		return batch.CreateTx(ctx, tx, model.Notification{
			UserID:  res.UserID,
			Type:    model.NotifyCheckIn,
			Title:   "Checked in",
			Message: fmt.Sprintf("You are checked in at seat %d until %s.", res.SeatID, res.End),
		})
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)
	return &result, nil
}

// Cancel performs CONFIRMED -> CANCELLED. Non-staff actors may only
// cancel their own reservations.
func (s *Service) Cancel(ctx context.Context, reservationID, actorID uint64, staff bool) error {
	batch := s.notifier.Begin()
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetByIDTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if !staff && res.UserID != actorID {
			return repository.ErrForbidden
		}
		ok, err := s.reservations.UpdateStatusIfTx(ctx, tx, res.ID, model.ReservationConfirmed, model.ReservationCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrConflict
		}
		entry := model.EventLog{
			ActorID:       actorID,
			ReservationID: &res.ID,
			Type:          model.EventReservationCancel,
			Detail:        "cancelled",
		}
		if actorID != res.UserID {
			entry.TargetUserID = &res.UserID
			entry.Detail = "cancelled by staff"
		}
		if err := s.events.AppendTx(ctx, tx, &entry); err != nil {
			return err
		}
		return batch.CreateTx(ctx, tx, model.Notification{
			UserID:  res.UserID,
			Type:    model.NotifyCancelled,
			Title:   "Reservation cancelled",
			Message: fmt.Sprintf("Your reservation for seat %d on %s was cancelled.", res.SeatID, res.Date),
		})
	})
	if err != nil {
		return err
	}
	batch.Flush(ctx)
	return nil
}

// Expire performs the no-show release CONFIRMED -> EXPIRED on behalf of
// the automation sweep. It reports false when the reservation had
// already left CONFIRMED, which makes re-runs no-ops.
func (s *Service) Expire(ctx context.Context, reservationID uint64) (bool, error) {
	var (
		changed bool
		batch   = s.notifier.Begin()
	)
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetByIDTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		ok, err := s.reservations.UpdateStatusIfTx(ctx, tx, res.ID, model.ReservationConfirmed, model.ReservationExpired)
		if err != nil || !ok {
			return err
		}
		changed = true
		if err := s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID:       0, // automation sweep
			TargetUserID:  &res.UserID,
			ReservationID: &res.ID,
			Type:          model.EventReservationExpired,
			Detail:        "released as no-show after the check-in grace window",
		}); err != nil {
			return err
		}
		return batch.CreateTx(ctx, tx, model.Notification{
			UserID:  res.UserID,
			Type:    model.NotifyNoShow,
			Title:   "Reservation expired",
			Message: fmt.Sprintf("Your reservation for seat %d on %s expired: no check-in within the grace window.", res.SeatID, res.Date),
		})
	})
	if err != nil {
		return false, err
	}
	if changed {
		batch.Flush(ctx)
	}
	return changed, nil
}

// Complete performs CHECKED_IN -> COMPLETED on behalf of the automation
// sweep and releases the seat back to AVAILABLE. It reports false when
// the reservation had already left CHECKED_IN.
func (s *Service) Complete(ctx context.Context, reservationID uint64) (bool, error) {
	var (
		changed bool
		batch   = s.notifier.Begin()
	)
	err := s.uow.Do(ctx, func(tx *sql.Tx) error {
		res, err := s.reservations.GetByIDTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		ok, err := s.reservations.UpdateStatusIfTx(ctx, tx, res.ID, model.ReservationCheckedIn, model.ReservationCompleted)
		if err != nil || !ok {
			return err
		}
		changed = true

		seat, err := s.seats.GetByIDTx(ctx, tx, res.SeatID)
		if err != nil {
			return err
		}
		// Release only a seat this session occupied; a staff hold set
		// meanwhile stays in place.
		if seat.State == model.SeatOccupied {
			if err := s.seats.UpdateStateTx(ctx, tx, res.SeatID, model.SeatAvailable); err != nil {
				return err
			}
		}
		if err := s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID:       0, // automation sweep
			TargetUserID:  &res.UserID,
			ReservationID: &res.ID,
			Type:          model.EventReservationComplete,
			Detail:        "session completed at window end",
		}); err != nil {
			return err
		}
		return batch.CreateTx(ctx, tx, model.Notification{
			UserID:  res.UserID,
			Type:    model.NotifyCompleted,
			Title:   "Session completed",
			Message: fmt.Sprintf("Your session at seat %d on %s has ended.", res.SeatID, res.Date),
		})
	})
	if err != nil {
		return false, err
	}
	if changed {
		batch.Flush(ctx)
	}
	return changed, nil
}

// OverrideSeatState lets staff force a seat to AVAILABLE, MAINTENANCE
// or RESERVED. The override is refused while a checked-in session is
// live on the seat, and every override is audit-logged with the
// before/after states and the staff reason.
func (s *Service) OverrideSeatState(ctx context.Context, actorID, seatID uint64, newState, reason string, now time.Time) error {
	switch newState {
	case model.SeatAvailable, model.SeatMaintenance, model.SeatReserved:
	default:
		return fmt.Errorf("%w: state %q cannot be forced", repository.ErrConflict, newState)
	}
	return s.uow.Do(ctx, func(tx *sql.Tx) error {
		seat, err := s.seats.GetByIDTx(ctx, tx, seatID)
		if err != nil {
			return err
		}
		live, err := s.reservations.HasLiveSessionForSeat(ctx, tx, seatID, now)
		if err != nil {
			return err
		}
		if live {
			return fmt.Errorf("%w: seat %d is occupied by a live session", repository.ErrConflict, seatID)
		}
		if err := s.seats.UpdateStateTx(ctx, tx, seatID, newState); err != nil {
			return err
		}
		return s.events.AppendTx(ctx, tx, &model.EventLog{
			ActorID: actorID,
			Type:    model.EventSeatOverride,
			Detail:  fmt.Sprintf("seat %d: %s -> %s (%s)", seatID, seat.State, newState, reason),
		})
	})
}
