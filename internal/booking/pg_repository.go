package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// releaseStaleHoldsSQL frees expired-but-unswept holds on one slot so they
// cannot block a fresh claim. Runs inside every claiming transaction.
const releaseStaleHoldsSQL = `
	UPDATE slot_bookings
	SET status = 'released',
	    updated_at = now()
	WHERE slot_date = $1
	  AND slot_time = $2
	  AND kind = 'hold'
	  AND status = 'active'
	  AND expires_at IS NOT NULL
	  AND expires_at < now()
`

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

func (r *PgRepository) calendarDate(t time.Time) CalendarDate {
	return NewCalendarDate(t.Year(), t.Month(), t.Day(), r.loc)
}

func (r *PgRepository) scanSlotBooking(row pgx.Row) (*SlotBooking, error) {
	var (
		b         SlotBooking
		date      time.Time
		slot      string
		apptID    *uuid.UUID
		expiresAt *time.Time
	)

	err := row.Scan(
		&b.ID,
		&date,
		&slot,
		&b.Kind,
		&b.Status,
		&apptID,
		&b.HolderName,
		&b.HolderEmail,
		&expiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Date = r.calendarDate(date)
	b.Time = TimeSlot(slot)
	b.AppointmentID = apptID
	b.ExpiresAt = expiresAt
	return &b, nil
}

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a    Appointment
		date time.Time
		slot string
	)

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.Service,
		&date,
		&slot,
		&a.Status,
		&a.Message,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = r.calendarDate(date)
	a.Time = TimeSlot(slot)
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetBlockedDateEntry(ctx context.Context, date CalendarDate) (*BlockedDateEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, block_date, active, reason, blocked_times, created_at, updated_at
		FROM blocked_dates
		WHERE block_date = $1
		  AND active
		ORDER BY updated_at DESC
		LIMIT 1
	`, date.Time())

	var (
		e       BlockedDateEntry
		day     time.Time
		blocked []string
	)
	err := row.Scan(&e.ID, &day, &e.Active, &e.Reason, &blocked, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockedDateNotFound
		}
		return nil, err
	}

	e.Date = r.calendarDate(day)
	e.BlockedTimes = make([]TimeSlot, 0, len(blocked))
	for _, s := range blocked {
		e.BlockedTimes = append(e.BlockedTimes, TimeSlot(s))
	}
	return &e, nil
}

func (r *PgRepository) GetActiveBooking(ctx context.Context, date CalendarDate, slot TimeSlot) (*SlotBooking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, slot_date, slot_time, kind, status, appointment_id,
		       holder_name, holder_email, expires_at, created_at, updated_at
		FROM slot_bookings
		WHERE slot_date = $1
		  AND slot_time = $2
		  AND status = 'active'
	`, date.Time(), string(slot))
	return r.scanSlotBooking(row)
}

func (r *PgRepository) ListActiveBookings(ctx context.Context, date CalendarDate) (map[TimeSlot]*SlotBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_date, slot_time, kind, status, appointment_id,
		       holder_name, holder_email, expires_at, created_at, updated_at
		FROM slot_bookings
		WHERE slot_date = $1
		  AND status = 'active'
	`, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[TimeSlot]*SlotBooking)
	for rows.Next() {
		b, err := r.scanSlotBooking(rows)
		if err != nil {
			return nil, err
		}
		result[b.Time] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreateHold(ctx context.Context, date CalendarDate, slot TimeSlot, holderName, holderEmail string, expiresAt time.Time) (*SlotBooking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin hold tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, releaseStaleHoldsSQL, date.Time(), string(slot)); err != nil {
		return nil, fmt.Errorf("release stale holds: %w", err)
	}

	// The insert outcome is the authoritative claim: the partial unique
	// index on (slot_date, slot_time) WHERE status = 'active' lets exactly
	// one racing insert through.
	row := tx.QueryRow(ctx, `
		INSERT INTO slot_bookings
			(id, slot_date, slot_time, kind, status, appointment_id,
			 holder_name, holder_email, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'hold', 'active', NULL, $4, $5, $6, now(), now())
		ON CONFLICT (slot_date, slot_time) WHERE status = 'active' DO NOTHING
		RETURNING id, slot_date, slot_time, kind, status, appointment_id,
		          holder_name, holder_email, expires_at, created_at, updated_at
	`, uuid.New(), date.Time(), string(slot), holderName, holderEmail, expiresAt)

	hold, err := r.scanSlotBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit hold tx: %w", err)
	}
	return hold, nil
}

func (r *PgRepository) ConfirmAppointment(ctx context.Context, appt *Appointment) (*Appointment, *SlotBooking, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, name, email, phone, service, slot_date, slot_time, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, now(), now())
		RETURNING id, name, email, phone, service, slot_date, slot_time, status, message, created_at, updated_at
	`, appt.ID, appt.Name, appt.Email, appt.Phone, appt.Service,
		appt.Date.Time(), string(appt.Time), appt.Message)

	created, err := r.scanAppointment(row)
	if err != nil {
		return nil, nil, fmt.Errorf("insert appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, releaseStaleHoldsSQL, appt.Date.Time(), string(appt.Time)); err != nil {
		return nil, nil, fmt.Errorf("release stale holds: %w", err)
	}

	// Promote this holder's own hold when one exists; the hold loses its
	// expiry so the sweeper can never release a confirmed booking.
	row = tx.QueryRow(ctx, `
		UPDATE slot_bookings
		SET kind = 'appointment',
		    appointment_id = $4,
		    holder_name = $5,
		    expires_at = NULL,
		    updated_at = now()
		WHERE slot_date = $1
		  AND slot_time = $2
		  AND kind = 'hold'
		  AND status = 'active'
		  AND holder_email = $3
		RETURNING id, slot_date, slot_time, kind, status, appointment_id,
		          holder_name, holder_email, expires_at, created_at, updated_at
	`, appt.Date.Time(), string(appt.Time), appt.Email, created.ID, appt.Name)

	slotBooking, err := r.scanSlotBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		// No hold of our own: claim the slot directly. Losing this insert
		// rolls back the appointment insert with the transaction.
		row = tx.QueryRow(ctx, `
			INSERT INTO slot_bookings
				(id, slot_date, slot_time, kind, status, appointment_id,
				 holder_name, holder_email, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, 'appointment', 'active', $4, $5, $6, NULL, now(), now())
			ON CONFLICT (slot_date, slot_time) WHERE status = 'active' DO NOTHING
			RETURNING id, slot_date, slot_time, kind, status, appointment_id,
			          holder_name, holder_email, expires_at, created_at, updated_at
		`, uuid.New(), appt.Date.Time(), string(appt.Time), created.ID, appt.Name, appt.Email)

		slotBooking, err = r.scanSlotBooking(row)
		if errors.Is(err, ErrBookingNotFound) {
			return nil, nil, ErrSlotTaken
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrSlotTaken
		}
		return nil, nil, fmt.Errorf("claim slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit confirm tx: %w", err)
	}
	return created, slotBooking, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, service, slot_date, slot_time, status, message, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return r.scanAppointment(row)
}

func (r *PgRepository) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slot_bookings
		SET status = 'released',
		    updated_at = now()
		WHERE kind = 'hold'
		  AND status = 'active'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev BookingEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
