package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
)

const bookingColumns = `id::text, customer_name, customer_email, customer_phone, date, time_minute,
	service, status, notes, created_at, updated_at`

func (p *Postgres) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.Date.IsZero() {
		where = append(where, "date = "+arg(availability.DateOf(f.Date)))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= "+arg(availability.DateOf(f.From)))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= "+arg(availability.DateOf(f.To)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, time_minute, created_at LIMIT ` + arg(f.limit())

	return collectBookings(p.pool.Query(ctx, query, args...))
}

func (p *Postgres) BookingStats(ctx context.Context, q StatsQuery) (BookingStats, error) {
	st := BookingStats{Window: []model.Booking{}, Recent: []model.Booking{}}
	err := p.pool.ReadTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT
				count(*) FILTER (WHERE status = 'pending'),
				count(*) FILTER (WHERE status = 'confirmed'),
				count(*) FILTER (WHERE status = 'cancelled'),
				count(*) FILTER (WHERE status = 'confirmed' AND ($1::date IS NOT NULL AND date < $1))
			FROM bookings
		`, nullableDate(q.From)).Scan(
			&st.Totals.Pending,
			&st.Totals.Confirmed,
			&st.Totals.Cancelled,
			&st.Totals.ConfirmedBefore,
		)
		if err != nil {
			return err
		}

		if st.Window, err = collectBookings(tx.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)
			ORDER BY date, time_minute, created_at
		`, nullableDate(q.From), nullableDate(q.To))); err != nil {
			return err
		}
		if q.Recent <= 0 {
			return nil
		}
		st.Recent, err = collectBookings(tx.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			ORDER BY updated_at DESC, id
			LIMIT $1
		`, q.Recent))
		return err
	})
	if err != nil {
		return BookingStats{}, err
	}
	return st, nil
}

func collectBookings(rows pgx.Rows, err error) ([]model.Booking, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) BookingsOn(ctx context.Context, date time.Time) ([]model.Booking, error) {
	return p.ListBookings(ctx, BookingFilter{Date: date, Limit: MaxListLimit})
}

func (p *Postgres) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, ErrNotFound
	}
	b, err := scanBooking(p.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return model.Booking{}, mapWriteErr(err)
	}
	return b, nil
}

func (p *Postgres) CreateBooking(ctx context.Context, b model.Booking) error {
	if _, err := uuid.Parse(b.ID); err != nil {
		return fmt.Errorf("booking id %q is not a uuid: %w", b.ID, err)
	}
	evt, err := outbox.ForBooking(outbox.BookingCreated, b, "", p.now())
	if err != nil {
		return err
	}
	err = p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	return mapWriteErr(err)
}

func (p *Postgres) UpdateBooking(ctx context.Context, b model.Booking) error {
	if _, err := uuid.Parse(b.ID); err != nil {
		return ErrNotFound
	}
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		prev, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, b.ID))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET customer_name = $2,
				customer_email = $3,
				customer_phone = $4,
				date = $5,
				time_minute = $6,
				service = $7,
				status = $8,
				notes = $9,
				updated_at = $10
			WHERE id = $1
		`, b.ID, b.Name, b.Email, b.Phone, availability.DateOf(b.Date), int16(b.Time), b.Service, string(b.Status), b.Notes, b.UpdatedAt)
		if err != nil {
			return err
		}
		events, err := outbox.BookingChanges(prev, b, p.now())
		if err != nil {
			return err
		}
		for _, evt := range events {
			if err := p.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	return mapWriteErr(err)
}

func (p *Postgres) DeleteBooking(ctx context.Context, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, ErrNotFound
	}
	var deleted model.Booking
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `DELETE FROM bookings WHERE id = $1 RETURNING `+bookingColumns, id))
		if err != nil {
			return err
		}
		evt, err := outbox.ForBooking(outbox.BookingDeleted, b, "", p.now())
		if err != nil {
			return err
		}
		deleted = b
		return p.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Booking{}, mapWriteErr(err)
	}
	return deleted, nil
}

func insertBooking(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings
			(id, customer_name, customer_email, customer_phone, date, time_minute, service, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.Name, b.Email, b.Phone, availability.DateOf(b.Date), int16(b.Time), b.Service, string(b.Status), b.Notes,
		b.CreatedAt, b.UpdatedAt)
	return err
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b      model.Booking
		minute int16
		status string
	)
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Email,
		&b.Phone,
		&b.Date,
		&minute,
		&b.Service,
		&status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Date = availability.DateOf(b.Date)
	b.Time = availability.TimeOfDay(minute)
	b.Status = model.Status(status)
	return b, nil
}
