package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
)

// Postgres is the durable Store. Booking and schedule mutations record their outbox
// events in the same transaction.
type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
	now    func() time.Time
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository) *Postgres {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &Postgres{pool: pool, outbox: outboxRepo, now: time.Now}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return db.ReadyCheck(p.pool)(ctx)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *Postgres) WeeklyRules(ctx context.Context) ([]availability.WeeklyRule, error) {
	return queryWeekly(ctx, p.pool)
}

func (p *Postgres) DateOverrides(ctx context.Context, from, to time.Time) ([]availability.DateOverride, error) {
	return queryOverrides(ctx, p.pool, from, to)
}

func (p *Postgres) BlockedDates(ctx context.Context, from, to time.Time) ([]availability.BlockedDate, error) {
	return queryBlocked(ctx, p.pool, from, to)
}

func (p *Postgres) Schedule(ctx context.Context, from, to time.Time) (availability.Schedule, error) {
	var sched availability.Schedule
	err := p.pool.ReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		if sched.Weekly, err = queryWeekly(ctx, tx); err != nil {
			return err
		}
		if sched.Overrides, err = queryOverrides(ctx, tx, from, to); err != nil {
			return err
		}
		sched.Blocked, err = queryBlocked(ctx, tx, from, to)
		return err
	})
	if err != nil {
		return availability.Schedule{}, err
	}
	return sched, nil
}

func queryWeekly(ctx context.Context, q querier) ([]availability.WeeklyRule, error) {
	rows, err := q.Query(ctx, `
		SELECT day_of_week, is_open, hours
		FROM weekly_rules
		ORDER BY day_of_week
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []availability.WeeklyRule{}
	for rows.Next() {
		var (
			day   int16
			rule  availability.WeeklyRule
			hours []byte
		)
		if err := rows.Scan(&day, &rule.IsOpen, &hours); err != nil {
			return nil, err
		}
		rule.Day = time.Weekday(day)
		if rule.Hours, err = decodeHours(hours); err != nil {
			return nil, fmt.Errorf("weekly rule %s: %w", rule.Day, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func queryOverrides(ctx context.Context, q querier, from, to time.Time) ([]availability.DateOverride, error) {
	rows, err := q.Query(ctx, `
		SELECT date, is_open, reason, hours
		FROM date_overrides
		WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)
		ORDER BY date
	`, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []availability.DateOverride{}
	for rows.Next() {
		var (
			o     availability.DateOverride
			hours []byte
		)
		if err := rows.Scan(&o.Date, &o.IsOpen, &o.Reason, &hours); err != nil {
			return nil, err
		}
		o.Date = availability.DateOf(o.Date)
		if o.Hours, err = decodeHours(hours); err != nil {
			return nil, fmt.Errorf("override %s: %w", availability.FormatDate(o.Date), err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func queryBlocked(ctx context.Context, q querier, from, to time.Time) ([]availability.BlockedDate, error) {
	rows, err := q.Query(ctx, `
		SELECT date, reason
		FROM blocked_dates
		WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)
		ORDER BY date
	`, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []availability.BlockedDate{}
	for rows.Next() {
		var b availability.BlockedDate
		if err := rows.Scan(&b.Date, &b.Reason); err != nil {
			return nil, err
		}
		b.Date = availability.DateOf(b.Date)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) ReplaceSchedule(ctx context.Context, weekly []availability.WeeklyRule, overrides []availability.DateOverride) error {
	evt, err := outbox.ScheduleReplaced(len(weekly), len(overrides))
	if err != nil {
		return err
	}
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM weekly_rules`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM date_overrides`); err != nil {
			return err
		}
		if err := insertWeekly(ctx, tx, weekly); err != nil {
			return err
		}
		for _, o := range overrides {
			if err := upsertOverride(ctx, tx, o); err != nil {
				return err
			}
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
}

func (p *Postgres) UpsertOverride(ctx context.Context, o availability.DateOverride) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		return upsertOverride(ctx, tx, o)
	})
}

func (p *Postgres) DeleteOverride(ctx context.Context, date time.Time) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM date_overrides WHERE date = $1`, availability.DateOf(date))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpsertBlockedDate(ctx context.Context, b availability.BlockedDate) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		return upsertBlocked(ctx, tx, b)
	})
}

func (p *Postgres) DeleteBlockedDate(ctx context.Context, date time.Time) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM blocked_dates WHERE date = $1`, availability.DateOf(date))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = availability.DateOf(cutoff)
	var removed int64
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM date_overrides WHERE date < $1`, cutoff)
		if err != nil {
			return err
		}
		removed += tag.RowsAffected()
		tag, err = tx.Exec(ctx, `DELETE FROM blocked_dates WHERE date < $1`, cutoff)
		if err != nil {
			return err
		}
		removed += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (p *Postgres) Settings(ctx context.Context) (model.Settings, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM business_settings WHERE id = 1`).Scan(&doc)
	if db.IsNoRows(err) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(doc, &s); err != nil {
		return model.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (p *Postgres) SaveSettings(ctx context.Context, s model.Settings) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		return saveSettings(ctx, tx, s)
	})
}

// Reset truncates every table and loads snap. The outbox is left alone.
func (p *Postgres) Reset(ctx context.Context, snap Snapshot) error {
	return p.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE weekly_rules, date_overrides, blocked_dates, bookings, business_settings`); err != nil {
			return err
		}
		if err := insertWeekly(ctx, tx, snap.Weekly); err != nil {
			return err
		}
		for _, o := range snap.Overrides {
			if err := upsertOverride(ctx, tx, o); err != nil {
				return err
			}
		}
		for _, b := range snap.Blocked {
			if err := upsertBlocked(ctx, tx, b); err != nil {
				return err
			}
		}
		for _, b := range snap.Bookings {
			if err := insertBooking(ctx, tx, b); err != nil {
				return err
			}
		}
		return saveSettings(ctx, tx, snap.Settings)
	})
}

func insertWeekly(ctx context.Context, tx pgx.Tx, rules []availability.WeeklyRule) error {
	for _, r := range rules {
		hours, err := encodeHours(r.Hours)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO weekly_rules (day_of_week, is_open, hours)
			VALUES ($1, $2, $3)
			ON CONFLICT (day_of_week) DO UPDATE
			SET is_open = EXCLUDED.is_open, hours = EXCLUDED.hours, updated_at = now()
		`, int16(r.Day), r.IsOpen, hours)
		if err != nil {
			return err
		}
	}
	return nil
}

func upsertOverride(ctx context.Context, tx pgx.Tx, o availability.DateOverride) error {
	hours, err := encodeHours(o.Hours)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO date_overrides (date, is_open, reason, hours)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE
		SET is_open = EXCLUDED.is_open, reason = EXCLUDED.reason, hours = EXCLUDED.hours, updated_at = now()
	`, availability.DateOf(o.Date), o.IsOpen, o.Reason, hours)
	return err
}

func upsertBlocked(ctx context.Context, tx pgx.Tx, b availability.BlockedDate) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO blocked_dates (date, reason)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET reason = EXCLUDED.reason
	`, availability.DateOf(b.Date), b.Reason)
	return err
}

func saveSettings(ctx context.Context, tx pgx.Tx, s model.Settings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO business_settings (id, doc)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, doc)
	return err
}

func encodeHours(h availability.Hours) ([]byte, error) {
	if h == nil {
		h = availability.Hours{}
	}
	return json.Marshal(h)
}

func decodeHours(raw []byte) (availability.Hours, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var h availability.Hours
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	return h, nil
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := availability.DateOf(t)
	return &d
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrConflict
	case db.IsNoRows(err):
		return ErrNotFound
	default:
		return err
	}
}

var _ Store = (*Postgres)(nil)
