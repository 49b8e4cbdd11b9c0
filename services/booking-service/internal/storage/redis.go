package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix keeps every key in one hash slot so transactions work on a cluster.
const DefaultRedisPrefix = "{apptbook}"

const redisTxRetries = 5

// Redis is a Store for deployments that already run Redis and want shared state without
// Postgres. Each collection is one hash of JSON documents; the slots hash maps
// "date|HH:MM" to the id of the active booking holding it.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(name string) string {
	return r.prefix + ":" + name
}

type weeklyDoc struct {
	Day    int                `json:"day"`
	IsOpen bool               `json:"is_open"`
	Hours  availability.Hours `json:"hours,omitempty"`
}

type overrideDoc struct {
	Date   string             `json:"date"`
	IsOpen bool               `json:"is_open"`
	Reason string             `json:"reason,omitempty"`
	Hours  availability.Hours `json:"hours,omitempty"`
}

type blockedDoc struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

type bookingDoc struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	Phone     string                 `json:"phone,omitempty"`
	Date      string                 `json:"date"`
	Time      availability.TimeOfDay `json:"time"`
	Service   string                 `json:"service"`
	Status    model.Status           `json:"status"`
	Notes     string                 `json:"notes,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func toBookingDoc(b model.Booking) bookingDoc {
	return bookingDoc{
		ID: b.ID, Name: b.Name, Email: b.Email, Phone: b.Phone,
		Date: availability.FormatDate(b.Date), Time: b.Time, Service: b.Service,
		Status: b.Status, Notes: b.Notes, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (d bookingDoc) booking() (model.Booking, error) {
	date, err := availability.ParseDate(d.Date)
	if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{
		ID: d.ID, Name: d.Name, Email: d.Email, Phone: d.Phone,
		Date: date, Time: d.Time, Service: d.Service,
		Status: d.Status, Notes: d.Notes, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

func slotField(b model.Booking) string {
	return availability.FormatDate(b.Date) + "|" + b.Time.String()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) WeeklyRules(ctx context.Context) ([]availability.WeeklyRule, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key("weekly")).Result()
	if err != nil {
		return nil, err
	}
	return decodeWeekly(vals)
}

func (r *Redis) DateOverrides(ctx context.Context, from, to time.Time) ([]availability.DateOverride, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key("overrides")).Result()
	if err != nil {
		return nil, err
	}
	return decodeOverrides(vals, from, to)
}

func (r *Redis) BlockedDates(ctx context.Context, from, to time.Time) ([]availability.BlockedDate, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key("blocked")).Result()
	if err != nil {
		return nil, err
	}
	return decodeBlocked(vals, from, to)
}

// Schedule reads the three hashes inside one MULTI/EXEC so no write lands between them.
func (r *Redis) Schedule(ctx context.Context, from, to time.Time) (availability.Schedule, error) {
	var weekly, overrides, blocked *redis.MapStringStringCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		weekly = pipe.HGetAll(ctx, r.key("weekly"))
		overrides = pipe.HGetAll(ctx, r.key("overrides"))
		blocked = pipe.HGetAll(ctx, r.key("blocked"))
		return nil
	})
	if err != nil {
		return availability.Schedule{}, err
	}

	var sched availability.Schedule
	if sched.Weekly, err = decodeWeekly(weekly.Val()); err != nil {
		return availability.Schedule{}, err
	}
	if sched.Overrides, err = decodeOverrides(overrides.Val(), from, to); err != nil {
		return availability.Schedule{}, err
	}
	if sched.Blocked, err = decodeBlocked(blocked.Val(), from, to); err != nil {
		return availability.Schedule{}, err
	}
	return sched, nil
}

func decodeWeekly(vals map[string]string) ([]availability.WeeklyRule, error) {
	out := make([]availability.WeeklyRule, 0, len(vals))
	for field, raw := range vals {
		var d weeklyDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("weekly rule %s: %w", field, err)
		}
		out = append(out, availability.WeeklyRule{Day: time.Weekday(d.Day), IsOpen: d.IsOpen, Hours: d.Hours})
	}
	sortWeekly(out)
	return out, nil
}

func decodeOverrides(vals map[string]string, from, to time.Time) ([]availability.DateOverride, error) {
	out := []availability.DateOverride{}
	for field, raw := range vals {
		var d overrideDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("override %s: %w", field, err)
		}
		date, err := availability.ParseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", field, err)
		}
		if inRange(date, from, to) {
			out = append(out, availability.DateOverride{Date: date, IsOpen: d.IsOpen, Reason: d.Reason, Hours: d.Hours})
		}
	}
	sortOverrides(out)
	return out, nil
}

func decodeBlocked(vals map[string]string, from, to time.Time) ([]availability.BlockedDate, error) {
	out := []availability.BlockedDate{}
	for field, raw := range vals {
		var d blockedDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("blocked date %s: %w", field, err)
		}
		date, err := availability.ParseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("blocked date %s: %w", field, err)
		}
		if inRange(date, from, to) {
			out = append(out, availability.BlockedDate{Date: date, Reason: d.Reason})
		}
	}
	sortBlocked(out)
	return out, nil
}

func (r *Redis) ReplaceSchedule(ctx context.Context, weekly []availability.WeeklyRule, overrides []availability.DateOverride) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key("weekly"), r.key("overrides"))
		if err := r.queueWeekly(ctx, pipe, weekly); err != nil {
			return err
		}
		for _, o := range overrides {
			if err := r.queueOverride(ctx, pipe, o); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (r *Redis) queueWeekly(ctx context.Context, pipe redis.Pipeliner, rules []availability.WeeklyRule) error {
	for _, rule := range rules {
		raw, err := json.Marshal(weeklyDoc{Day: int(rule.Day), IsOpen: rule.IsOpen, Hours: rule.Hours})
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.key("weekly"), strconv.Itoa(int(rule.Day)), raw)
	}
	return nil
}

func (r *Redis) queueOverride(ctx context.Context, pipe redis.Pipeliner, o availability.DateOverride) error {
	date := availability.FormatDate(o.Date)
	raw, err := json.Marshal(overrideDoc{Date: date, IsOpen: o.IsOpen, Reason: o.Reason, Hours: o.Hours})
	if err != nil {
		return err
	}
	pipe.HSet(ctx, r.key("overrides"), date, raw)
	return nil
}

func (r *Redis) queueBlocked(ctx context.Context, pipe redis.Pipeliner, b availability.BlockedDate) error {
	date := availability.FormatDate(b.Date)
	raw, err := json.Marshal(blockedDoc{Date: date, Reason: b.Reason})
	if err != nil {
		return err
	}
	pipe.HSet(ctx, r.key("blocked"), date, raw)
	return nil
}

func (r *Redis) UpsertOverride(ctx context.Context, o availability.DateOverride) error {
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		return r.queueOverride(ctx, pipe, o)
	})
	return err
}

func (r *Redis) DeleteOverride(ctx context.Context, date time.Time) error {
	return r.hdelExisting(ctx, r.key("overrides"), availability.FormatDate(date))
}

func (r *Redis) UpsertBlockedDate(ctx context.Context, b availability.BlockedDate) error {
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		return r.queueBlocked(ctx, pipe, b)
	})
	return err
}

func (r *Redis) DeleteBlockedDate(ctx context.Context, date time.Time) error {
	return r.hdelExisting(ctx, r.key("blocked"), availability.FormatDate(date))
}

func (r *Redis) hdelExisting(ctx context.Context, key, field string) error {
	n, err := r.rdb.HDel(ctx, key, field).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneBefore relies on the "2006-01-02" field names sorting chronologically.
func (r *Redis) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := availability.FormatDate(cutoff)
	var removed int64
	for _, name := range []string{"overrides", "blocked"} {
		fields, err := r.rdb.HKeys(ctx, r.key(name)).Result()
		if err != nil {
			return removed, err
		}
		var stale []string
		for _, f := range fields {
			if f < limit {
				stale = append(stale, f)
			}
		}
		if len(stale) == 0 {
			continue
		}
		n, err := r.rdb.HDel(ctx, r.key(name), stale...).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (r *Redis) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	all, err := r.allBookings(ctx)
	if err != nil {
		return nil, err
	}
	return filterBookings(all, f), nil
}

// BookingStats decodes a single HGETALL, which Redis serves atomically.
func (r *Redis) BookingStats(ctx context.Context, q StatsQuery) (BookingStats, error) {
	all, err := r.allBookings(ctx)
	if err != nil {
		return BookingStats{}, err
	}
	return statsOf(all, q), nil
}

func (r *Redis) BookingsOn(ctx context.Context, date time.Time) ([]model.Booking, error) {
	return r.ListBookings(ctx, BookingFilter{Date: date, Limit: MaxListLimit})
}

func (r *Redis) allBookings(ctx context.Context) ([]model.Booking, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key("bookings")).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(vals))
	for id, raw := range vals {
		b, err := decodeBooking(raw)
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", id, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func decodeBooking(raw string) (model.Booking, error) {
	var d bookingDoc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return model.Booking{}, err
	}
	return d.booking()
}

func (r *Redis) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	raw, err := r.rdb.HGet(ctx, r.key("bookings"), id).Result()
	if errors.Is(err, redis.Nil) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	return decodeBooking(raw)
}

func (r *Redis) CreateBooking(ctx context.Context, b model.Booking) error {
	return r.writeBooking(ctx, b, true)
}

func (r *Redis) UpdateBooking(ctx context.Context, b model.Booking) error {
	return r.writeBooking(ctx, b, false)
}

// writeBooking stores b under WATCH so a concurrent writer taking the same slot aborts
// one of the transactions; the loser re-reads and sees the conflict.
func (r *Redis) writeBooking(ctx context.Context, b model.Booking, create bool) error {
	bookingsKey, slotsKey := r.key("bookings"), r.key("slots")
	raw, err := json.Marshal(toBookingDoc(b))
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		prevRaw, err := tx.HGet(ctx, bookingsKey, b.ID).Result()
		exists := err == nil
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		switch {
		case create && exists:
			return ErrConflict
		case !create && !exists:
			return ErrNotFound
		}

		slot := slotField(b)
		if b.Active() {
			holder, err := tx.HGet(ctx, slotsKey, slot).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if holder != "" && holder != b.ID {
				return ErrConflict
			}
		}

		var prevSlot string
		if exists {
			prev, err := decodeBooking(prevRaw)
			if err != nil {
				return err
			}
			if prev.Active() {
				prevSlot = slotField(prev)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prevSlot != "" && (prevSlot != slot || !b.Active()) {
				pipe.HDel(ctx, slotsKey, prevSlot)
			}
			if b.Active() {
				pipe.HSet(ctx, slotsKey, slot, b.ID)
			}
			pipe.HSet(ctx, bookingsKey, b.ID, raw)
			return nil
		})
		return err
	}

	return r.retryWatch(ctx, txf, bookingsKey, slotsKey)
}

func (r *Redis) DeleteBooking(ctx context.Context, id string) (model.Booking, error) {
	bookingsKey, slotsKey := r.key("bookings"), r.key("slots")
	var deleted model.Booking

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, bookingsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		b, err := decodeBooking(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, bookingsKey, id)
			if b.Active() {
				pipe.HDel(ctx, slotsKey, slotField(b))
			}
			return nil
		})
		if err == nil {
			deleted = b
		}
		return err
	}

	if err := r.retryWatch(ctx, txf, bookingsKey, slotsKey); err != nil {
		return model.Booking{}, err
	}
	return deleted, nil
}

func (r *Redis) retryWatch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisTxRetries; i++ {
		err := r.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis transaction: %w", redis.TxFailedErr)
}

func (r *Redis) Settings(ctx context.Context) (model.Settings, error) {
	raw, err := r.rdb.Get(ctx, r.key("settings")).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (r *Redis) SaveSettings(ctx context.Context, s model.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key("settings"), raw, 0).Err()
}

func (r *Redis) Reset(ctx context.Context, snap Snapshot) error {
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key("weekly"), r.key("overrides"), r.key("blocked"), r.key("bookings"), r.key("slots"))
		if err := r.queueWeekly(ctx, pipe, snap.Weekly); err != nil {
			return err
		}
		for _, o := range snap.Overrides {
			if err := r.queueOverride(ctx, pipe, o); err != nil {
				return err
			}
		}
		for _, b := range snap.Blocked {
			if err := r.queueBlocked(ctx, pipe, b); err != nil {
				return err
			}
		}
		for _, b := range snap.Bookings {
			raw, err := json.Marshal(toBookingDoc(b))
			if err != nil {
				return err
			}
			pipe.HSet(ctx, r.key("bookings"), b.ID, raw)
			if b.Active() {
				pipe.HSet(ctx, r.key("slots"), slotField(b), b.ID)
			}
		}
		pipe.Set(ctx, r.key("settings"), settings, 0)
		return nil
	})
	return err
}

var _ Store = (*Redis)(nil)
