package availability

import (
	"fmt"
	"time"
)

// MaxRangeDays bounds ListAvailableDates.
const MaxRangeDays = 731

// WeeklyRule is the recurring schedule of one weekday.
type WeeklyRule struct {
	Day    time.Weekday
	IsOpen bool
	Hours  Hours
}

// DateOverride replaces the weekly rule for one calendar date. It never merges with it.
type DateOverride struct {
	Date   time.Time
	IsOpen bool
	Reason string
	Hours  Hours
}

// BlockedDate closes a calendar date regardless of any rule or override.
type BlockedDate struct {
	Date   time.Time
	Reason string
}

// Source names the configuration layer that decided a day.
type Source string

const (
	SourceBlocked      Source = "blocked"
	SourceOverride     Source = "override"
	SourceWeekly       Source = "weekly"
	SourceUnconfigured Source = "unconfigured"
)

type DayAvailability struct {
	Date   time.Time
	IsOpen bool
	Slots  []TimeOfDay
	Reason string
	Source Source
}

// Schedule is a consistent snapshot of every configuration layer.
type Schedule struct {
	Weekly    []WeeklyRule
	Overrides []DateOverride
	Blocked   []BlockedDate
}

// ResolveDay computes the availability of date. Precedence is blocked date, then date
// override, then weekly rule; a date none of them covers is closed.
func ResolveDay(date time.Time, weekly []WeeklyRule, overrides []DateOverride, blocked []BlockedDate) (DayAvailability, error) {
	return newIndex(weekly, overrides, blocked).resolve(date)
}

// ListAvailableDates returns every date in [from, to] that is open with at least one slot.
func ListAvailableDates(from, to time.Time, weekly []WeeklyRule, overrides []DateOverride, blocked []BlockedDate) ([]time.Time, error) {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return nil, invalid("to", "must not be before from")
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > MaxRangeDays {
		return nil, invalid("to", "range exceeds %d days", MaxRangeDays)
	}

	ix := newIndex(weekly, overrides, blocked)
	dates := []time.Time{}
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		day, err := ix.resolve(d)
		if err != nil {
			return nil, err
		}
		if day.IsOpen && len(day.Slots) > 0 {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func (s Schedule) Day(date time.Time) (DayAvailability, error) {
	return ResolveDay(date, s.Weekly, s.Overrides, s.Blocked)
}

func (s Schedule) AvailableDates(from, to time.Time) ([]time.Time, error) {
	return ListAvailableDates(from, to, s.Weekly, s.Overrides, s.Blocked)
}

// Validate checks every layer of the snapshot.
func (s Schedule) Validate() error {
	if err := ValidateWeekly(s.Weekly); err != nil {
		return err
	}
	if err := ValidateOverrides(s.Overrides); err != nil {
		return err
	}
	return ValidateBlocked(s.Blocked)
}

// ValidateWeekly enforces at most one rule per weekday and valid hours.
func ValidateWeekly(rules []WeeklyRule) error {
	seen := map[time.Weekday]bool{}
	for i, r := range rules {
		field := fmt.Sprintf("weekly[%d]", i)
		if r.Day < time.Sunday || r.Day > time.Saturday {
			return invalid(field+".day", "unknown weekday %d", int(r.Day))
		}
		if seen[r.Day] {
			return invalid(field+".day", "duplicate rule for %s", r.Day.String())
		}
		seen[r.Day] = true
		if err := r.Hours.Validate(); err != nil {
			return prefixField(field, err)
		}
	}
	return nil
}

// ValidateOverrides enforces at most one override per date and valid hours.
func ValidateOverrides(overrides []DateOverride) error {
	seen := map[string]bool{}
	for i, o := range overrides {
		field := fmt.Sprintf("overrides[%d]", i)
		if o.Date.IsZero() {
			return invalid(field+".date", "is required")
		}
		key := FormatDate(o.Date)
		if seen[key] {
			return invalid(field+".date", "duplicate override for %s", key)
		}
		seen[key] = true
		if err := o.Hours.Validate(); err != nil {
			return prefixField(field, err)
		}
	}
	return nil
}

func ValidateBlocked(blocked []BlockedDate) error {
	seen := map[string]bool{}
	for i, b := range blocked {
		field := fmt.Sprintf("blocked_dates[%d]", i)
		if b.Date.IsZero() {
			return invalid(field+".date", "is required")
		}
		key := FormatDate(b.Date)
		if seen[key] {
			return invalid(field+".date", "duplicate blocked date %s", key)
		}
		seen[key] = true
	}
	return nil
}

type index struct {
	weekly    map[time.Weekday]WeeklyRule
	overrides map[string]DateOverride
	blocked   map[string]BlockedDate
}

// newIndex keys every layer; when a layer repeats a key the first entry wins.
func newIndex(weekly []WeeklyRule, overrides []DateOverride, blocked []BlockedDate) index {
	ix := index{
		weekly:    make(map[time.Weekday]WeeklyRule, len(weekly)),
		overrides: make(map[string]DateOverride, len(overrides)),
		blocked:   make(map[string]BlockedDate, len(blocked)),
	}
	for _, r := range weekly {
		if _, ok := ix.weekly[r.Day]; !ok {
			ix.weekly[r.Day] = r
		}
	}
	for _, o := range overrides {
		key := FormatDate(o.Date)
		if _, ok := ix.overrides[key]; !ok {
			ix.overrides[key] = o
		}
	}
	for _, b := range blocked {
		key := FormatDate(b.Date)
		if _, ok := ix.blocked[key]; !ok {
			ix.blocked[key] = b
		}
	}
	return ix
}

func (ix index) resolve(date time.Time) (DayAvailability, error) {
	d := DateOf(date)
	key := FormatDate(d)

	if b, ok := ix.blocked[key]; ok {
		return closed(d, SourceBlocked, b.Reason), nil
	}
	if o, ok := ix.overrides[key]; ok {
		return open(d, SourceOverride, o.IsOpen, o.Reason, o.Hours)
	}
	if r, ok := ix.weekly[d.Weekday()]; ok {
		reason := ""
		if !r.IsOpen {
			reason = "closed on " + r.Day.String()
		}
		return open(d, SourceWeekly, r.IsOpen, reason, r.Hours)
	}
	return closed(d, SourceUnconfigured, "no schedule configured"), nil
}

func closed(d time.Time, src Source, reason string) DayAvailability {
	return DayAvailability{Date: d, IsOpen: false, Slots: []TimeOfDay{}, Reason: reason, Source: src}
}

func open(d time.Time, src Source, isOpen bool, reason string, hours Hours) (DayAvailability, error) {
	if !isOpen {
		return closed(d, src, reason), nil
	}
	slots, err := hours.Slots()
	if err != nil {
		return DayAvailability{}, fmt.Errorf("%s %s: %w", src, FormatDate(d), err)
	}
	return DayAvailability{Date: d, IsOpen: true, Slots: slots, Reason: reason, Source: src}, nil
}
