package availability

import (
	"fmt"
	"slices"
)

// GenerateSlots emits start, start+step, ... while the current time is before end, where
// step is durationMinutes+bufferMinutes. The interval is half-open, so end itself is never
// emitted, and start >= end yields an empty list.
func GenerateSlots(start, end TimeOfDay, durationMinutes, bufferMinutes int) ([]TimeOfDay, error) {
	if durationMinutes <= 0 {
		return nil, invalid("slot_duration_minutes", "must be positive (got %d)", durationMinutes)
	}
	if bufferMinutes < 0 {
		return nil, invalid("buffer_minutes", "must not be negative (got %d)", bufferMinutes)
	}
	if !start.Valid() {
		return nil, invalid("start_time", "out of range")
	}
	if !end.Valid() {
		return nil, invalid("end_time", "out of range")
	}

	slots := []TimeOfDay{}
	step := TimeOfDay(durationMinutes + bufferMinutes)
	for t := start; t < end; t += step {
		slots = append(slots, t)
	}
	return slots, nil
}

// Window is the generative slot form: slots every SlotMinutes+BufferMinutes in [Start, End).
type Window struct {
	Start         TimeOfDay `json:"start_time"`
	End           TimeOfDay `json:"end_time"`
	SlotMinutes   int       `json:"slot_duration_minutes"`
	BufferMinutes int       `json:"buffer_minutes"`
}

func (w Window) Validate() error {
	_, err := w.Slots()
	return err
}

func (w Window) Slots() ([]TimeOfDay, error) {
	return GenerateSlots(w.Start, w.End, w.SlotMinutes, w.BufferMinutes)
}

// Hours is the canonical slot configuration of a day: one or more windows whose slots are
// merged in ascending order without duplicates.
type Hours []Window

func (h Hours) Validate() error {
	for i, w := range h {
		if err := w.Validate(); err != nil {
			return prefixField(fmt.Sprintf("windows[%d]", i), err)
		}
	}
	return nil
}

// Slots expands every window and returns the sorted, de-duplicated union.
func (h Hours) Slots() ([]TimeOfDay, error) {
	out := []TimeOfDay{}
	for i, w := range h {
		s, err := w.Slots()
		if err != nil {
			return nil, prefixField(fmt.Sprintf("windows[%d]", i), err)
		}
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// HoursFromTimes converts an explicit slot list into Hours without losing or adding slots.
// Consecutive times with equal spacing collapse into one window stepping by that spacing.
// A time that starts no run becomes a one-minute window. fallbackMinutes is recorded as the
// slot length of such windows (60 when not positive).
func HoursFromTimes(times []TimeOfDay, fallbackMinutes int) (Hours, error) {
	if fallbackMinutes <= 0 {
		fallbackMinutes = 60
	}
	ts := slices.Clone(times)
	for i, t := range ts {
		if t < 0 || t >= EndOfDay {
			return nil, invalid(fmt.Sprintf("slots[%d]", i), "time out of range")
		}
	}
	slices.Sort(ts)
	ts = slices.Compact(ts)

	hours := Hours{}
	for i := 0; i < len(ts); {
		if i == len(ts)-1 {
			hours = append(hours, Window{Start: ts[i], End: ts[i] + 1, SlotMinutes: fallbackMinutes})
			break
		}
		step := ts[i+1] - ts[i]
		j := i + 1
		for j+1 < len(ts) && ts[j+1]-ts[j] == step {
			j++
		}
		end := ts[j] + step
		if j+1 < len(ts) && ts[j+1] < end {
			end = ts[j+1]
		}
		if end > EndOfDay {
			end = EndOfDay
		}
		hours = append(hours, Window{Start: ts[i], End: end, SlotMinutes: int(step)})
		i = j + 1
	}
	return hours, nil
}

// ParseTimes parses a legacy list of "HH:MM" strings.
func ParseTimes(raw []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(raw))
	for i, s := range raw {
		t, err := ParseSlotTime(s)
		if err != nil {
			return nil, prefixField(fmt.Sprintf("slots[%d]", i), err)
		}
		out = append(out, t)
	}
	return out, nil
}

// FormatTimes renders slots as "HH:MM" strings; nil becomes an empty list.
func FormatTimes(ts []TimeOfDay) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return out
}
