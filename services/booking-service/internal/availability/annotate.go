package availability

import "time"

// Bookable is anything that can occupy a slot.
type Bookable interface {
	SlotKey() (date time.Time, at TimeOfDay)
	Active() bool
}

// SlotStatus is a slot with its occupying booking, if any.
type SlotStatus[B Bookable] struct {
	Time     TimeOfDay
	IsBooked bool
	Booking  *B
}

// AnnotateWithBookings marks each slot booked when an active booking holds the same date
// and time. With several matches the first one in bookings wins.
func AnnotateWithBookings[B Bookable](date time.Time, slots []TimeOfDay, bookings []B) []SlotStatus[B] {
	taken := make(map[TimeOfDay]int, len(bookings))
	for i, b := range bookings {
		if !b.Active() {
			continue
		}
		d, at := b.SlotKey()
		if !SameDate(d, date) {
			continue
		}
		if _, ok := taken[at]; !ok {
			taken[at] = i
		}
	}

	out := make([]SlotStatus[B], 0, len(slots))
	for _, s := range slots {
		st := SlotStatus[B]{Time: s}
		if i, ok := taken[s]; ok {
			b := bookings[i]
			st.IsBooked = true
			st.Booking = &b
		}
		out = append(out, st)
	}
	return out
}
