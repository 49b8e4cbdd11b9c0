package availability

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "9:00", want: 540},
		{in: " 16:45 ", want: 16*60 + 45},
		{in: "00:00", want: 0},
		{in: "24:00", want: EndOfDay},
		{in: "24:01", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "9:5", wantErr: true},
		{in: "+9:00", wantErr: true},
		{in: "0900", wantErr: true},
		{in: "", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			}
			if !IsValidationError(err) {
				t.Fatalf("ParseTimeOfDay(%q): expected ValidationError, got %T", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTimeOfDay(%q): got %d want %d", tc.in, got, tc.want)
		}
	}

	if _, err := ParseSlotTime("24:00"); err == nil {
		t.Fatal("24:00 must not be accepted as a slot time")
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	w := Window{Start: 540, End: 1020, SlotMinutes: 30, BufferMinutes: 15}
	b, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"start_time":"09:00","end_time":"17:00","slot_duration_minutes":30,"buffer_minutes":15}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}

	var back Window
	if err := json.Unmarshal([]byte(`{"start_time":"8:30","end_time":"12:00","slot_duration_minutes":30}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Start != 510 || back.End != 720 {
		t.Fatalf("unexpected window %+v", back)
	}

	if err := json.Unmarshal([]byte(`{"start_time":"nine"}`), &back); err == nil {
		t.Fatal("expected error for malformed time")
	}
}

func TestParseDateAndWeekday(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Monday || d.Location() != time.UTC {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("2026-02-30"); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for impossible date, got %v", err)
	}

	for _, name := range []string{"Monday", "monday", "MON"} {
		wd, err := ParseWeekday(name)
		if err != nil || wd != time.Monday {
			t.Fatalf("ParseWeekday(%q) = %v, %v", name, wd, err)
		}
	}
	if _, err := ParseWeekday("Funday"); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for unknown weekday, got %v", err)
	}
	if WeekdayName(time.Sunday) != "sunday" {
		t.Fatalf("unexpected weekday name %q", WeekdayName(time.Sunday))
	}

	local := time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := FormatDate(DateOf(local)); got != "2026-03-02" {
		t.Fatalf("DateOf must use the wall-clock day, got %s", got)
	}
}
