package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-05")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.January || d.Day() != 5 {
		t.Errorf("ParseDate = %v, want 2024-01-05", d)
	}
	if got := d.String(); got != "2024-01-05" {
		t.Errorf("String() = %q, want %q", got, "2024-01-05")
	}
	if got := d.Compact(); got != "20240105" {
		t.Errorf("Compact() = %q, want %q", got, "20240105")
	}

	if _, err := ParseDate("2024/01/05"); err == nil {
		t.Error("ParseDate accepted slash-separated input")
	}
	if _, err := ParseDate(""); err == nil {
		t.Error("ParseDate accepted empty input")
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2024, time.January, 5)
	b := NewDate(2024, time.January, 7)

	if !a.Before(b) || b.Before(a) {
		t.Error("Before ordering wrong")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After ordering wrong")
	}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("Compare ordering wrong")
	}
	if a != NewDate(2024, time.January, 5) {
		t.Error("equal dates are not ==")
	}
}

func TestDateNormalization(t *testing.T) {
	// Day overflow rolls into the next month.
	d := NewDate(2024, time.January, 32)
	if want := NewDate(2024, time.February, 1); d != want {
		t.Errorf("NewDate(2024, 1, 32) = %v, want %v", d, want)
	}

	if got := NewDate(2024, time.December, 30).AddDays(3); got != NewDate(2025, time.January, 2) {
		t.Errorf("AddDays across year = %v, want 2025-01-02", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := NewDate(2024, time.January, 1)
	b := NewDate(2024, time.February, 10)

	if got := DaysBetween(a, b); got != 40 {
		t.Errorf("DaysBetween = %d, want 40", got)
	}
	if got := DaysBetween(b, a); got != -40 {
		t.Errorf("DaysBetween reversed = %d, want -40", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("DaysBetween same day = %d, want 0", got)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, time.March, 8)

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `"2024-03-08"` {
		t.Errorf("Marshal = %s, want %q", b, `"2024-03-08"`)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back, d)
	}
}

func TestWeeklyDates(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		end    string
		anchor time.Weekday
		want   []string
	}{
		{
			// 2024-01-05 is a Friday.
			name:   "window starting mid-week",
			start:  "2024-01-01",
			end:    "2024-01-20",
			anchor: time.Friday,
			want:   []string{"2024-01-05", "2024-01-12", "2024-01-19"},
		},
		{
			name:   "window starting on the anchor",
			start:  "2024-01-05",
			end:    "2024-01-12",
			anchor: time.Friday,
			want:   []string{"2024-01-05", "2024-01-12"},
		},
		{
			name:   "window too short to contain an anchor",
			start:  "2024-01-06",
			end:    "2024-01-08",
			anchor: time.Friday,
			want:   nil,
		},
		{
			name:   "inverted window",
			start:  "2024-01-20",
			end:    "2024-01-01",
			anchor: time.Friday,
			want:   nil,
		},
		{
			// 2024-01-01 is a Monday.
			name:   "monday anchor",
			start:  "2024-01-01",
			end:    "2024-01-15",
			anchor: time.Monday,
			want:   []string{"2024-01-01", "2024-01-08", "2024-01-15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseDate(tt.start)
			if err != nil {
				t.Fatal(err)
			}
			end, err := ParseDate(tt.end)
			if err != nil {
				t.Fatal(err)
			}

			got := WeeklyDates(start, end, tt.anchor)
			if len(got) != len(tt.want) {
				t.Fatalf("WeeklyDates = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Errorf("WeeklyDates[%d] = %v, want %s", i, got[i], tt.want[i])
				}
				if got[i].Weekday() != tt.anchor {
					t.Errorf("WeeklyDates[%d] falls on %v, want %v", i, got[i].Weekday(), tt.anchor)
				}
			}
		})
	}
}
