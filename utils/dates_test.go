package utils

import (
	"testing"
	"time"
)

func TestDayKeyRoundTrip(t *testing.T) {
	key := DayKey(time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC))
	if key != "2025-06-15" {
		t.Fatalf("got %q", key)
	}
	parsed, err := ParseDayKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if DayKey(parsed) != key {
		t.Fatalf("round trip lost the day: %v", parsed)
	}
}

func TestAddDaysCrossesMonthAndYearBoundaries(t *testing.T) {
	if got := AddDays("2025-06-30", 1); got != "2025-07-01" {
		t.Fatalf("month boundary: %q", got)
	}
	if got := AddDays("2025-01-01", -1); got != "2024-12-31" {
		t.Fatalf("year boundary: %q", got)
	}
	if got := AddDays("not-a-date", 1); got != "not-a-date" {
		t.Fatalf("unparseable key mutated: %q", got)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween("2025-06-10", "2025-06-15"); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
	if got := DaysBetween("2025-06-15", "2025-06-10"); got != -5 {
		t.Fatalf("got %d, want -5", got)
	}
	if got := DaysBetween("bogus", "2025-06-10"); got != 0 {
		t.Fatalf("got %d for unparseable input, want 0", got)
	}
}

func TestSameMonth(t *testing.T) {
	if !SameMonth("2025-06-01", "2025-06-30") {
		t.Fatal("same month not detected")
	}
	if SameMonth("2025-06-30", "2025-07-01") {
		t.Fatal("different months reported equal")
	}
	if SameMonth("short", "2025-07-01") {
		t.Fatal("malformed key reported equal")
	}
}
