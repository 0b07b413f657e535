package planner

import "testing"

func TestWorkingDatesSkipsWeekends(t *testing.T) {
	dates, err := WorkingDates("2026-02")
	if err != nil {
		t.Fatalf("working dates: %v", err)
	}
	// February 2026 starts on a Sunday and has 20 weekdays
	if len(dates) != 20 {
		t.Fatalf("expected 20 working days, got %d", len(dates))
	}
	if dates[0] != "2026-02-02" {
		t.Fatalf("expected first working day 2026-02-02, got %s", dates[0])
	}
	if dates[len(dates)-1] != "2026-02-27" {
		t.Fatalf("expected last working day 2026-02-27, got %s", dates[len(dates)-1])
	}
}

func TestWorkingDatesInvalidMonth(t *testing.T) {
	if _, err := WorkingDates("2026-13"); err == nil {
		t.Fatalf("expected error for invalid month")
	}
	if _, err := WorkingDates("march"); err == nil {
		t.Fatalf("expected error for unparseable month")
	}
}
