package application

import (
	"testing"
	"time"
)

func mustTimeOfDay(t *testing.T, value string) *TimeOfDay {
	t.Helper()
	parsed, err := ParseTimeOfDay(value)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) failed: %v", value, err)
	}
	return &parsed
}

func TestOperatingHoursContains(t *testing.T) {
	t.Parallel()

	day := OperatingHours{Open: mustTimeOfDay(t, "08:00"), Close: mustTimeOfDay(t, "20:00")}
	night := OperatingHours{Open: mustTimeOfDay(t, "22:00"), Close: mustTimeOfDay(t, "06:00")}
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 1, 2, hour, minute, 30, 0, time.UTC)
	}

	tests := map[string]struct {
		hours OperatingHours
		at    time.Time
		want  bool
	}{
		"always open":          {hours: OperatingHours{}, at: at(3, 0), want: true},
		"missing close":        {hours: OperatingHours{Open: mustTimeOfDay(t, "08:00")}, at: at(3, 0), want: true},
		"before opening":       {hours: day, at: at(7, 59), want: false},
		"at opening":           {hours: day, at: at(8, 0), want: true},
		"at closing":           {hours: day, at: at(20, 0), want: true},
		"after closing":        {hours: day, at: at(20, 1), want: false},
		"overnight late":       {hours: night, at: at(23, 15), want: true},
		"overnight early":      {hours: night, at: at(5, 45), want: true},
		"overnight at closing": {hours: night, at: at(6, 0), want: true},
		"overnight midday":     {hours: night, at: at(12, 0), want: false},
	}

	for name, tc := range tests {
		if got := tc.hours.Contains(tc.at); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	parsed, err := ParseTimeOfDay(" 07:05 ")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if parsed.String() != "07:05" {
		t.Fatalf("expected 07:05, got %s", parsed)
	}
	for _, bad := range []string{"", "7", "24:00", "12:60", "noon"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
