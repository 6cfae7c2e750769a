package application

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24 hour notation.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// OperatingHours is the daily opening window of a lot. A missing bound means
// the lot never closes. Close before Open describes a window across midnight.
type OperatingHours struct {
	Open  *TimeOfDay
	Close *TimeOfDay
}

// Contains reports whether the wall clock time of at lies within the window,
// both bounds included.
func (h OperatingHours) Contains(at time.Time) bool {
	if h.Open == nil || h.Close == nil {
		return true
	}
	current := at.Hour()*60 + at.Minute()
	open, closing := h.Open.minutes(), h.Close.minutes()
	if open <= closing {
		return current >= open && current <= closing
	}
	return current >= open || current <= closing
}

// AlwaysOpen reports whether the lot has no opening window.
func (h OperatingHours) AlwaysOpen() bool {
	return h.Open == nil || h.Close == nil
}
