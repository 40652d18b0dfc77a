package models

import (
	"fmt"
	"time"
)

// TimeSlot is a fixed time-of-day interval on the daily schedule grid.
type TimeSlot struct {
	ID        int    `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// StartOffset returns the slot start as a duration since midnight.
func (s TimeSlot) StartOffset() time.Duration {
	return clockOffset(s.StartTime)
}

// EndOffset returns the slot end as a duration since midnight.
func (s TimeSlot) EndOffset() time.Duration {
	return clockOffset(s.EndTime)
}

// Duration is the length of the slot.
func (s TimeSlot) Duration() time.Duration {
	return s.EndOffset() - s.StartOffset()
}

// Label renders the display range, e.g. "9:00 AM - 9:45 AM".
func (s TimeSlot) Label() string {
	return fmt.Sprintf("%s - %s", displayClock(s.StartTime), displayClock(s.EndTime))
}

func clockOffset(raw string) time.Duration {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func displayClock(raw string) string {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return raw
	}
	return t.Format("3:04 PM")
}
