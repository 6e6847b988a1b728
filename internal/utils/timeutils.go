package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// OrNow returns t unless it is the zero value, in which case the current UTC
// time is used. Prediction requests may omit their effective time.
func OrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
