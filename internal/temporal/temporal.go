// Package temporal derives calendar and time-bucket features from timestamps.
// Every function here is pure; the same code runs when building training rows
// and when answering a live prediction request.
package temporal

import "time"

// TimeOfDay discretizes the hour of day into four buckets.
type TimeOfDay int

const (
	Morning   TimeOfDay = 0 // [06:00, 12:00)
	Afternoon TimeOfDay = 1 // [12:00, 18:00)
	Evening   TimeOfDay = 2 // [18:00, 22:00)
	Night     TimeOfDay = 3 // [22:00, 06:00)
)

func (t TimeOfDay) String() string {
	switch t {
	case Morning:
		return "morning"
	case Afternoon:
		return "afternoon"
	case Evening:
		return "evening"
	default:
		return "night"
	}
}

// Features holds the calendar scalars and bucket flags for one timestamp.
type Features struct {
	Hour            int
	Weekday         int // 0=Monday .. 6=Sunday
	Month           int
	DayOfMonth      int
	IsWeekend       bool
	IsBusinessHours bool
	TimeOfDay       TimeOfDay
}

// Extract maps a timestamp to its feature set. Deterministic: two calls with
// the same instant yield identical output.
func Extract(t time.Time) Features {
	hour := t.Hour()
	weekday := mondayIndexed(t.Weekday())
	return Features{
		Hour:            hour,
		Weekday:         weekday,
		Month:           int(t.Month()),
		DayOfMonth:      t.Day(),
		IsWeekend:       weekday >= 5,
		IsBusinessHours: hour >= 8 && hour <= 17,
		TimeOfDay:       BucketHour(hour),
	}
}

// BucketHour maps an hour in [0,23] to its TimeOfDay bucket.
func BucketHour(hour int) TimeOfDay {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// mondayIndexed converts Go's Sunday-first weekday to the Monday-first index
// the historical models were trained with.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
