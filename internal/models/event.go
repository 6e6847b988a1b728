package models

import "time"

// EventClass names a resource-state event log.
type EventClass string

const (
	// ClassOccupancy covers bed assignment and release events.
	ClassOccupancy EventClass = "occupancy"
	// ClassCleaning covers cleaning start and finish events.
	ClassCleaning EventClass = "cleaning"
)

// ChangeKind classifies a state-change event for session pairing.
type ChangeKind string

const (
	ChangeStart ChangeKind = "start"
	ChangeEnd   ChangeKind = "end"
	ChangeOther ChangeKind = "other"
)

// Event is a single immutable state-change record from the event store.
// Ordering key is Timestamp with Seq as the store-assigned tie-breaker.
type Event struct {
	ResourceID string
	Ward       string
	Kind       ChangeKind
	Timestamp  time.Time
	ActorID    string
	Seq        int64

	// EstimateMinutes carries the operator's duration estimate when the
	// upstream log records one (cleaning starts). Zero means absent.
	EstimateMinutes float64
}

// Session is a reconstructed interval between a resource's start-of-use and
// end-of-use events.
type Session struct {
	ResourceID string
	Ward       string
	Start      time.Time
	End        time.Time

	// Invalid marks sessions whose duration falls outside the plausible
	// bounds for their event class. They stay in the session list for audit
	// consumers but are excluded from aggregation.
	Invalid bool

	EstimateMinutes float64
}

// DurationHours returns the session length in hours.
func (s Session) DurationHours() float64 {
	return s.End.Sub(s.Start).Hours()
}

// DurationMinutes returns the session length in minutes.
func (s Session) DurationMinutes() float64 {
	return s.End.Sub(s.Start).Minutes()
}
