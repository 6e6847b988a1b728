// Package reconstruct pairs raw state-change events into occupancy and
// cleaning sessions. One pass, per-resource state only, so independent
// resource partitions can be processed separately.
package reconstruct

import (
	"log/slog"
	"sort"
	"time"

	"github.com/wardops/bedcast/internal/models"
)

// Bounds defines the plausible duration range for a session class. Durations
// must be strictly positive and within [Min, Max] to count as valid.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// OccupancyBounds accepts stays up to a year, matching the historical dataset
// filter the discharge models were trained on.
var OccupancyBounds = Bounds{Min: 0, Max: 8760 * time.Hour}

// CleaningBounds accepts cleaning tasks between one minute and eight hours.
var CleaningBounds = Bounds{Min: time.Minute, Max: 480 * time.Minute}

// Result is the output of one reconstruction pass.
type Result struct {
	// Sessions holds every closed session, valid or not, in close order.
	Sessions []models.Session
	// OpenStarts counts start events never matched by an end.
	OpenStarts int
	// UnmatchedEnds counts end events with no pending start for the resource.
	UnmatchedEnds int
	// Invalid counts sessions outside the duration bounds.
	Invalid int
}

// Valid returns only the sessions eligible for aggregation.
func (r Result) Valid() []models.Session {
	out := make([]models.Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		if !s.Invalid {
			out = append(out, s)
		}
	}
	return out
}

// Reconstructor pairs start events with the next matching end event per
// resource. The most recently opened session wins when several are pending
// (LIFO), which tolerates overlapping or out-of-order logging.
type Reconstructor struct {
	logger *slog.Logger
	bounds Bounds
}

// New builds a Reconstructor with the given validity bounds.
func New(logger *slog.Logger, bounds Bounds) *Reconstructor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{logger: logger, bounds: bounds}
}

type pending struct {
	start    time.Time
	ward     string
	estimate float64
}

// Run consumes a time-ordered event sequence and returns the reconstructed
// sessions. Events with ChangeOther kind are ignored for pairing. An end with
// no open session is dropped and counted as a discrepancy, never an error.
func (r *Reconstructor) Run(events []models.Event) Result {
	ordered := append([]models.Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	open := make(map[string][]pending)
	var result Result

	for _, ev := range ordered {
		switch ev.Kind {
		case models.ChangeStart:
			open[ev.ResourceID] = append(open[ev.ResourceID], pending{
				start:    ev.Timestamp,
				ward:     ev.Ward,
				estimate: ev.EstimateMinutes,
			})
		case models.ChangeEnd:
			stack := open[ev.ResourceID]
			if len(stack) == 0 {
				result.UnmatchedEnds++
				r.logger.Debug("unmatched end event dropped",
					slog.String("resource_id", ev.ResourceID),
					slog.Time("timestamp", ev.Timestamp))
				continue
			}
			p := stack[len(stack)-1]
			open[ev.ResourceID] = stack[:len(stack)-1]

			session := models.Session{
				ResourceID:      ev.ResourceID,
				Ward:            p.ward,
				Start:           p.start,
				End:             ev.Timestamp,
				EstimateMinutes: p.estimate,
			}
			if !r.plausible(ev.Timestamp.Sub(p.start)) {
				session.Invalid = true
				result.Invalid++
			}
			result.Sessions = append(result.Sessions, session)
		}
	}

	for _, stack := range open {
		result.OpenStarts += len(stack)
	}
	if result.UnmatchedEnds > 0 || result.OpenStarts > 0 {
		r.logger.Info("reconstruction discrepancies",
			slog.Int("unmatched_ends", result.UnmatchedEnds),
			slog.Int("open_starts", result.OpenStarts),
			slog.Int("invalid_sessions", result.Invalid))
	}
	return result
}

func (r *Reconstructor) plausible(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	if d < r.bounds.Min {
		return false
	}
	return r.bounds.Max <= 0 || d <= r.bounds.Max
}
