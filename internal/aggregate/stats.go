// Package aggregate computes grouped historical statistics over reconstructed
// sessions and exposes the three-tier fallback lookup shared by training and
// serving. Both paths must go through this package; a second implementation of
// these rules is how offline and online features drift apart.
package aggregate

import (
	"fmt"
	"math"

	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/temporal"
)

// GroupStat holds the aggregate for one group key.
type GroupStat struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// Stats carries duration statistics grouped three ways: by ward, by
// time-of-day bucket of the session start, and by the (ward, time-of-day)
// combination.
type Stats struct {
	ByWard     map[string]GroupStat `json:"by_ward"`
	ByTime     map[int]GroupStat    `json:"by_time"`
	ByWardTime map[string]GroupStat `json:"by_ward_time"`
}

func wardTimeKey(ward string, tod temporal.TimeOfDay) string {
	return fmt.Sprintf("%s|%d", ward, int(tod))
}

// Build computes Stats from valid sessions. The value function fixes the
// duration unit (hours for occupancy, minutes for cleaning). Invalid sessions
// are skipped here so audit consumers can still hold the full list.
func Build(sessions []models.Session, value func(models.Session) float64) *Stats {
	byWard := map[string][]float64{}
	byTime := map[int][]float64{}
	byWardTime := map[string][]float64{}

	for _, s := range sessions {
		if s.Invalid {
			continue
		}
		v := value(s)
		tod := temporal.Extract(s.Start).TimeOfDay
		byWard[s.Ward] = append(byWard[s.Ward], v)
		byTime[int(tod)] = append(byTime[int(tod)], v)
		key := wardTimeKey(s.Ward, tod)
		byWardTime[key] = append(byWardTime[key], v)
	}

	stats := &Stats{
		ByWard:     make(map[string]GroupStat, len(byWard)),
		ByTime:     make(map[int]GroupStat, len(byTime)),
		ByWardTime: make(map[string]GroupStat, len(byWardTime)),
	}
	for k, vs := range byWard {
		stats.ByWard[k] = summarize(vs)
	}
	for k, vs := range byTime {
		stats.ByTime[k] = summarize(vs)
	}
	for k, vs := range byWardTime {
		stats.ByWardTime[k] = summarize(vs)
	}
	return stats
}

func summarize(values []float64) GroupStat {
	n := len(values)
	if n == 0 {
		return GroupStat{}
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	return GroupStat{Mean: mean, Std: math.Sqrt(variance), Count: n}
}

// HoursValue extracts a session duration in hours.
func HoursValue(s models.Session) float64 { return s.DurationHours() }

// MinutesValue extracts a session duration in minutes.
func MinutesValue(s models.Session) float64 { return s.DurationMinutes() }

// Tier identifies which level of the fallback chain answered a lookup.
type Tier string

const (
	TierExact    Tier = "exact"
	TierCategory Tier = "category"
	TierDefault  Tier = "default"
)

// DefaultTable is the tier-3 floor: hard-coded per-ward constants used only
// when no data-bearing group can answer.
type DefaultTable struct {
	ByWard   map[string]float64
	Fallback float64
	// Std is the default spread when a ward has no samples.
	Std float64
}

// Value returns the documented default for a ward.
func (d DefaultTable) Value(ward string) float64 {
	if v, ok := d.ByWard[ward]; ok {
		return v
	}
	return d.Fallback
}

// DischargeDefaults are the tier-3 stay lengths in hours.
var DischargeDefaults = DefaultTable{
	ByWard: map[string]float64{
		"ICU":        48.0,
		"Emergency":  24.0,
		"General":    36.0,
		"Pediatrics": 30.0,
		"Maternity":  48.0,
		"Surgery":    36.0,
		"Cardiology": 40.0,
	},
	Fallback: 36.0,
	Std:      12.0,
}

// CleaningDefaults are the tier-3 cleaning durations in minutes.
var CleaningDefaults = DefaultTable{
	ByWard: map[string]float64{
		"ICU":        35.0,
		"Emergency":  28.0,
		"General":    30.0,
		"Pediatrics": 32.0,
		"Maternity":  33.0,
	},
	Fallback: 30.0,
	Std:      10.0,
}

// Rollup binds grouped statistics to their default table and implements the
// lookup chains. Three parallel chains, each with its own floor, not one
// merged chain: ward average, time-of-day average, and combined average.
type Rollup struct {
	Stats    *Stats
	Defaults DefaultTable
}

// WardAvg returns the mean duration for a ward, or the tier-3 default.
func (r Rollup) WardAvg(ward string) (float64, Tier) {
	if r.Stats != nil {
		if g, ok := r.Stats.ByWard[ward]; ok && g.Count > 0 {
			return g.Mean, TierCategory
		}
	}
	return r.Defaults.Value(ward), TierDefault
}

// TimeAvg returns the mean duration for a time-of-day bucket, falling back to
// the ward average (and through it to the default) when the bucket is empty.
func (r Rollup) TimeAvg(ward string, tod temporal.TimeOfDay) (float64, Tier) {
	if r.Stats != nil {
		if g, ok := r.Stats.ByTime[int(tod)]; ok && g.Count > 0 {
			return g.Mean, TierExact
		}
	}
	return r.WardAvg(ward)
}

// WardTimeAvg resolves the (ward, time-of-day) group through the strict
// three-tier order: exact group, ward-only group, hard default.
func (r Rollup) WardTimeAvg(ward string, tod temporal.TimeOfDay) (float64, Tier) {
	if r.Stats != nil {
		if g, ok := r.Stats.ByWardTime[wardTimeKey(ward, tod)]; ok && g.Count > 0 {
			return g.Mean, TierExact
		}
	}
	return r.WardAvg(ward)
}

// WardStd returns the duration spread for a ward, or the default spread.
func (r Rollup) WardStd(ward string) float64 {
	if r.Stats != nil {
		if g, ok := r.Stats.ByWard[ward]; ok && g.Count > 1 {
			return g.Std
		}
	}
	return r.Defaults.Std
}
