package features

import (
	"time"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/metrics"
	"github.com/wardops/bedcast/internal/temporal"
	"github.com/wardops/bedcast/internal/utils"
)

// wardCodes is the fixed enumeration the historical models were trained
// with. Unknown wards map to the General code rather than erroring.
var wardCodes = map[string]int{
	"ICU":        0,
	"Emergency":  1,
	"General":    2,
	"Pediatrics": 3,
	"Pediatric":  3, // alternative spelling in older logs
	"Surgery":    4,
	"Cardiology": 5,
	"Maternity":  6,
}

const defaultWardCode = 2

// WardCode encodes a ward name to its stable integer.
func WardCode(ward string) int {
	if code, ok := wardCodes[ward]; ok {
		return code
	}
	return defaultWardCode
}

// Vector is an ordered feature vector. Values[i] belongs to Names[i]; the
// order is the contract's and must never be rearranged.
type Vector struct {
	Names  []string
	Values []float64
}

// Inputs carries everything a producer may draw from: the request scalars,
// the effective time, and the aggregate snapshot.
type Inputs struct {
	Ward            string
	Time            time.Time
	EstimateMinutes float64
	Snapshot        *aggregate.Snapshot

	// Overrides replaces a producer's value by feature name. The trainer uses
	// this for observed per-row scalars (bed occupancy flags); the serving
	// path leaves it nil.
	Overrides map[string]float64
}

// row is the resolved per-assembly state shared by all producers.
type row struct {
	in       Inputs
	cal      temporal.Features
	duration aggregate.Rollup // unit depends on the contract
	rates    aggregate.OccupancyRates
}

type producer func(r *row) float64

var producers = map[string]producer{
	"hour":              func(r *row) float64 { return float64(r.cal.Hour) },
	"day_of_week":       func(r *row) float64 { return float64(r.cal.Weekday) },
	"month":             func(r *row) float64 { return float64(r.cal.Month) },
	"day_of_month":      func(r *row) float64 { return float64(r.cal.DayOfMonth) },
	"is_weekend":        func(r *row) float64 { return boolToFloat(r.cal.IsWeekend) },
	"is_business_hours": func(r *row) float64 { return boolToFloat(r.cal.IsBusinessHours) },
	"time_of_day":       func(r *row) float64 { return float64(r.cal.TimeOfDay) },
	"ward_encoded":      func(r *row) float64 { return float64(WardCode(r.in.Ward)) },
	"ward_avg_duration": func(r *row) float64 {
		v, tier := r.duration.WardAvg(r.in.Ward)
		metrics.ObserveFallback(string(tier))
		return v
	},
	"time_avg_duration": func(r *row) float64 {
		v, tier := r.duration.TimeAvg(r.in.Ward, r.cal.TimeOfDay)
		metrics.ObserveFallback(string(tier))
		return v
	},
	"ward_time_avg_duration": func(r *row) float64 {
		v, tier := r.duration.WardTimeAvg(r.in.Ward, r.cal.TimeOfDay)
		metrics.ObserveFallback(string(tier))
		return v
	},
	"ward_std_duration": func(r *row) float64 { return r.duration.WardStd(r.in.Ward) },
	"estimated_duration": func(r *row) float64 {
		if r.in.EstimateMinutes > 0 {
			return r.in.EstimateMinutes
		}
		return defaultEstimateMinutes
	},
	"ward_weekend_interaction": func(r *row) float64 {
		return float64(WardCode(r.in.Ward)) * boolToFloat(r.cal.IsWeekend)
	},
	"ward_hour_interaction": func(r *row) float64 {
		return float64(WardCode(r.in.Ward)) * float64(r.cal.Hour) / 24.0
	},
	// The serving path assumes the bed in question is occupied and not
	// mid-clean; training rows override these with observed flags.
	"is_occupied": func(r *row) float64 { return 1 },
	"is_cleaning": func(r *row) float64 { return 0 },
	"ward_occupancy_rate": func(r *row) float64 {
		v, tier := r.rates.Occupancy(r.in.Ward)
		metrics.ObserveFallback(string(tier))
		return v
	},
	"hour_availability_rate": func(r *row) float64 {
		v, tier := r.rates.Availability(r.cal.Hour)
		metrics.ObserveFallback(string(tier))
		return v
	},
}

const defaultEstimateMinutes = 30

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Validate checks that every feature a contract names has a producer. Run at
// startup; a failure here is a programming error, not a request error.
func Validate(c *Contract) error {
	for _, name := range c.Features {
		if _, ok := producers[name]; !ok {
			return &utils.FeatureMismatchError{Contract: c.Name, Feature: name}
		}
	}
	return nil
}

// Assemble builds the feature vector for a contract, emitting values in the
// exact order of the contract's feature list. The vector is created fresh per
// call and never shared.
func Assemble(c *Contract, in Inputs) (Vector, error) {
	return AssembleFor(c.Name, c.Features, in)
}

// AssembleFor is the contract-free entry point the trainer uses while building
// dataset rows, before any artifact exists. Serving goes through Assemble; both
// run the exact same producers.
func AssembleFor(name string, featureNames []string, in Inputs) (Vector, error) {
	snap := in.Snapshot
	if snap == nil {
		snap = aggregate.EmptySnapshot()
	}
	r := &row{
		in:    in,
		cal:   temporal.Extract(in.Time),
		rates: snap.Rates,
	}
	switch name {
	case ContractCleaning:
		r.duration = snap.CleaningRollup()
	default:
		r.duration = snap.DischargeRollup()
	}

	vec := Vector{
		Names:  featureNames,
		Values: make([]float64, 0, len(featureNames)),
	}
	for _, feature := range featureNames {
		if v, ok := in.Overrides[feature]; ok {
			vec.Values = append(vec.Values, v)
			continue
		}
		produce, ok := producers[feature]
		if !ok {
			return Vector{}, &utils.FeatureMismatchError{Contract: name, Feature: feature}
		}
		vec.Values = append(vec.Values, produce(r))
	}
	return vec, nil
}
