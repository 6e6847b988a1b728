package aggregate

import (
	"time"

	"github.com/wardops/bedcast/internal/models"
)

// Serving-time floors for the availability features when the rolling window
// holds no usable occupancy data.
const (
	DefaultWardOccupancyRate    = 0.75
	DefaultHourAvailabilityRate = 0.15
)

// OccupancyRates summarises how busy each ward was over the rolling window and
// how bed releases distribute over the hours of the day.
type OccupancyRates struct {
	WardOccupancy    map[string]float64 `json:"ward_occupancy"`
	HourAvailability map[int]float64    `json:"hour_availability"`
}

// BuildRates derives occupancy and release rates from valid occupancy
// sessions observed inside a window ending at now.
func BuildRates(sessions []models.Session, window time.Duration, now time.Time) OccupancyRates {
	rates := OccupancyRates{
		WardOccupancy:    map[string]float64{},
		HourAvailability: map[int]float64{},
	}
	if window <= 0 || len(sessions) == 0 {
		return rates
	}
	windowStart := now.Add(-window)

	busy := map[string]time.Duration{}
	beds := map[string]map[string]struct{}{}
	releasesByHour := map[int]int{}
	totalReleases := 0

	for _, s := range sessions {
		if s.Invalid {
			continue
		}
		start := s.Start
		if start.Before(windowStart) {
			start = windowStart
		}
		end := s.End
		if end.After(now) {
			end = now
		}
		if end.After(start) {
			busy[s.Ward] += end.Sub(start)
		}
		if beds[s.Ward] == nil {
			beds[s.Ward] = map[string]struct{}{}
		}
		beds[s.Ward][s.ResourceID] = struct{}{}

		releasesByHour[s.End.Hour()]++
		totalReleases++
	}

	for ward, d := range busy {
		n := len(beds[ward])
		if n == 0 {
			continue
		}
		rate := d.Seconds() / (float64(n) * window.Seconds())
		if rate > 1 {
			rate = 1
		}
		rates.WardOccupancy[ward] = rate
	}
	if totalReleases > 0 {
		for hour, count := range releasesByHour {
			rates.HourAvailability[hour] = float64(count) / float64(totalReleases)
		}
	}
	return rates
}

// Occupancy returns the observed occupancy rate for a ward or the default.
func (r OccupancyRates) Occupancy(ward string) (float64, Tier) {
	if v, ok := r.WardOccupancy[ward]; ok {
		return v, TierCategory
	}
	return DefaultWardOccupancyRate, TierDefault
}

// Availability returns the observed release share for an hour or the default.
func (r OccupancyRates) Availability(hour int) (float64, Tier) {
	if v, ok := r.HourAvailability[hour]; ok {
		return v, TierExact
	}
	return DefaultHourAvailabilityRate, TierDefault
}
