package aggregate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/wardops/bedcast/internal/cache"
	"github.com/wardops/bedcast/internal/metrics"
	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/reconstruct"
	"github.com/wardops/bedcast/internal/utils"
)

// Snapshot bundles the rolling-window statistics every prediction request
// reads. It is built once per refresh and never mutated afterwards.
type Snapshot struct {
	Occupancy *Stats         `json:"occupancy"` // stay lengths, hours
	Cleaning  *Stats         `json:"cleaning"`  // task lengths, minutes
	Rates     OccupancyRates `json:"rates"`
	BuiltAt   time.Time      `json:"built_at"`
}

// EmptySnapshot returns a snapshot with no data, so every lookup degrades to
// its tier-3 default.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Occupancy: &Stats{},
		Cleaning:  &Stats{},
		Rates:     OccupancyRates{},
		BuiltAt:   time.Now().UTC(),
	}
}

// DischargeRollup binds the occupancy stats to the discharge default table.
func (s *Snapshot) DischargeRollup() Rollup {
	return Rollup{Stats: s.Occupancy, Defaults: DischargeDefaults}
}

// CleaningRollup binds the cleaning stats to the cleaning default table.
func (s *Snapshot) CleaningRollup() Rollup {
	return Rollup{Stats: s.Cleaning, Defaults: CleaningDefaults}
}

// EventSource is the port the aggregator reads state-change events through.
type EventSource interface {
	FetchEvents(ctx context.Context, class models.EventClass, from, to time.Time) ([]models.Event, error)
}

// Provider supplies the current rolling-window snapshot to the serving path.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// StoreProvider builds snapshots from the event store over a rolling window,
// caching the serialized result. A store failure degrades to an empty
// snapshot: the returned snapshot is always usable, the error is only for the
// caller's log line.
type StoreProvider struct {
	logger  *slog.Logger
	source  EventSource
	cacher  cache.Provider
	window  time.Duration
	timeout time.Duration
	ttl     time.Duration
}

const snapshotCacheKey = "bedcast:aggregate:snapshot"

// NewStoreProvider wires the rolling-window snapshot builder.
func NewStoreProvider(logger *slog.Logger, source EventSource, cacher cache.Provider, window, timeout, ttl time.Duration) *StoreProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cacher == nil {
		cacher = cache.NoopProvider{}
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &StoreProvider{
		logger:  logger,
		source:  source,
		cacher:  cacher,
		window:  window,
		timeout: timeout,
		ttl:     ttl,
	}
}

// Snapshot returns the cached snapshot when fresh, otherwise rebuilds it from
// the store. On any failure the empty snapshot is returned alongside the
// error so lookups fall through to their defaults.
func (p *StoreProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	if cached, err := p.cacher.Get(ctx, snapshotCacheKey); err == nil {
		var snap Snapshot
		if err := json.Unmarshal(cached, &snap); err == nil {
			return &snap, nil
		}
		_ = p.cacher.Del(ctx, snapshotCacheKey)
	}

	snap, err := p.rebuild(ctx)
	if err != nil {
		metrics.ObserveSnapshotRefresh(metrics.OutcomeError)
		p.logger.Warn("aggregate snapshot degraded to defaults", slog.Any("error", err))
		return EmptySnapshot(), utils.NewAppError("aggregate.Snapshot", "rolling window unavailable", utils.ErrDataSourceUnavailable)
	}
	metrics.ObserveSnapshotRefresh(metrics.OutcomeSuccess)

	if data, err := json.Marshal(snap); err == nil {
		if err := p.cacher.Set(ctx, snapshotCacheKey, data, p.ttl); err != nil && err != cache.ErrCacheMiss {
			p.logger.Debug("snapshot cache write failed", slog.Any("error", err))
		}
	}
	return snap, nil
}

func (p *StoreProvider) rebuild(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := time.Now().UTC()
	from := now.Add(-p.window)

	occEvents, err := p.source.FetchEvents(ctx, models.ClassOccupancy, from, now)
	if err != nil {
		return nil, err
	}
	cleanEvents, err := p.source.FetchEvents(ctx, models.ClassCleaning, from, now)
	if err != nil {
		return nil, err
	}

	occResult := reconstruct.New(p.logger, reconstruct.OccupancyBounds).Run(occEvents)
	cleanResult := reconstruct.New(p.logger, reconstruct.CleaningBounds).Run(cleanEvents)
	metrics.AddDiscrepancies(string(models.ClassOccupancy), occResult.UnmatchedEnds+occResult.Invalid)
	metrics.AddDiscrepancies(string(models.ClassCleaning), cleanResult.UnmatchedEnds+cleanResult.Invalid)

	occSessions := occResult.Valid()
	return &Snapshot{
		Occupancy: Build(occSessions, HoursValue),
		Cleaning:  Build(cleanResult.Valid(), MinutesValue),
		Rates:     BuildRates(occSessions, p.window, now),
		BuiltAt:   now,
	}, nil
}
