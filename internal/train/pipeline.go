// Package train builds model artifacts from the event store. One parameterized
// pipeline covers all three contracts: fetch events, reconstruct sessions,
// aggregate, assemble rows through the shared producers, fit, persist.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/features"
	"github.com/wardops/bedcast/internal/mlmodel"
	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/reconstruct"
)

const artifactVersion = "1.0.0"

// recipe declares how one contract is trained: its ordered feature list, the
// model family, and how dataset rows are derived from sessions.
type recipe struct {
	features   []string
	classifier bool
}

var recipes = map[string]recipe{
	features.ContractDischarge: {
		features: []string{
			"ward_encoded", "hour", "day_of_week", "month", "day_of_month",
			"is_weekend", "is_business_hours", "time_of_day",
			"ward_avg_duration", "time_avg_duration", "ward_time_avg_duration",
		},
	},
	features.ContractAvailability: {
		features: []string{
			"hour", "day_of_week", "month", "is_weekend", "is_business_hours",
			"time_of_day", "ward_encoded", "is_occupied", "is_cleaning",
			"ward_occupancy_rate", "hour_availability_rate",
		},
		classifier: true,
	},
	features.ContractCleaning: {
		features: []string{
			"hour", "day_of_week", "month", "day_of_month", "is_weekend",
			"is_business_hours", "time_of_day", "ward_encoded",
			"estimated_duration", "ward_avg_duration", "time_avg_duration",
			"ward_time_avg_duration", "ward_std_duration",
		},
	},
}

// Contracts lists the trainable contract names.
func Contracts() []string {
	return []string{
		features.ContractDischarge,
		features.ContractAvailability,
		features.ContractCleaning,
	}
}

// Report summarises one training run.
type Report struct {
	Contract string
	Rows     int
	Metrics  map[string]float64
	Path     string
}

// Pipeline trains contracts from the event store over a rolling window.
type Pipeline struct {
	logger *slog.Logger
	source aggregate.EventSource
	window time.Duration

	// fitting knobs, fixed for reproducible artifacts
	ridge  float64
	epochs int
	rate   float64
}

// NewPipeline wires a trainer against an event source. A non-positive window
// falls back to the thirty-day default shared with serving.
func NewPipeline(logger *slog.Logger, source aggregate.EventSource, window time.Duration) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &Pipeline{
		logger: logger,
		source: source,
		window: window,
		ridge:  1e-3,
		epochs: 800,
		rate:   0.1,
	}
}

// Train builds and persists the artifact for one contract. The dataset rows go
// through the same feature producers serving uses, against a snapshot built
// from the same window, so offline and online vectors agree by construction.
func (p *Pipeline) Train(ctx context.Context, contract, modelsDir string) (*Report, error) {
	s, ok := recipes[contract]
	if !ok {
		return nil, fmt.Errorf("unknown contract %q", contract)
	}

	now := time.Now().UTC()
	from := now.Add(-p.window)

	occEvents, err := p.source.FetchEvents(ctx, models.ClassOccupancy, from, now)
	if err != nil {
		return nil, fmt.Errorf("fetch occupancy events: %w", err)
	}
	cleanEvents, err := p.source.FetchEvents(ctx, models.ClassCleaning, from, now)
	if err != nil {
		return nil, fmt.Errorf("fetch cleaning events: %w", err)
	}

	occSessions := reconstruct.New(p.logger, reconstruct.OccupancyBounds).Run(occEvents).Valid()
	cleanSessions := reconstruct.New(p.logger, reconstruct.CleaningBounds).Run(cleanEvents).Valid()

	snap := &aggregate.Snapshot{
		Occupancy: aggregate.Build(occSessions, aggregate.HoursValue),
		Cleaning:  aggregate.Build(cleanSessions, aggregate.MinutesValue),
		Rates:     aggregate.BuildRates(occSessions, p.window, now),
		BuiltAt:   now,
	}

	var rows [][]float64
	var targets []float64
	switch contract {
	case features.ContractDischarge:
		rows, targets, err = p.durationRows(contract, s, snap, occSessions, models.Session.DurationHours)
	case features.ContractCleaning:
		rows, targets, err = p.durationRows(contract, s, snap, cleanSessions, models.Session.DurationMinutes)
	case features.ContractAvailability:
		rows, targets, err = p.availabilityRows(s, snap, occSessions, cleanSessions)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no closed sessions for %s inside the %s window", contract, p.window)
	}

	artifact, metricValues, err := p.fit(s, contract, rows, targets, now)
	if err != nil {
		return nil, err
	}

	path := features.ArtifactPath(modelsDir, contract)
	if err := features.SaveArtifact(path, artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	p.logger.Info("model trained",
		slog.String("contract", contract),
		slog.Int("rows", len(rows)),
		slog.String("path", path))
	return &Report{Contract: contract, Rows: len(rows), Metrics: metricValues, Path: path}, nil
}

// TrainAll trains every contract, stopping at the first failure.
func (p *Pipeline) TrainAll(ctx context.Context, modelsDir string) ([]*Report, error) {
	reports := make([]*Report, 0, len(recipes))
	for _, contract := range Contracts() {
		report, err := p.Train(ctx, contract, modelsDir)
		if err != nil {
			return reports, fmt.Errorf("train %s: %w", contract, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// durationRows derives one regression row per closed session: features at the
// session start, the observed duration as the target.
func (p *Pipeline) durationRows(contract string, s recipe, snap *aggregate.Snapshot, sessions []models.Session, target func(models.Session) float64) ([][]float64, []float64, error) {
	rows := make([][]float64, 0, len(sessions))
	targets := make([]float64, 0, len(sessions))
	for _, session := range sessions {
		vec, err := features.AssembleFor(contract, s.features, features.Inputs{
			Ward:            session.Ward,
			Time:            session.Start,
			EstimateMinutes: session.EstimateMinutes,
			Snapshot:        snap,
		})
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, vec.Values)
		targets = append(targets, target(session))
	}
	return rows, targets, nil
}

// availabilityRows derives labelled rows from occupancy and cleaning sessions:
// mid-stay the bed is not available, right after release it is, and mid-clean
// it is not. The occupancy flags come in through overrides since serving pins
// them to the occupied case.
func (p *Pipeline) availabilityRows(s recipe, snap *aggregate.Snapshot, occ, clean []models.Session) ([][]float64, []float64, error) {
	var rows [][]float64
	var targets []float64

	add := func(ward string, at time.Time, occupied, cleaning, target float64) error {
		vec, err := features.AssembleFor(features.ContractAvailability, s.features, features.Inputs{
			Ward:     ward,
			Time:     at,
			Snapshot: snap,
			Overrides: map[string]float64{
				"is_occupied": occupied,
				"is_cleaning": cleaning,
			},
		})
		if err != nil {
			return err
		}
		rows = append(rows, vec.Values)
		targets = append(targets, target)
		return nil
	}

	for _, session := range occ {
		mid := session.Start.Add(session.End.Sub(session.Start) / 2)
		if err := add(session.Ward, mid, 1, 0, 0); err != nil {
			return nil, nil, err
		}
		if err := add(session.Ward, session.End, 0, 0, 1); err != nil {
			return nil, nil, err
		}
	}
	for _, session := range clean {
		mid := session.Start.Add(session.End.Sub(session.Start) / 2)
		if err := add(session.Ward, mid, 0, 1, 0); err != nil {
			return nil, nil, err
		}
	}
	return rows, targets, nil
}

func (p *Pipeline) fit(s recipe, contract string, rows [][]float64, targets []float64, now time.Time) (features.Artifact, map[string]float64, error) {
	if s.classifier {
		model, err := mlmodel.FitLogistic(rows, targets, p.epochs, p.rate)
		if err != nil {
			return features.Artifact{}, nil, fmt.Errorf("fit %s: %w", contract, err)
		}
		probs := make([]float64, len(rows))
		for i, row := range rows {
			probs[i] = model.PredictProba(row)
		}
		metricValues := map[string]float64{"accuracy": mlmodel.Accuracy(probs, targets)}
		return features.Artifact{
			Model:          model.Params(),
			FeatureColumns: s.features,
			Metrics:        metricValues,
			ModelType:      string(mlmodel.TypeLogistic),
			TrainedAt:      now,
			Version:        artifactVersion,
		}, metricValues, nil
	}

	model, err := mlmodel.FitLinear(rows, targets, p.ridge)
	if err != nil {
		return features.Artifact{}, nil, fmt.Errorf("fit %s: %w", contract, err)
	}
	preds := make([]float64, len(rows))
	for i, row := range rows {
		preds[i] = model.Predict(row)
	}
	metricValues := map[string]float64{
		"mae":  mlmodel.MAE(preds, targets),
		"rmse": mlmodel.RMSE(preds, targets),
		"r2":   mlmodel.R2(preds, targets),
	}
	return features.Artifact{
		Model:          model.Params(),
		FeatureColumns: s.features,
		Metrics:        metricValues,
		ModelType:      string(mlmodel.TypeLinear),
		TrainedAt:      now,
		Version:        artifactVersion,
	}, metricValues, nil
}
