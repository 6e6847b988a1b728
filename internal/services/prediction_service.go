// Package services hosts the prediction facade between the HTTP handlers and
// the feature/model layers. One instance serves all requests; everything it
// holds after construction is read-only.
package services

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"time"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/features"
	"github.com/wardops/bedcast/internal/metrics"
	"github.com/wardops/bedcast/internal/mlmodel"
	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/utils"
)

// Response floors. A regression can extrapolate below zero on sparse data;
// a negative stay or cleaning time is never a sensible answer.
const (
	minDischargeHours   = 1.0
	minCleaningMinutes  = 5.0
	defaultHorizonHours = 6
)

// Meta describes how a prediction was produced, for the response envelope.
type Meta struct {
	ModelVersion string
	TrainedAt    time.Time
	Degraded     bool // aggregate window unavailable, defaults used
}

// PredictionService answers the three prediction contracts. Contracts are
// loaded once at startup; per-request state never escapes the call.
type PredictionService struct {
	logger    *slog.Logger
	contracts map[string]*features.Contract
	snapshots aggregate.Provider
	latencies *utils.LatencyTracker
	startedAt time.Time
}

// NewPredictionService builds the facade over loaded contracts and the
// snapshot provider.
func NewPredictionService(logger *slog.Logger, contracts map[string]*features.Contract, snapshots aggregate.Provider) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	if contracts == nil {
		contracts = map[string]*features.Contract{}
	}
	return &PredictionService{
		logger:    logger,
		contracts: contracts,
		snapshots: snapshots,
		latencies: utils.NewLatencyTracker(1024),
		startedAt: time.Now().UTC(),
	}
}

// LoadContracts reads every known artifact under dir. A missing artifact is
// logged and skipped; requests against that contract get ErrModelNotLoaded. A
// present but invalid artifact fails startup.
func LoadContracts(logger *slog.Logger, dir string) (map[string]*features.Contract, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := []string{
		features.ContractDischarge,
		features.ContractAvailability,
		features.ContractCleaning,
	}
	contracts := make(map[string]*features.Contract, len(names))
	for _, name := range names {
		path := features.ArtifactPath(dir, name)
		contract, err := features.LoadContract(name, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("model artifact missing, contract disabled",
					slog.String("contract", name), slog.String("path", path))
				continue
			}
			return nil, utils.NewAppError("services.LoadContracts", "invalid model artifact", err)
		}
		contracts[name] = contract
		logger.Info("model contract loaded",
			slog.String("contract", name),
			slog.String("version", contract.Version),
			slog.Int("features", len(contract.Features)))
	}
	return contracts, nil
}

// PredictDischarge estimates how long a stay starting at the request's
// admission time will last.
func (s *PredictionService) PredictDischarge(ctx context.Context, req models.DischargeRequest) (models.DischargePrediction, Meta, error) {
	start := time.Now()
	contract, ok := s.contracts[features.ContractDischarge]
	if !ok {
		metrics.ObservePrediction(features.ContractDischarge, time.Since(start), metrics.OutcomeError)
		return models.DischargePrediction{}, Meta{}, notLoaded(features.ContractDischarge)
	}

	at := utils.OrNow(req.AdmissionTime)
	snap, meta := s.snapshot(ctx, contract)

	vec, err := features.Assemble(contract, features.Inputs{Ward: req.Ward, Time: at, Snapshot: snap})
	if err != nil {
		metrics.ObservePrediction(features.ContractDischarge, time.Since(start), metrics.OutcomeError)
		return models.DischargePrediction{}, Meta{}, err
	}

	hours := contract.Predictor().Predict(vec.Values)
	if math.IsNaN(hours) || hours < minDischargeHours {
		hours = minDischargeHours
	}
	s.observe(features.ContractDischarge, start)
	return models.DischargePrediction{
		HoursUntilDischarge:    round1(hours),
		EstimatedDischargeTime: at.Add(time.Duration(hours * float64(time.Hour))),
	}, meta, nil
}

// PredictAvailability estimates whether a bed in the ward frees up within the
// requested horizon.
func (s *PredictionService) PredictAvailability(ctx context.Context, req models.AvailabilityRequest) (models.AvailabilityPrediction, Meta, error) {
	start := time.Now()
	contract, ok := s.contracts[features.ContractAvailability]
	if !ok {
		metrics.ObservePrediction(features.ContractAvailability, time.Since(start), metrics.OutcomeError)
		return models.AvailabilityPrediction{}, Meta{}, notLoaded(features.ContractAvailability)
	}

	at := utils.OrNow(req.CurrentTime)
	horizon := req.HorizonHours
	if horizon <= 0 {
		horizon = defaultHorizonHours
	}
	snap, meta := s.snapshot(ctx, contract)

	vec, err := features.Assemble(contract, features.Inputs{Ward: req.Ward, Time: at, Snapshot: snap})
	if err != nil {
		metrics.ObservePrediction(features.ContractAvailability, time.Since(start), metrics.OutcomeError)
		return models.AvailabilityPrediction{}, Meta{}, err
	}

	classifier, ok := contract.Predictor().(mlmodel.Classifier)
	if !ok {
		metrics.ObservePrediction(features.ContractAvailability, time.Since(start), metrics.OutcomeError)
		return models.AvailabilityPrediction{}, Meta{}, utils.NewAppError("services.PredictAvailability", "availability artifact is not a classifier", nil)
	}
	proba := classifier.PredictProba(vec.Values)

	s.observe(features.ContractAvailability, start)
	return models.AvailabilityPrediction{
		WillBeAvailable: proba >= 0.5,
		Probability:     proba,
		HorizonHours:    horizon,
	}, meta, nil
}

// PredictCleaning estimates the actual duration of a cleaning task against the
// requester's initial estimate.
func (s *PredictionService) PredictCleaning(ctx context.Context, req models.CleaningRequest) (models.CleaningPrediction, Meta, error) {
	start := time.Now()
	contract, ok := s.contracts[features.ContractCleaning]
	if !ok {
		metrics.ObservePrediction(features.ContractCleaning, time.Since(start), metrics.OutcomeError)
		return models.CleaningPrediction{}, Meta{}, notLoaded(features.ContractCleaning)
	}

	at := utils.OrNow(req.StartTime)
	snap, meta := s.snapshot(ctx, contract)

	vec, err := features.Assemble(contract, features.Inputs{
		Ward:            req.Ward,
		Time:            at,
		EstimateMinutes: req.EstimatedMinutes,
		Snapshot:        snap,
	})
	if err != nil {
		metrics.ObservePrediction(features.ContractCleaning, time.Since(start), metrics.OutcomeError)
		return models.CleaningPrediction{}, Meta{}, err
	}

	minutes := contract.Predictor().Predict(vec.Values)
	if math.IsNaN(minutes) || minutes < minCleaningMinutes {
		minutes = minCleaningMinutes
	}
	estimate := req.EstimatedMinutes
	if estimate <= 0 {
		estimate = 30
	}

	s.observe(features.ContractCleaning, start)
	return models.CleaningPrediction{
		PredictedMinutes:     round1(minutes),
		EstimatedEndTime:     at.Add(time.Duration(minutes * float64(time.Minute))),
		VarianceFromEstimate: round1(minutes - estimate),
	}, meta, nil
}

// ContractStatus describes one contract for the models-status endpoint.
type ContractStatus struct {
	Loaded    bool      `json:"loaded"`
	Version   string    `json:"version,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
	Features  int       `json:"features,omitempty"`
}

// Status reports every known contract, loaded or not.
func (s *PredictionService) Status() map[string]ContractStatus {
	out := make(map[string]ContractStatus, 3)
	for _, name := range []string{
		features.ContractDischarge,
		features.ContractAvailability,
		features.ContractCleaning,
	} {
		contract, ok := s.contracts[name]
		if !ok {
			out[name] = ContractStatus{}
			continue
		}
		out[name] = ContractStatus{
			Loaded:    true,
			Version:   contract.Version,
			TrainedAt: contract.TrainedAt,
			Features:  len(contract.Features),
		}
	}
	return out
}

// Healthy reports whether at least one contract can answer requests.
func (s *PredictionService) Healthy() bool {
	return len(s.contracts) > 0
}

// Uptime reports time since service construction.
func (s *PredictionService) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// LatencyP95 returns the current p95 prediction latency.
func (s *PredictionService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// snapshot fetches the rolling-window aggregates. Provider errors degrade to
// the default tables; they never fail the request.
func (s *PredictionService) snapshot(ctx context.Context, contract *features.Contract) (*aggregate.Snapshot, Meta) {
	meta := Meta{ModelVersion: contract.Version, TrainedAt: contract.TrainedAt}
	if s.snapshots == nil {
		meta.Degraded = true
		return aggregate.EmptySnapshot(), meta
	}
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		meta.Degraded = true
		s.logger.Warn("serving with default aggregates", slog.Any("error", err))
	}
	return snap, meta
}

func (s *PredictionService) observe(contract string, start time.Time) {
	elapsed := time.Since(start)
	s.latencies.Observe(elapsed)
	metrics.ObservePrediction(contract, elapsed, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("prediction latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
}

func notLoaded(contract string) error {
	return utils.NewAppError("services.predict", "contract "+contract+" not loaded", utils.ErrModelNotLoaded)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
