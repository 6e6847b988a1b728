package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/features"
	"github.com/wardops/bedcast/internal/mlmodel"
	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/utils"
)

type fakeProvider struct {
	snap *aggregate.Snapshot
	err  error
}

func (f *fakeProvider) Snapshot(context.Context) (*aggregate.Snapshot, error) {
	if f.err != nil {
		return aggregate.EmptySnapshot(), f.err
	}
	return f.snap, nil
}

func regressionContract(t *testing.T, name string, weights []float64, intercept float64, cols []string) *features.Contract {
	t.Helper()
	contract, err := features.NewContract(name, features.Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLinear, Weights: weights, Intercept: intercept},
		FeatureColumns: cols,
		Version:        "1.2.0",
		TrainedAt:      time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build contract: %v", err)
	}
	return contract
}

func classifierContract(t *testing.T, weights []float64, intercept float64, cols []string) *features.Contract {
	t.Helper()
	contract, err := features.NewContract(features.ContractAvailability, features.Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLogistic, Weights: weights, Intercept: intercept},
		FeatureColumns: cols,
		Version:        "1.0.0",
	})
	if err != nil {
		t.Fatalf("build contract: %v", err)
	}
	return contract
}

func TestPredictDischargeAddsHoursToAdmission(t *testing.T) {
	// Model: ward_avg_duration passthrough. With no snapshot data the
	// General default of 36h flows straight through.
	contract := regressionContract(t, features.ContractDischarge, []float64{1}, 0, []string{"ward_avg_duration"})
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractDischarge: contract}, &fakeProvider{snap: aggregate.EmptySnapshot()})

	admission := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)
	pred, meta, err := svc.PredictDischarge(context.Background(), models.DischargeRequest{Ward: "General", AdmissionTime: admission})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.HoursUntilDischarge != 36 {
		t.Errorf("hours = %v, want 36", pred.HoursUntilDischarge)
	}
	if want := admission.Add(36 * time.Hour); !pred.EstimatedDischargeTime.Equal(want) {
		t.Errorf("discharge time = %v, want %v", pred.EstimatedDischargeTime, want)
	}
	if meta.ModelVersion != "1.2.0" || meta.Degraded {
		t.Errorf("meta = %+v", meta)
	}
}

func TestPredictDischargeClampsToFloor(t *testing.T) {
	contract := regressionContract(t, features.ContractDischarge, []float64{1}, -100, []string{"hour"})
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractDischarge: contract}, nil)

	pred, _, err := svc.PredictDischarge(context.Background(), models.DischargeRequest{Ward: "ICU"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.HoursUntilDischarge != 1 {
		t.Errorf("hours = %v, want floor 1", pred.HoursUntilDischarge)
	}
}

func TestPredictRejectsUnloadedContract(t *testing.T) {
	svc := NewPredictionService(nil, nil, nil)
	_, _, err := svc.PredictDischarge(context.Background(), models.DischargeRequest{Ward: "ICU"})
	if !errors.Is(err, utils.ErrModelNotLoaded) {
		t.Fatalf("error = %v, want ErrModelNotLoaded", err)
	}
}

func TestPredictAvailabilityDefaultsHorizonAndThresholds(t *testing.T) {
	// Strongly positive intercept: probability near 1 regardless of input.
	contract := classifierContract(t, []float64{0}, 6, []string{"hour"})
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractAvailability: contract}, nil)

	pred, _, err := svc.PredictAvailability(context.Background(), models.AvailabilityRequest{Ward: "General"})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !pred.WillBeAvailable {
		t.Error("expected available=true for high probability")
	}
	if pred.Probability <= 0.5 || pred.Probability > 1 {
		t.Errorf("probability = %v", pred.Probability)
	}
	if pred.HorizonHours != 6 {
		t.Errorf("horizon = %d, want default 6", pred.HorizonHours)
	}
}

func TestPredictCleaningVariance(t *testing.T) {
	// Model echoes the caller's estimate, so variance is zero against the
	// same estimate.
	contract := regressionContract(t, features.ContractCleaning, []float64{1}, 10, []string{"estimated_duration"})
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractCleaning: contract}, nil)

	start := time.Date(2024, time.May, 6, 10, 0, 0, 0, time.UTC)
	pred, _, err := svc.PredictCleaning(context.Background(), models.CleaningRequest{
		Ward:             "ICU",
		StartTime:        start,
		EstimatedMinutes: 40,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.PredictedMinutes != 50 {
		t.Errorf("minutes = %v, want 50", pred.PredictedMinutes)
	}
	if pred.VarianceFromEstimate != 10 {
		t.Errorf("variance = %v, want 10", pred.VarianceFromEstimate)
	}
	if want := start.Add(50 * time.Minute); !pred.EstimatedEndTime.Equal(want) {
		t.Errorf("end time = %v, want %v", pred.EstimatedEndTime, want)
	}
}

func TestSnapshotErrorDegradesNotFails(t *testing.T) {
	contract := regressionContract(t, features.ContractDischarge, []float64{1}, 0, []string{"ward_avg_duration"})
	provider := &fakeProvider{err: utils.ErrDataSourceUnavailable}
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractDischarge: contract}, provider)

	pred, meta, err := svc.PredictDischarge(context.Background(), models.DischargeRequest{Ward: "ICU"})
	if err != nil {
		t.Fatalf("predict should degrade, got %v", err)
	}
	if !meta.Degraded {
		t.Error("meta should flag degraded aggregates")
	}
	if pred.HoursUntilDischarge != 48 {
		t.Errorf("hours = %v, want ICU default 48", pred.HoursUntilDischarge)
	}
}

func TestStatusReportsUnloadedContracts(t *testing.T) {
	contract := regressionContract(t, features.ContractDischarge, []float64{1}, 0, []string{"hour"})
	svc := NewPredictionService(nil, map[string]*features.Contract{features.ContractDischarge: contract}, nil)

	status := svc.Status()
	if len(status) != 3 {
		t.Fatalf("status entries = %d, want 3", len(status))
	}
	if !status[features.ContractDischarge].Loaded {
		t.Error("discharge should be loaded")
	}
	if status[features.ContractCleaning].Loaded {
		t.Error("cleaning should not be loaded")
	}
	if !svc.Healthy() {
		t.Error("service with one contract should be healthy")
	}
	if NewPredictionService(nil, nil, nil).Healthy() {
		t.Error("service with no contracts should be unhealthy")
	}
}
