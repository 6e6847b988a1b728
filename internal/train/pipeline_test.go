package train

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/wardops/bedcast/internal/features"
	"github.com/wardops/bedcast/internal/models"
)

type fakeSource struct {
	events map[models.EventClass][]models.Event
	err    error
}

func (f *fakeSource) FetchEvents(_ context.Context, class models.EventClass, _, _ time.Time) ([]models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[class], nil
}

func stayEvents(resource, ward string, start time.Time, d time.Duration, seq int64) []models.Event {
	return []models.Event{
		{ResourceID: resource, Ward: ward, Kind: models.ChangeStart, Timestamp: start, Seq: seq},
		{ResourceID: resource, Ward: ward, Kind: models.ChangeEnd, Timestamp: start.Add(d), Seq: seq + 1},
	}
}

func TestTrainDischargeProducesLoadableArtifact(t *testing.T) {
	base := time.Now().UTC().Add(-10 * 24 * time.Hour)
	var events []models.Event
	// Varied stays so the design matrix is not rank deficient.
	stays := []struct {
		ward  string
		hour  time.Duration
		stay  time.Duration
	}{
		{"General", 8 * time.Hour, 48 * time.Hour},
		{"General", 14 * time.Hour, 40 * time.Hour},
		{"ICU", 2 * time.Hour, 72 * time.Hour},
		{"ICU", 20 * time.Hour, 60 * time.Hour},
		{"Emergency", 11 * time.Hour, 12 * time.Hour},
		{"Surgery", 9 * time.Hour, 30 * time.Hour},
	}
	for i, s := range stays {
		start := base.Add(time.Duration(i) * 24 * time.Hour).Add(s.hour)
		events = append(events, stayEvents("bed-"+s.ward, s.ward, start, s.stay, int64(i*2))...)
	}
	source := &fakeSource{events: map[models.EventClass][]models.Event{
		models.ClassOccupancy: events,
	}}

	dir := t.TempDir()
	p := NewPipeline(nil, source, 0)
	report, err := p.Train(context.Background(), features.ContractDischarge, dir)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Rows != len(stays) {
		t.Errorf("rows = %d, want %d", report.Rows, len(stays))
	}
	if _, ok := report.Metrics["mae"]; !ok {
		t.Errorf("metrics = %v, want mae", report.Metrics)
	}

	contract, err := features.LoadContract(features.ContractDischarge, report.Path)
	if err != nil {
		t.Fatalf("load trained artifact: %v", err)
	}
	if len(contract.Features) != 11 {
		t.Errorf("feature columns = %d, want 11", len(contract.Features))
	}
	if contract.Version == "" {
		t.Error("artifact version missing")
	}

	// The fitted model should track the training targets reasonably for an
	// easily separable dataset.
	vec, err := features.Assemble(contract, features.Inputs{Ward: "ICU", Time: base})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	pred := contract.Predictor().Predict(vec.Values)
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		t.Errorf("prediction = %v", pred)
	}
}

func TestTrainAvailabilityFitsClassifier(t *testing.T) {
	base := time.Now().UTC().Add(-8 * 24 * time.Hour)
	occ := append(
		stayEvents("bed-1", "General", base, 30*time.Hour, 1),
		stayEvents("bed-2", "ICU", base.Add(48*time.Hour), 50*time.Hour, 3)...)
	clean := stayEvents("bed-1", "General", base.Add(31*time.Hour), 30*time.Minute, 10)

	source := &fakeSource{events: map[models.EventClass][]models.Event{
		models.ClassOccupancy: occ,
		models.ClassCleaning:  clean,
	}}

	dir := t.TempDir()
	report, err := NewPipeline(nil, source, 0).Train(context.Background(), features.ContractAvailability, dir)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	// Two rows per stay plus one per cleaning task.
	if report.Rows != 5 {
		t.Errorf("rows = %d, want 5", report.Rows)
	}
	if _, ok := report.Metrics["accuracy"]; !ok {
		t.Errorf("metrics = %v, want accuracy", report.Metrics)
	}

	contract, err := features.LoadContract(features.ContractAvailability, report.Path)
	if err != nil {
		t.Fatalf("load trained artifact: %v", err)
	}
	vec, err := features.Assemble(contract, features.Inputs{Ward: "General", Time: base})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	proba := contract.Predictor().Predict(vec.Values)
	if proba != 0 && proba != 1 {
		t.Errorf("classifier Predict = %v, want a hard 0/1 label", proba)
	}
}

func TestTrainCleaningUsesMinuteTargets(t *testing.T) {
	base := time.Now().UTC().Add(-5 * 24 * time.Hour)
	var clean []models.Event
	for i, minutes := range []time.Duration{25, 30, 35, 40} {
		start := base.Add(time.Duration(i) * 6 * time.Hour)
		clean = append(clean, stayEvents("bed-1", "ICU", start, minutes*time.Minute, int64(i*2))...)
	}
	source := &fakeSource{events: map[models.EventClass][]models.Event{
		models.ClassCleaning: clean,
	}}

	dir := t.TempDir()
	report, err := NewPipeline(nil, source, 0).Train(context.Background(), features.ContractCleaning, dir)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Rows != 4 {
		t.Errorf("rows = %d, want 4", report.Rows)
	}
	// Targets are minutes: the error of a sane fit stays well under an hour.
	if mae := report.Metrics["mae"]; mae > 30 {
		t.Errorf("mae = %v minutes, fit looks broken", mae)
	}
}

func TestTrainFailsWithoutSessions(t *testing.T) {
	source := &fakeSource{events: map[models.EventClass][]models.Event{}}
	_, err := NewPipeline(nil, source, 0).Train(context.Background(), features.ContractDischarge, t.TempDir())
	if err == nil {
		t.Fatal("expected error with an empty window")
	}
}

func TestTrainUnknownContract(t *testing.T) {
	_, err := NewPipeline(nil, &fakeSource{}, 0).Train(context.Background(), "triage", t.TempDir())
	if err == nil {
		t.Fatal("expected error for unknown contract")
	}
}

func TestTrainAllStopsOnFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("store down")}
	reports, err := NewPipeline(nil, source, 0).TrainAll(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(reports) != 0 {
		t.Errorf("reports = %d, want none", len(reports))
	}
	if _, statErr := os.Stat(features.ArtifactPath(t.TempDir(), features.ContractDischarge)); statErr == nil {
		t.Error("artifact written despite failed fetch")
	}
}
