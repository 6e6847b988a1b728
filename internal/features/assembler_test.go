package features

import (
	"errors"
	"testing"
	"time"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/mlmodel"
	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/utils"
)

func testContract(t *testing.T, name string, featureNames []string) *Contract {
	t.Helper()
	contract, err := NewContract(name, Artifact{
		Model: mlmodel.Params{
			Type:    mlmodel.TypeLinear,
			Weights: make([]float64, len(featureNames)),
		},
		FeatureColumns: featureNames,
		Version:        "1.0.0",
	})
	if err != nil {
		t.Fatalf("build contract: %v", err)
	}
	return contract
}

func snapshotWithSessions(t *testing.T, sessions []models.Session) *aggregate.Snapshot {
	t.Helper()
	snap := aggregate.EmptySnapshot()
	snap.Occupancy = aggregate.Build(sessions, aggregate.HoursValue)
	return snap
}

func TestAssembleOrderMatchesContract(t *testing.T) {
	names := []string{"ward_encoded", "hour", "is_weekend", "month"}
	contract := testContract(t, ContractDischarge, names)

	// Wednesday 14:00.
	at := time.Date(2024, time.July, 3, 14, 0, 0, 0, time.UTC)
	vec, err := Assemble(contract, Inputs{Ward: "ICU", Time: at})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(vec.Values) != len(names) {
		t.Fatalf("got %d values, want %d", len(vec.Values), len(names))
	}
	want := []float64{0, 14, 0, 7}
	for i, w := range want {
		if vec.Values[i] != w {
			t.Errorf("values[%d] (%s) = %v, want %v", i, names[i], vec.Values[i], w)
		}
	}
}

func TestUnknownWardEncodesToDefault(t *testing.T) {
	if got := WardCode("Oncology"); got != 2 {
		t.Errorf("unknown ward code = %d, want 2 (General)", got)
	}
	if got := WardCode("Pediatric"); got != 3 {
		t.Errorf("alternative spelling code = %d, want 3", got)
	}
}

func TestAggregateFeaturePrefersDataOverDefault(t *testing.T) {
	contract := testContract(t, ContractDischarge, []string{"ward_avg_duration"})

	start := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
	snap := snapshotWithSessions(t, []models.Session{
		{ResourceID: "bed-a", Ward: "General", Start: start, End: start.Add(48 * time.Hour)},
	})

	vec, err := Assemble(contract, Inputs{Ward: "General", Time: start, Snapshot: snap})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if vec.Values[0] != 48.0 {
		t.Errorf("ward_avg_duration = %v, want observed 48 not default 36", vec.Values[0])
	}

	// No snapshot at all: the documented default constant.
	vec, err = Assemble(contract, Inputs{Ward: "General", Time: start})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if vec.Values[0] != 36.0 {
		t.Errorf("ward_avg_duration without data = %v, want default 36", vec.Values[0])
	}
}

func TestCleaningContractUsesMinuteRollup(t *testing.T) {
	contract := testContract(t, ContractCleaning, []string{"ward_avg_duration", "ward_std_duration"})

	vec, err := Assemble(contract, Inputs{Ward: "ICU", Time: time.Now()})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if vec.Values[0] != 35.0 {
		t.Errorf("cleaning ward default = %v, want 35 minutes", vec.Values[0])
	}
	if vec.Values[1] != 10.0 {
		t.Errorf("cleaning std default = %v, want 10", vec.Values[1])
	}
}

func TestOverridesReplaceProducers(t *testing.T) {
	contract := testContract(t, ContractAvailability, []string{"is_occupied", "is_cleaning"})

	vec, err := Assemble(contract, Inputs{
		Ward:      "General",
		Time:      time.Now(),
		Overrides: map[string]float64{"is_occupied": 0},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if vec.Values[0] != 0 {
		t.Errorf("override ignored: is_occupied = %v", vec.Values[0])
	}
	if vec.Values[1] != 0 {
		t.Errorf("is_cleaning = %v, want 0", vec.Values[1])
	}
}

func TestValidateRejectsUnknownFeature(t *testing.T) {
	_, err := NewContract(ContractDischarge, Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLinear, Weights: []float64{0}},
		FeatureColumns: []string{"patient_age"},
	})
	if err == nil {
		t.Fatal("expected feature mismatch error")
	}
	var mismatch *utils.FeatureMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error type = %T, want FeatureMismatchError", err)
	}
	if mismatch.Feature != "patient_age" {
		t.Errorf("mismatch feature = %s", mismatch.Feature)
	}
}
