// Package features owns the feature-vector contract shared by training and
// serving. A model artifact fixes an ordered feature list; the assembler
// produces values in exactly that order from exactly one implementation of
// each producer, so offline datasets and live requests cannot diverge.
package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wardops/bedcast/internal/mlmodel"
)

// Contract names. Artifact files are <name>_model.json under the models dir.
const (
	ContractDischarge    = "discharge"
	ContractAvailability = "bed_availability"
	ContractCleaning     = "cleaning_duration"
)

// Artifact is the persisted model package. The assembler reads only
// FeatureColumns; the model parameter block stays opaque to it.
type Artifact struct {
	Model          mlmodel.Params     `json:"model"`
	FeatureColumns []string           `json:"feature_columns"`
	Metrics        map[string]float64 `json:"metrics"`
	ModelType      string             `json:"model_type"`
	TrainedAt      time.Time          `json:"trained_at"`
	Version        string             `json:"version"`
}

// Contract binds a loaded model handle to its ordered feature list. Built
// once at startup, read-only afterwards.
type Contract struct {
	Name      string
	Features  []string
	Version   string
	TrainedAt time.Time

	predictor mlmodel.Predictor
}

// Predictor exposes the opaque inference handle.
func (c *Contract) Predictor() mlmodel.Predictor {
	return c.predictor
}

// ArtifactPath returns the conventional artifact location for a contract.
func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, name+"_model.json")
}

// LoadContract reads and validates a model artifact from disk. A missing file
// is returned as-is so callers can distinguish "never trained" from a corrupt
// artifact.
func LoadContract(name, path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return NewContract(name, artifact)
}

// NewContract builds a Contract from an artifact and validates the feature
// list against the known producers.
func NewContract(name string, artifact Artifact) (*Contract, error) {
	if len(artifact.FeatureColumns) == 0 {
		return nil, fmt.Errorf("artifact for %s has no feature columns", name)
	}
	predictor, err := mlmodel.Load(artifact.Model)
	if err != nil {
		return nil, fmt.Errorf("load model for %s: %w", name, err)
	}
	contract := &Contract{
		Name:      name,
		Features:  append([]string(nil), artifact.FeatureColumns...),
		Version:   artifact.Version,
		TrainedAt: artifact.TrainedAt,
		predictor: predictor,
	}
	if err := Validate(contract); err != nil {
		return nil, err
	}
	return contract, nil
}

// SaveArtifact writes a model artifact, creating the directory if needed.
func SaveArtifact(path string, artifact Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
