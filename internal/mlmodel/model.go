// Package mlmodel hosts the opaque statistical models behind the prediction
// service. Callers only see the Predictor interface and the serialized
// parameter block inside a model artifact; nothing outside this package
// depends on the model family.
package mlmodel

import (
	"fmt"
	"math"
)

// Predictor is the inference entry point every contract invokes.
type Predictor interface {
	Predict(features []float64) float64
}

// Classifier extends Predictor with a calibrated probability output.
type Classifier interface {
	Predictor
	PredictProba(features []float64) float64
}

// Model type identifiers stored in artifacts.
const (
	TypeLinear   = "linear"
	TypeLogistic = "logistic"
)

// Params is the serialized parameter block of a fitted model.
type Params struct {
	Type      string    `json:"type"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Load reconstructs a Predictor from its serialized parameters.
func Load(p Params) (Predictor, error) {
	switch p.Type {
	case TypeLinear:
		return &LinearModel{Weights: p.Weights, Intercept: p.Intercept}, nil
	case TypeLogistic:
		return &LogisticModel{Weights: p.Weights, Intercept: p.Intercept}, nil
	default:
		return nil, fmt.Errorf("unknown model type %q", p.Type)
	}
}

// LinearModel predicts a continuous target from a weighted feature sum.
type LinearModel struct {
	Weights   []float64
	Intercept float64
}

// Predict returns the regression output for one feature vector.
func (m *LinearModel) Predict(features []float64) float64 {
	return m.Intercept + dot(m.Weights, features)
}

// Params returns the serializable parameter block.
func (m *LinearModel) Params() Params {
	return Params{Type: TypeLinear, Weights: m.Weights, Intercept: m.Intercept}
}

// LogisticModel predicts a binary outcome with a probability.
type LogisticModel struct {
	Weights   []float64
	Intercept float64
}

// Predict returns 1 when the positive-class probability reaches 0.5.
func (m *LogisticModel) Predict(features []float64) float64 {
	if m.PredictProba(features) >= 0.5 {
		return 1
	}
	return 0
}

// PredictProba returns the positive-class probability.
func (m *LogisticModel) PredictProba(features []float64) float64 {
	return sigmoid(m.Intercept + dot(m.Weights, features))
}

// Params returns the serializable parameter block.
func (m *LogisticModel) Params() Params {
	return Params{Type: TypeLogistic, Weights: m.Weights, Intercept: m.Intercept}
}

func dot(w, x []float64) float64 {
	n := len(w)
	if len(x) < n {
		n = len(x)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += w[i] * x[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
