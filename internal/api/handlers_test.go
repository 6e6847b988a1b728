package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wardops/bedcast/internal/features"
	"github.com/wardops/bedcast/internal/mlmodel"
	"github.com/wardops/bedcast/internal/services"
)

func testService(t *testing.T) *services.PredictionService {
	t.Helper()
	discharge, err := features.NewContract(features.ContractDischarge, features.Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLinear, Weights: []float64{1}},
		FeatureColumns: []string{"ward_avg_duration"},
		Version:        "1.0.0",
	})
	if err != nil {
		t.Fatalf("discharge contract: %v", err)
	}
	availability, err := features.NewContract(features.ContractAvailability, features.Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLogistic, Weights: []float64{0}, Intercept: 2},
		FeatureColumns: []string{"hour"},
		Version:        "1.0.0",
	})
	if err != nil {
		t.Fatalf("availability contract: %v", err)
	}
	cleaning, err := features.NewContract(features.ContractCleaning, features.Artifact{
		Model:          mlmodel.Params{Type: mlmodel.TypeLinear, Weights: []float64{1}, Intercept: 5},
		FeatureColumns: []string{"estimated_duration"},
		Version:        "1.0.0",
	})
	if err != nil {
		t.Fatalf("cleaning contract: %v", err)
	}
	return services.NewPredictionService(nil, map[string]*features.Contract{
		features.ContractDischarge:    discharge,
		features.ContractAvailability: availability,
		features.ContractCleaning:     cleaning,
	}, nil)
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, decoded
}

func TestPredictDischargeEndpoint(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodPost, "/predict/discharge",
		`{"ward":"General","admission_time":"2024-05-06T09:00:00Z"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	if resp["success"] != true {
		t.Error("success flag missing")
	}
	pred := resp["prediction"].(map[string]any)
	if pred["hours_until_discharge"].(float64) != 36 {
		t.Errorf("hours = %v, want default-driven 36", pred["hours_until_discharge"])
	}
	if pred["estimated_discharge_time"] != "2024-05-07T21:00:00Z" {
		t.Errorf("discharge time = %v", pred["estimated_discharge_time"])
	}
	meta := resp["metadata"].(map[string]any)
	if meta["ward"] != "General" || meta["model_version"] != "1.0.0" {
		t.Errorf("metadata = %v", meta)
	}
	if _, err := time.Parse(time.RFC3339, resp["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", resp["timestamp"])
	}
}

func TestPredictAvailabilityEndpoint(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodPost, "/predict/bed-availability",
		`{"ward":"ICU"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	pred := resp["prediction"].(map[string]any)
	if pred["will_be_available"] != true {
		t.Errorf("availability = %v", pred["will_be_available"])
	}
	if pred["prediction_horizon_hours"].(float64) != 6 {
		t.Errorf("horizon = %v, want default 6", pred["prediction_horizon_hours"])
	}
	if conf, ok := resp["confidence"].(float64); !ok || conf <= 0.5 {
		t.Errorf("confidence = %v", resp["confidence"])
	}
}

func TestPredictCleaningEndpoint(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodPost, "/predict/cleaning-duration",
		`{"ward":"ICU","start_time":"2024-05-06T10:00:00Z","estimated_duration":40}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	pred := resp["prediction"].(map[string]any)
	if pred["predicted_duration_minutes"].(float64) != 45 {
		t.Errorf("minutes = %v, want 45", pred["predicted_duration_minutes"])
	}
	if pred["variance_from_estimate"].(float64) != 5 {
		t.Errorf("variance = %v, want 5", pred["variance_from_estimate"])
	}
}

func TestMissingWardRejected(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodPost, "/predict/discharge", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["success"] != false {
		t.Error("error envelope missing success=false")
	}
}

func TestMalformedTimeRejected(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, _ := doRequest(t, handler, http.MethodPost, "/predict/discharge",
		`{"ward":"ICU","admission_time":"yesterday"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnloadedModelReturns503(t *testing.T) {
	svc := services.NewPredictionService(nil, nil, nil)
	handler := NewHandler(nil, svc).Routes()
	rec, resp := doRequest(t, handler, http.MethodPost, "/predict/discharge", `{"ward":"ICU"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg, _ := resp["error"].(string); !strings.Contains(msg, "model unavailable") {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v", resp["status"])
	}

	empty := NewHandler(nil, services.NewPredictionService(nil, nil, nil)).Routes()
	rec, resp = doRequest(t, empty, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable || resp["status"] != "degraded" {
		t.Errorf("degraded health = %d %v", rec.Code, resp["status"])
	}
}

func TestModelsStatusEndpoint(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodGet, "/models/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	modelsInfo := resp["models"].(map[string]any)
	if len(modelsInfo) != 3 {
		t.Errorf("models = %v", modelsInfo)
	}
	discharge := modelsInfo["discharge"].(map[string]any)
	if discharge["loaded"] != true {
		t.Errorf("discharge status = %v", discharge)
	}
}

func TestRootServiceInfo(t *testing.T) {
	handler := NewHandler(nil, testService(t)).Routes()
	rec, resp := doRequest(t, handler, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["service"] != "bedcast" {
		t.Errorf("service = %v", resp["service"])
	}
}
