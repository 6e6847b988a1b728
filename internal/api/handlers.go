package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardops/bedcast/internal/models"
	"github.com/wardops/bedcast/internal/services"
	"github.com/wardops/bedcast/internal/utils"
)

const serviceVersion = "1.0.0"

// Handler routes the prediction endpoints onto a PredictionService.
type Handler struct {
	logger  *slog.Logger
	service *services.PredictionService
}

// NewHandler builds the HTTP routing layer.
func NewHandler(logger *slog.Logger, service *services.PredictionService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// Routes returns the configured request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict/discharge", h.predictDischarge)
	mux.HandleFunc("POST /predict/bed-availability", h.predictAvailability)
	mux.HandleFunc("POST /predict/cleaning-duration", h.predictCleaning)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /models/status", h.modelsStatus)
	mux.HandleFunc("GET /{$}", h.root)
	return mux
}

type dischargeBody struct {
	Ward          string `json:"ward"`
	AdmissionTime string `json:"admission_time,omitempty"`
}

type availabilityBody struct {
	Ward         string `json:"ward"`
	CurrentTime  string `json:"current_time,omitempty"`
	HorizonHours int    `json:"prediction_horizon_hours,omitempty"`
}

type cleaningBody struct {
	Ward             string  `json:"ward"`
	StartTime        string  `json:"start_time,omitempty"`
	EstimatedMinutes float64 `json:"estimated_duration,omitempty"`
}

func (h *Handler) predictDischarge(w http.ResponseWriter, r *http.Request) {
	var body dischargeBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Ward == "" {
		h.writeError(w, http.StatusBadRequest, "ward is required")
		return
	}
	admission, ok := h.optionalTime(w, body.AdmissionTime, "admission_time")
	if !ok {
		return
	}

	pred, meta, err := h.service.PredictDischarge(r.Context(), models.DischargeRequest{
		Ward:          body.Ward,
		AdmissionTime: admission,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Prediction: map[string]any{
			"hours_until_discharge":    pred.HoursUntilDischarge,
			"estimated_discharge_time": pred.EstimatedDischargeTime.UTC().Format(time.RFC3339),
		},
		Metadata: metadata(body.Ward, "admission_time", utils.OrNow(admission), meta),
	})
}

func (h *Handler) predictAvailability(w http.ResponseWriter, r *http.Request) {
	var body availabilityBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Ward == "" {
		h.writeError(w, http.StatusBadRequest, "ward is required")
		return
	}
	current, ok := h.optionalTime(w, body.CurrentTime, "current_time")
	if !ok {
		return
	}

	pred, meta, err := h.service.PredictAvailability(r.Context(), models.AvailabilityRequest{
		Ward:         body.Ward,
		CurrentTime:  current,
		HorizonHours: body.HorizonHours,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	confidence := pred.Probability
	if !pred.WillBeAvailable {
		confidence = 1 - pred.Probability
	}
	h.writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Prediction: map[string]any{
			"will_be_available":        pred.WillBeAvailable,
			"probability":              pred.Probability,
			"prediction_horizon_hours": pred.HorizonHours,
		},
		Confidence: &confidence,
		Metadata:   metadata(body.Ward, "current_time", utils.OrNow(current), meta),
	})
}

func (h *Handler) predictCleaning(w http.ResponseWriter, r *http.Request) {
	var body cleaningBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Ward == "" {
		h.writeError(w, http.StatusBadRequest, "ward is required")
		return
	}
	start, ok := h.optionalTime(w, body.StartTime, "start_time")
	if !ok {
		return
	}

	pred, meta, err := h.service.PredictCleaning(r.Context(), models.CleaningRequest{
		Ward:             body.Ward,
		StartTime:        start,
		EstimatedMinutes: body.EstimatedMinutes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Prediction: map[string]any{
			"predicted_duration_minutes": pred.PredictedMinutes,
			"estimated_end_time":         pred.EstimatedEndTime.UTC().Format(time.RFC3339),
			"variance_from_estimate":     pred.VarianceFromEstimate,
		},
		Metadata: metadata(body.Ward, "start_time", utils.OrNow(start), meta),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if !h.service.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{
		"status":         status,
		"models_loaded":  h.service.Healthy(),
		"uptime_seconds": int(h.service.Uptime().Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) modelsStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"models":    h.service.Status(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service": "bedcast",
		"version": serviceVersion,
		"endpoints": []string{
			"POST /predict/discharge",
			"POST /predict/bed-availability",
			"POST /predict/cleaning-duration",
			"GET /health",
			"GET /models/status",
		},
	})
}

// envelope is the success response shape shared by the prediction endpoints.
type envelope struct {
	Success    bool           `json:"success"`
	Prediction map[string]any `json:"prediction"`
	Confidence *float64       `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  string         `json:"timestamp"`
}

func metadata(ward, timeField string, effective time.Time, meta services.Meta) map[string]any {
	out := map[string]any{
		"ward":          ward,
		timeField:       effective.UTC().Format(time.RFC3339),
		"model_version": meta.ModelVersion,
	}
	if meta.Degraded {
		out["degraded"] = true
	}
	return out
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// optionalTime parses an RFC3339 field, treating absence as the zero time.
func (h *Handler) optionalTime(w http.ResponseWriter, value, field string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := utils.ParseRFC3339(value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, field+" must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, utils.ErrModelNotLoaded) {
		h.writeError(w, http.StatusServiceUnavailable, "model unavailable")
		return
	}
	h.logger.Error("prediction failed", slog.Any("error", err))
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, map[string]any{
		"success":   false,
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response failed", slog.Any("error", err))
	}
}
