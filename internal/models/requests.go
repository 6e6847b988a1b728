package models

import "time"

// DischargeRequest asks how long a patient admitted to a ward will stay.
type DischargeRequest struct {
	Ward          string
	AdmissionTime time.Time // zero value means "now"
}

// DischargePrediction is the domain answer for a discharge request.
type DischargePrediction struct {
	HoursUntilDischarge    float64
	EstimatedDischargeTime time.Time
}

// AvailabilityRequest asks whether a bed in the ward frees up soon.
type AvailabilityRequest struct {
	Ward         string
	CurrentTime  time.Time // zero value means "now"
	HorizonHours int
}

// AvailabilityPrediction is the domain answer for an availability request.
type AvailabilityPrediction struct {
	WillBeAvailable bool
	Probability     float64
	HorizonHours    int
}

// CleaningRequest asks how long a cleaning task will actually take.
type CleaningRequest struct {
	Ward             string
	StartTime        time.Time // zero value means "now"
	EstimatedMinutes float64
}

// CleaningPrediction is the domain answer for a cleaning request.
type CleaningPrediction struct {
	PredictedMinutes     float64
	EstimatedEndTime     time.Time
	VarianceFromEstimate float64
}
