package ingest

import (
	"testing"
	"time"

	"github.com/wardops/bedcast/internal/models"
)

func TestParseValidMessage(t *testing.T) {
	class, ev, err := Parse("occupancy", "bed-12", "ICU", "start", "2024-05-06T09:00:00Z", "nurse-7", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if class != models.ClassOccupancy {
		t.Errorf("class = %s", class)
	}
	if ev.ResourceID != "bed-12" || ev.Ward != "ICU" || ev.Kind != models.ChangeStart {
		t.Errorf("event = %+v", ev)
	}
	want := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v", ev.Timestamp)
	}
}

func TestParseCleaningEstimate(t *testing.T) {
	class, ev, err := Parse("cleaning", "bed-3", "General", "start", "2024-05-06T09:00:00+02:00", "", 45)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if class != models.ClassCleaning || ev.EstimateMinutes != 45 {
		t.Errorf("class=%s estimate=%v", class, ev.EstimateMinutes)
	}
	// Timestamps normalize to UTC for the store's ordering key.
	if ev.Timestamp.Hour() != 7 {
		t.Errorf("timestamp not normalized: %v", ev.Timestamp)
	}
}

func TestParseRejectsMalformedFields(t *testing.T) {
	cases := []struct {
		name                                            string
		class, resource, ward, kind, timestamp, actorID string
	}{
		{"unknown class", "triage", "bed-1", "ICU", "start", "2024-05-06T09:00:00Z", ""},
		{"unknown kind", "occupancy", "bed-1", "ICU", "transfer", "2024-05-06T09:00:00Z", ""},
		{"missing resource", "occupancy", "", "ICU", "start", "2024-05-06T09:00:00Z", ""},
		{"bad timestamp", "occupancy", "bed-1", "ICU", "start", "yesterday", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Parse(tc.class, tc.resource, tc.ward, tc.kind, tc.timestamp, tc.actorID, 0); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	raw := []byte(`{"class":"occupancy","resource_id":"bed-9","ward":"Surgery","change_kind":"end","timestamp":"2024-05-06T12:00:00Z"}`)
	class, ev, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if class != models.ClassOccupancy || ev.Kind != models.ChangeEnd || ev.Ward != "Surgery" {
		t.Errorf("decoded = %s %+v", class, ev)
	}

	if _, _, err := decode([]byte("{broken")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
