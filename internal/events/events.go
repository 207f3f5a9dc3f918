package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicLocationSamples = "location.samples"
	TopicRunEvents       = "run.events"
)

// CloudEvent types.
const (
	LocationSampled = "location.sampled"
	RunRecorded     = "run.recorded"
)

// EventSource is the CloudEvent source of everything this service publishes.
const EventSource = "service-tracking"

// LocationSampledEvent is one position fix published by a device.
type LocationSampledEvent struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRecordedEvent is published after a run record has been stored.
type RunRecordedEvent struct {
	RunID              int64     `json:"run_id"`
	SessionID          uuid.UUID `json:"session_id"`
	DistanceKilometers float64   `json:"distance_km"`
	Duration           string    `json:"duration"`
	ElapsedMillis      int64     `json:"elapsed_ms"`
	RecordedAt         time.Time `json:"recorded_at"`
}
