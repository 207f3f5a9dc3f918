package run

import (
	"math"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
)

// RunRecord is the durable summary of one completed tracking session.
// It is immutable once created.
type RunRecord struct {
	id                 int64
	distanceKilometers float64
	duration           string
	recordedAt         time.Time
}

// ValidateNew checks the caller-supplied fields of a record to be created.
func ValidateNew(distanceKilometers float64, duration string) error {
	if math.IsNaN(distanceKilometers) || math.IsInf(distanceKilometers, 0) {
		return domain.NewValidationError("distance must be a finite number")
	}
	if distanceKilometers < 0 {
		return domain.NewValidationError("distance must not be negative")
	}
	if strings.TrimSpace(duration) == "" {
		return domain.NewValidationError("duration is required")
	}
	return nil
}

// ReconstructRunRecord rebuilds a RunRecord from persistence data (no validation).
func ReconstructRunRecord(id int64, distanceKilometers float64, duration string, recordedAt time.Time) RunRecord {
	return RunRecord{
		id:                 id,
		distanceKilometers: distanceKilometers,
		duration:           duration,
		recordedAt:         recordedAt.UTC(),
	}
}

// ID returns the identifier assigned by the store.
func (r RunRecord) ID() int64 { return r.id }

// DistanceKilometers returns the run distance.
func (r RunRecord) DistanceKilometers() float64 { return r.distanceKilometers }

// Duration returns the formatted elapsed time, e.g. "1h 2m 3s".
func (r RunRecord) Duration() string { return r.duration }

// RecordedAt returns when the store accepted the record.
func (r RunRecord) RecordedAt() time.Time { return r.recordedAt }

// RecordedAtISO returns RecordedAt as an ISO-8601 string.
func (r RunRecord) RecordedAtISO() string { return FormatTimestamp(r.recordedAt) }

// FormatTimestamp renders t in the ISO-8601 layout records are stored with.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseTimestamp parses a stored ISO-8601 timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
