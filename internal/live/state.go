package live

import (
	"math"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/google/uuid"
)

// State is the observable snapshot of the current tracking session.
type State struct {
	SessionID          uuid.UUID        `json:"session_id"`
	Status             string           `json:"status"`
	Route              []geo.Coordinate `json:"route"`
	DistanceMeters     float64          `json:"distance_meters"`
	DistanceKilometers float64          `json:"distance_km"`
	ElapsedMillis      int64            `json:"elapsed_ms"`
	Elapsed            string           `json:"elapsed"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	LastError          string           `json:"last_error,omitempty"`
}

// IdleState is the snapshot shown before any session has started.
func IdleState() State {
	return State{
		Status:  string(session.StatusIdle),
		Route:   []geo.Coordinate{},
		Elapsed: session.FormatElapsed(0),
	}
}

// Snapshot builds the State of s as of now.
func Snapshot(s *session.Session, now time.Time, lastErr string) State {
	if s == nil {
		return IdleState()
	}

	elapsed, _ := s.ElapsedSince(now)
	if elapsed < 0 {
		elapsed = 0
	}

	st := State{
		SessionID:          s.ID(),
		Status:             s.Status().String(),
		Route:              s.Coordinates(),
		DistanceMeters:     s.DistanceMeters(),
		DistanceKilometers: roundKilometers(s.DistanceMeters()),
		ElapsedMillis:      elapsed.Milliseconds(),
		Elapsed:            session.FormatElapsed(elapsed),
		LastError:          lastErr,
	}
	if started := s.StartedAt(); !started.IsZero() {
		st.StartedAt = &started
	}
	return st
}

// roundKilometers converts meters to kilometers with two decimals.
func roundKilometers(meters float64) float64 {
	return math.Round(meters/10) / 100
}
