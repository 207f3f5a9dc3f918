package session

import (
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/google/uuid"
)

// RouteSample is a position fix with the time it was taken.
type RouteSample struct {
	geo.Coordinate
	Timestamp time.Time `json:"timestamp"`
}

// FinalizeRequest is the frozen result of a stopped session, ready to be
// persisted (and re-submitted if persisting fails).
type FinalizeRequest struct {
	SessionID          uuid.UUID     `json:"session_id"`
	DistanceMeters     float64       `json:"distance_meters"`
	DistanceKilometers float64       `json:"distance_km"`
	Elapsed            time.Duration `json:"-"`
	ElapsedMillis      int64         `json:"elapsed_ms"`
	Duration           string        `json:"duration"`
}

// Session is the aggregate root for one tracking session. It is not safe
// for concurrent use; callers serialize access.
type Session struct {
	id             uuid.UUID
	status         SessionStatus
	route          []RouteSample
	distanceMeters float64
	startedAt      time.Time
	stoppedAt      time.Time
	elapsed        time.Duration
	result         *FinalizeRequest
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{
		id:     uuid.New(),
		status: StatusIdle,
	}
}

// --- Getters ---

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Status returns the current session status.
func (s *Session) Status() SessionStatus { return s.status }

// DistanceMeters returns the accumulated distance.
func (s *Session) DistanceMeters() float64 { return s.distanceMeters }

// StartedAt returns the start time, zero while idle.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// StoppedAt returns the stop time, zero unless stopped.
func (s *Session) StoppedAt() time.Time { return s.stoppedAt }

// Route returns a copy of the recorded samples.
func (s *Session) Route() []RouteSample {
	out := make([]RouteSample, len(s.route))
	copy(out, s.route)
	return out
}

// Coordinates returns the route as a polyline.
func (s *Session) Coordinates() []geo.Coordinate {
	out := make([]geo.Coordinate, len(s.route))
	for i, sample := range s.route {
		out[i] = sample.Coordinate
	}
	return out
}

// LastSample returns the most recent sample, if any.
func (s *Session) LastSample() (RouteSample, bool) {
	if len(s.route) == 0 {
		return RouteSample{}, false
	}
	return s.route[len(s.route)-1], true
}

// Result returns the frozen result once the session is stopped.
func (s *Session) Result() (FinalizeRequest, bool) {
	if s.result == nil {
		return FinalizeRequest{}, false
	}
	return *s.result, true
}

// --- Behavior ---

// Start seeds the route with the first fix and transitions idle to active.
func (s *Session) Start(firstFix RouteSample, startedAt time.Time) error {
	if !s.status.CanTransitionTo(StatusActive) {
		return domain.NewInvalidStateError(string(s.status), string(StatusActive))
	}
	s.route = []RouteSample{firstFix}
	s.distanceMeters = 0
	s.startedAt = startedAt
	s.status = StatusActive
	return nil
}

// OnSample appends a fix while active and adds the distance from the
// previous fix. Samples outside the active state are ignored; it reports
// whether the sample was applied.
func (s *Session) OnSample(sample RouteSample) bool {
	if s.status != StatusActive {
		return false
	}
	if prev, ok := s.LastSample(); ok {
		s.distanceMeters += geo.Distance(prev.Coordinate, sample.Coordinate)
	}
	s.route = append(s.route, sample)
	return true
}

// Stop freezes the session, recomputes the distance over the full route
// and returns the result to persist.
func (s *Session) Stop(now time.Time) (FinalizeRequest, error) {
	if !s.status.CanTransitionTo(StatusStopped) {
		return FinalizeRequest{}, domain.NewInvalidStateError(string(s.status), string(StatusStopped))
	}

	s.status = StatusStopped
	s.stoppedAt = now
	s.distanceMeters = geo.TotalDistance(s.Coordinates())
	s.elapsed = now.Sub(s.startedAt)
	if s.elapsed < 0 {
		s.elapsed = 0
	}

	s.result = &FinalizeRequest{
		SessionID:          s.id,
		DistanceMeters:     s.distanceMeters,
		DistanceKilometers: s.distanceMeters / 1000,
		Elapsed:            s.elapsed,
		ElapsedMillis:      s.elapsed.Milliseconds(),
		Duration:           FormatElapsed(s.elapsed),
	}
	return *s.result, nil
}

// ElapsedSince returns reference minus the start time while active, the
// frozen elapsed time once stopped, and false while idle.
func (s *Session) ElapsedSince(reference time.Time) (time.Duration, bool) {
	switch s.status {
	case StatusActive:
		return reference.Sub(s.startedAt), true
	case StatusStopped:
		return s.elapsed, true
	default:
		return 0, false
	}
}
