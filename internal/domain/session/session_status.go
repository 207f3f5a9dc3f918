package session

import "fmt"

// SessionStatus represents where a tracking session is in its lifecycle.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusActive  SessionStatus = "active"
	StatusStopped SessionStatus = "stopped"
)

// validTransitions defines the state machine for session status transitions.
var validTransitions = map[SessionStatus][]SessionStatus{
	StatusIdle:    {StatusActive},
	StatusActive:  {StatusStopped},
	StatusStopped: {},
}

// IsValid returns true if the status is a recognized session status.
func (s SessionStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus converts a string to a SessionStatus, returning an error if invalid.
func ParseSessionStatus(s string) (SessionStatus, error) {
	status := SessionStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid session status: %s", s)
	}
	return status, nil
}
