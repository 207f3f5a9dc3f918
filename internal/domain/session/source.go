package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default delivery thresholds for a subscription.
const (
	DefaultMinInterval       = time.Second
	DefaultMinDistanceMeters = 1.0
)

// SubscribeOptions bounds how often a source may deliver samples.
type SubscribeOptions struct {
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// DefaultSubscribeOptions returns the standard 1 s / 1 m thresholds.
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{
		MinInterval:       DefaultMinInterval,
		MinDistanceMeters: DefaultMinDistanceMeters,
	}
}

// SampleSource supplies live position fixes. Implementations must deliver
// samples one at a time, in non-decreasing timestamp order.
type SampleSource interface {
	// RequestAuthorization asks for location access. A false result with a
	// nil error means access was refused.
	RequestAuthorization(ctx context.Context) (bool, error)

	// Subscribe starts delivery to onSample. onError receives transient fix
	// failures; delivery may resume afterwards.
	Subscribe(ctx context.Context, opts SubscribeOptions, onSample func(RouteSample), onError func(error)) (uuid.UUID, error)

	// Unsubscribe stops delivery for the given handle.
	Unsubscribe(handle uuid.UUID) error
}
