package source

import (
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
)

// Throttle decides whether a sample is far enough from the last delivered
// one, in both time and space, to be delivered. A zero threshold disables
// that check. Samples older than the last delivered one are always dropped.
type Throttle struct {
	opts session.SubscribeOptions
	last *session.RouteSample
}

// NewThrottle creates a Throttle with the given thresholds.
func NewThrottle(opts session.SubscribeOptions) *Throttle {
	return &Throttle{opts: opts}
}

// Allow reports whether sample should be delivered, and if so records it
// as the last delivered sample.
func (t *Throttle) Allow(sample session.RouteSample) bool {
	if t.last != nil {
		gap := sample.Timestamp.Sub(t.last.Timestamp)
		if gap < 0 {
			return false
		}
		if t.opts.MinInterval > 0 && gap < t.opts.MinInterval {
			return false
		}
		if t.opts.MinDistanceMeters > 0 && geo.Distance(t.last.Coordinate, sample.Coordinate) < t.opts.MinDistanceMeters {
			return false
		}
	}
	s := sample
	t.last = &s
	return true
}
