package source

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"go.uber.org/zap"
)

// PushSource is an in-process sample source fed by callers, e.g. the HTTP
// samples endpoint.
type PushSource struct {
	*Dispatcher
	now func() time.Time
}

// NewPushSource creates a PushSource.
func NewPushSource(authorized bool, logger *zap.Logger) *PushSource {
	return &PushSource{
		Dispatcher: NewDispatcher(authorized, logger),
		now:        time.Now,
	}
}

// Push delivers a fix. A zero timestamp is replaced with the current time.
func (p *PushSource) Push(ctx context.Context, coord geo.Coordinate, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if at.IsZero() {
		at = p.now()
	}
	return p.Dispatch(session.RouteSample{Coordinate: coord, Timestamp: at.UTC()})
}
