package source

import (
	"context"
	"sync"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type subscription struct {
	throttle *Throttle
	onSample func(session.RouteSample)
	onError  func(error)
}

// Dispatcher is the subscription registry shared by sample sources. It
// implements session.SampleSource; a transport feeds it through Dispatch
// and DispatchError.
//
// Deliveries are sequential. Callbacks run without the registry lock held,
// so a callback may call Unsubscribe.
type Dispatcher struct {
	mu         sync.Mutex
	subs       map[uuid.UUID]*subscription
	authorized bool

	deliverMu sync.Mutex
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher. authorized is the answer given to
// RequestAuthorization.
func NewDispatcher(authorized bool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		subs:       make(map[uuid.UUID]*subscription),
		authorized: authorized,
		logger:     logger,
	}
}

// SetAuthorized changes the location permission answer.
func (d *Dispatcher) SetAuthorized(authorized bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authorized = authorized
}

// RequestAuthorization reports whether location access is granted.
func (d *Dispatcher) RequestAuthorization(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authorized, nil
}

// Subscribe registers callbacks and returns the subscription handle.
func (d *Dispatcher) Subscribe(
	ctx context.Context,
	opts session.SubscribeOptions,
	onSample func(session.RouteSample),
	onError func(error),
) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	if onSample == nil {
		return uuid.Nil, domain.NewValidationError("onSample callback is required")
	}
	if opts.MinInterval < 0 || opts.MinDistanceMeters < 0 {
		return uuid.Nil, domain.NewValidationError("subscribe thresholds must not be negative")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.authorized {
		return uuid.Nil, domain.NewPermissionDeniedError("location access not granted")
	}

	handle := uuid.New()
	d.subs[handle] = &subscription{
		throttle: NewThrottle(opts),
		onSample: onSample,
		onError:  onError,
	}
	d.logger.Debug("sample subscription added", zap.String("handle", handle.String()))
	return handle, nil
}

// Unsubscribe removes a subscription. A delivery already in flight may
// still complete.
func (d *Dispatcher) Unsubscribe(handle uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subs[handle]; !ok {
		return domain.NewNotFoundError("subscription", handle.String())
	}
	delete(d.subs, handle)
	d.logger.Debug("sample subscription removed", zap.String("handle", handle.String()))
	return nil
}

// Subscribers returns the number of active subscriptions.
func (d *Dispatcher) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Dispatch validates sample and delivers it to every subscription whose
// throttle admits it. It returns how many subscriptions received it.
func (d *Dispatcher) Dispatch(sample session.RouteSample) (int, error) {
	if err := sample.Validate(); err != nil {
		return 0, domain.NewValidationError(err.Error())
	}
	if sample.Timestamp.IsZero() {
		return 0, domain.NewValidationError("sample timestamp is required")
	}

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	delivered := 0
	for _, sub := range d.snapshot() {
		if !sub.throttle.Allow(sample) {
			continue
		}
		sub.onSample(sample)
		delivered++
	}
	return delivered, nil
}

// DispatchError reports a transient source failure to every subscription.
func (d *Dispatcher) DispatchError(err error) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	for _, sub := range d.snapshot() {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

func (d *Dispatcher) snapshot() []*subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := make([]*subscription, 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	return subs
}
