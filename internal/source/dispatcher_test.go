package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	samples []session.RouteSample
	errs    []error
}

func (r *recorder) onSample(s session.RouteSample) { r.samples = append(r.samples, s) }
func (r *recorder) onError(err error)             { r.errs = append(r.errs, err) }

func TestDispatcher_Authorization(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(false, zap.NewNop())

	ok, err := d.RequestAuthorization(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Subscribe(ctx, session.DefaultSubscribeOptions(), func(session.RouteSample) {}, nil)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	d.SetAuthorized(true)
	ok, err = d.RequestAuthorization(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.RequestAuthorization(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_SubscribeValidation(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(true, zap.NewNop())

	_, err := d.Subscribe(ctx, session.DefaultSubscribeOptions(), nil, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = d.Subscribe(ctx, session.SubscribeOptions{MinInterval: -time.Second}, func(session.RouteSample) {}, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDispatcher_DeliversThrottledSamplesInOrder(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(true, zap.NewNop())
	rec := &recorder{}

	handle, err := d.Subscribe(ctx, session.DefaultSubscribeOptions(), rec.onSample, rec.onError)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, handle)
	assert.Equal(t, 1, d.Subscribers())

	n, err := d.Dispatch(sampleAt(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Dispatch(sampleAt(0, 0.0005, 200*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = d.Dispatch(sampleAt(0, 0.001, 5*time.Second))
	require.NoError(t, err)

	require.Len(t, rec.samples, 2)
	assert.Equal(t, 0.0, rec.samples[0].Longitude)
	assert.Equal(t, 0.001, rec.samples[1].Longitude)
}

func TestDispatcher_RejectsInvalidSamples(t *testing.T) {
	d := NewDispatcher(true, zap.NewNop())
	rec := &recorder{}
	_, err := d.Subscribe(context.Background(), session.DefaultSubscribeOptions(), rec.onSample, rec.onError)
	require.NoError(t, err)

	_, err = d.Dispatch(sampleAt(91, 0, 0))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = d.Dispatch(session.RouteSample{Coordinate: geo.Coordinate{Latitude: 1, Longitude: 1}})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.Empty(t, rec.samples)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(true, zap.NewNop())
	rec := &recorder{}

	handle, err := d.Subscribe(ctx, session.DefaultSubscribeOptions(), rec.onSample, rec.onError)
	require.NoError(t, err)
	require.NoError(t, d.Unsubscribe(handle))
	assert.Equal(t, 0, d.Subscribers())

	n, err := d.Dispatch(sampleAt(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, rec.samples)

	err = d.Unsubscribe(handle)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDispatcher_CallbackMayUnsubscribe(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(true, zap.NewNop())

	var handle uuid.UUID
	calls := 0
	handle, err := d.Subscribe(ctx, session.SubscribeOptions{}, func(session.RouteSample) {
		calls++
		assert.NoError(t, d.Unsubscribe(handle))
	}, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(sampleAt(0, 0, 0))
	require.NoError(t, err)
	_, err = d.Dispatch(sampleAt(0, 1, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDispatcher_DispatchError(t *testing.T) {
	d := NewDispatcher(true, zap.NewNop())
	rec := &recorder{}
	_, err := d.Subscribe(context.Background(), session.DefaultSubscribeOptions(), rec.onSample, rec.onError)
	require.NoError(t, err)
	_, err = d.Subscribe(context.Background(), session.DefaultSubscribeOptions(), func(session.RouteSample) {}, nil)
	require.NoError(t, err)

	d.DispatchError(domain.NewSampleSourceError("fix lost", nil))

	require.Len(t, rec.errs, 1)
	assert.True(t, errors.Is(rec.errs[0], domain.ErrSampleSource))
}

func TestPushSource_Push(t *testing.T) {
	ctx := context.Background()
	p := NewPushSource(true, zap.NewNop())
	p.now = func() time.Time { return t0 }
	rec := &recorder{}

	_, err := p.Subscribe(ctx, session.DefaultSubscribeOptions(), rec.onSample, rec.onError)
	require.NoError(t, err)

	n, err := p.Push(ctx, geo.Coordinate{Latitude: 59.33, Longitude: 18.06}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	at := t0.Add(3 * time.Second).In(time.FixedZone("X", 3600))
	_, err = p.Push(ctx, geo.Coordinate{Latitude: 59.34, Longitude: 18.06}, at)
	require.NoError(t, err)

	require.Len(t, rec.samples, 2)
	assert.True(t, rec.samples[0].Timestamp.Equal(t0))
	assert.Equal(t, time.UTC, rec.samples[1].Timestamp.Location())

	_, err = p.Push(ctx, geo.Coordinate{Latitude: 0, Longitude: 181}, at)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
