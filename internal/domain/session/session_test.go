package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 7, 30, 0, 0, time.UTC)

func sample(lat, lon float64, at time.Time) RouteSample {
	return RouteSample{Coordinate: geo.Coordinate{Latitude: lat, Longitude: lon}, Timestamp: at}
}

func startedSession(t *testing.T, first RouteSample) *Session {
	t.Helper()
	s := NewSession()
	require.NoError(t, s.Start(first, t0))
	return s
}

func TestNewSession_IsIdle(t *testing.T) {
	s := NewSession()

	assert.Equal(t, StatusIdle, s.Status())
	assert.Empty(t, s.Route())
	assert.Zero(t, s.DistanceMeters())
	_, ok := s.ElapsedSince(t0)
	assert.False(t, ok)
	_, ok = s.Result()
	assert.False(t, ok)
}

func TestStart_SeedsRouteWithFirstFix(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))

	assert.Equal(t, StatusActive, s.Status())
	assert.Len(t, s.Route(), 1)
	assert.Zero(t, s.DistanceMeters())
	assert.Equal(t, t0, s.StartedAt())
}

func TestStart_RejectedUnlessIdle(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))

	err := s.Start(sample(1, 1, t0), t0.Add(time.Minute))
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Equal(t, t0, s.StartedAt())

	_, err = s.Stop(t0.Add(time.Second))
	require.NoError(t, err)
	err = s.Start(sample(1, 1, t0), t0.Add(time.Minute))
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Equal(t, StatusStopped, s.Status())
}

func TestOnSample_AccumulatesPairwiseDistance(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))

	applied := s.OnSample(sample(0, 0.001, t0.Add(time.Second)))

	assert.True(t, applied)
	assert.Len(t, s.Route(), 2)
	assert.InDelta(t, 111.19, s.DistanceMeters(), 0.01)
}

func TestOnSample_IgnoredWhileIdle(t *testing.T) {
	s := NewSession()

	assert.False(t, s.OnSample(sample(0, 0, t0)))
	assert.Empty(t, s.Route())
	assert.Zero(t, s.DistanceMeters())
}

func TestOnSample_IgnoredAfterStop(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))
	s.OnSample(sample(0, 0.001, t0.Add(time.Second)))
	_, err := s.Stop(t0.Add(2 * time.Second))
	require.NoError(t, err)

	routeBefore := s.Route()
	distanceBefore := s.DistanceMeters()

	assert.False(t, s.OnSample(sample(0, 0.002, t0.Add(3*time.Second))))
	assert.Equal(t, routeBefore, s.Route())
	assert.Equal(t, distanceBefore, s.DistanceMeters())
}

func TestStop_RejectedFromIdle(t *testing.T) {
	s := NewSession()

	_, err := s.Stop(t0)

	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Equal(t, StatusIdle, s.Status())
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestStop_RejectedWhenAlreadyStopped(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))
	first, err := s.Stop(t0.Add(5 * time.Second))
	require.NoError(t, err)

	_, err = s.Stop(t0.Add(time.Hour))

	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	again, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, first, again)
	assert.Equal(t, t0.Add(5*time.Second), s.StoppedAt())
}

func TestIncrementalDistanceMatchesFullRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		lat, lon := rng.Float64()*120-60, rng.Float64()*300-150
		at := t0
		s := startedSession(t, sample(lat, lon, at))

		steps := rng.Intn(200)
		for i := 0; i < steps; i++ {
			lat += (rng.Float64() - 0.5) * 0.001
			lon += (rng.Float64() - 0.5) * 0.001
			at = at.Add(time.Second)
			s.OnSample(sample(lat, lon, at))
		}

		incremental := s.DistanceMeters()
		assert.Equal(t, geo.TotalDistance(s.Coordinates()), incremental, "run %d", run)

		result, err := s.Stop(at.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, incremental, result.DistanceMeters, "run %d", run)
	}
}

func TestElapsedSince(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))

	elapsed, ok := s.ElapsedSince(t0.Add(90 * time.Second))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, elapsed)

	_, err := s.Stop(t0.Add(2 * time.Minute))
	require.NoError(t, err)

	elapsed, ok = s.ElapsedSince(t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, elapsed)
}

func TestEquatorScenario(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))
	s.OnSample(sample(0, 0.001, t0.Add(1000*time.Millisecond)))

	assert.InDelta(t, 111.19, s.DistanceMeters(), 0.01)

	result, err := s.Stop(t0.Add(5000 * time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, s.Status())
	assert.InDelta(t, 0.11119, result.DistanceKilometers, 0.00001)
	assert.Equal(t, "0m 5s", result.Duration)
	assert.Equal(t, int64(5000), result.ElapsedMillis)
	assert.Equal(t, s.ID(), result.SessionID)
}

func TestRoute_ReturnsCopy(t *testing.T) {
	s := startedSession(t, sample(0, 0, t0))
	route := s.Route()
	route[0].Latitude = 45

	assert.Equal(t, 0.0, s.Route()[0].Latitude)
}
