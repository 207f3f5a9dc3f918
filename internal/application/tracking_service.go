package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/run"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/events"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/live"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFirstFixTimeout bounds how long Start waits for the first fix.
const DefaultFirstFixTimeout = 30 * time.Second

// EventPublisher publishes CloudEvents. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// LiveBroadcaster receives every live-state change. *live.Hub satisfies it.
type LiveBroadcaster interface {
	Publish(state live.State)
}

// TrackingOptions tunes the tracking service.
type TrackingOptions struct {
	Subscribe       session.SubscribeOptions
	FirstFixTimeout time.Duration
}

// DefaultTrackingOptions returns the standard thresholds and timeout.
func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{
		Subscribe:       session.DefaultSubscribeOptions(),
		FirstFixTimeout: DefaultFirstFixTimeout,
	}
}

// RunDTO is the response representation of a run record.
type RunDTO struct {
	ID                 int64   `json:"id"`
	DistanceKilometers float64 `json:"distance"`
	Duration           string  `json:"time"`
	Date               string  `json:"date"`
}

// RunStatsDTO summarizes all stored runs.
type RunStatsDTO struct {
	Count                   int     `json:"count"`
	TotalDistanceKilometers float64 `json:"total_distance_km"`
}

// StopResult is returned by Stop. RunID is nil when persisting failed; the
// finalize request is then pending for RetryFinalize.
type StopResult struct {
	Live     live.State              `json:"live"`
	Finalize session.FinalizeRequest `json:"finalize"`
	RunID    *int64                  `json:"run_id,omitempty"`
}

// FinalizeResult is returned by RetryFinalize.
type FinalizeResult struct {
	RunIDs  []int64                   `json:"run_ids"`
	Pending []session.FinalizeRequest `json:"pending"`
}

// startAttempt is a session waiting for its first fix.
type startAttempt struct {
	sess      *session.Session
	startedAt time.Time
	activated chan struct{}
	active    bool
}

// TrackingService is the application service orchestrating tracking
// sessions. Start, Stop and sample delivery are serialized on one mutex.
type TrackingService struct {
	mu       sync.Mutex
	current  *session.Session
	starting *startAttempt
	handle   uuid.UUID
	lastErr  string
	pending  []session.FinalizeRequest
	version  uint64

	// broadcastMu orders hub publishes by version.
	broadcastMu sync.Mutex
	broadcasted uint64

	persistMu sync.Mutex

	repo     run.Repository
	source   session.SampleSource
	producer EventPublisher
	hub      LiveBroadcaster
	logger   *zap.Logger
	opts     TrackingOptions
	now      func() time.Time
}

// NewTrackingService creates a new TrackingService. producer may be nil.
func NewTrackingService(
	repo run.Repository,
	source session.SampleSource,
	producer EventPublisher,
	hub LiveBroadcaster,
	opts TrackingOptions,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		repo:     repo,
		source:   source,
		producer: producer,
		hub:      hub,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins a new session. It returns once the first fix has been
// recorded, or fails and leaves nothing subscribed.
func (s *TrackingService) Start(ctx context.Context) (live.State, error) {
	s.mu.Lock()
	if s.starting != nil {
		s.mu.Unlock()
		return live.State{}, domain.NewConflictError("a session is already starting")
	}
	if s.current != nil && s.current.Status() == session.StatusActive {
		s.mu.Unlock()
		return live.State{}, domain.NewInvalidStateError(string(session.StatusActive), string(session.StatusActive))
	}
	attempt := &startAttempt{
		sess:      session.NewSession(),
		startedAt: s.now().UTC(),
		activated: make(chan struct{}),
	}
	s.starting = attempt
	s.mu.Unlock()

	handle, err := s.subscribe(ctx, attempt.sess)
	if err != nil {
		s.abandonStart(attempt)
		return live.State{}, err
	}

	var timeout <-chan time.Time
	if s.opts.FirstFixTimeout > 0 {
		timer := time.NewTimer(s.opts.FirstFixTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var waitErr error
	select {
	case <-attempt.activated:
	case <-ctx.Done():
		waitErr = domain.NewSampleSourceError("start cancelled before the first location fix", ctx.Err())
	case <-timeout:
		waitErr = domain.NewSampleSourceError("no location fix within "+s.opts.FirstFixTimeout.String(), nil)
	}

	s.mu.Lock()
	if waitErr != nil && !attempt.active {
		s.starting = nil
		s.mu.Unlock()
		s.unsubscribe(handle)
		s.logger.Warn("tracking start failed", zap.Error(waitErr))
		return live.State{}, waitErr
	}
	s.starting = nil
	s.handle = handle
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("tracking session started",
		zap.String("session_id", attempt.sess.ID().String()),
		zap.Time("started_at", attempt.startedAt),
	)
	return state, nil
}

func (s *TrackingService) subscribe(ctx context.Context, sess *session.Session) (uuid.UUID, error) {
	granted, err := s.source.RequestAuthorization(ctx)
	if err != nil {
		return uuid.Nil, domain.NewSampleSourceError("location authorization request failed", err)
	}
	if !granted {
		return uuid.Nil, domain.NewPermissionDeniedError("location access was not granted")
	}

	handle, err := s.source.Subscribe(ctx, s.opts.Subscribe,
		func(sample session.RouteSample) { s.handleSample(sess, sample) },
		func(err error) { s.handleSourceError(sess, err) },
	)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return uuid.Nil, err
		}
		return uuid.Nil, domain.NewSampleSourceError("failed to subscribe to location samples", err)
	}
	return handle, nil
}

func (s *TrackingService) abandonStart(attempt *startAttempt) {
	s.mu.Lock()
	if s.starting == attempt {
		s.starting = nil
	}
	s.mu.Unlock()
}

// handleSample applies one fix. The first fix of a starting session
// activates it; later fixes extend the route. Fixes for any other session
// are ignored.
func (s *TrackingService) handleSample(sess *session.Session, sample session.RouteSample) {
	s.mu.Lock()
	var changed bool
	switch {
	case s.starting != nil && s.starting.sess == sess && !s.starting.active:
		if err := sess.Start(sample, s.starting.startedAt); err != nil {
			s.logger.Error("failed to activate session", zap.Error(err))
			s.mu.Unlock()
			return
		}
		s.starting.active = true
		s.current = sess
		s.lastErr = ""
		close(s.starting.activated)
		changed = true
	case s.current == sess:
		changed = sess.OnSample(sample)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	state, version := s.versionedSnapshotLocked()
	s.mu.Unlock()

	s.broadcast(state, version)
}

func (s *TrackingService) handleSourceError(sess *session.Session, err error) {
	s.logger.Warn("location sample source error",
		zap.String("session_id", sess.ID().String()),
		zap.Error(err),
	)

	s.mu.Lock()
	if s.current != sess || sess.Status() != session.StatusActive {
		s.mu.Unlock()
		return
	}
	s.lastErr = err.Error()
	state, version := s.versionedSnapshotLocked()
	s.mu.Unlock()

	s.broadcast(state, version)
}

// Stop ends the active session and persists its result. The subscription
// is released on every path. When persisting fails the result is still
// returned, together with the storage error, and kept for RetryFinalize.
func (s *TrackingService) Stop(ctx context.Context) (*StopResult, error) {
	s.mu.Lock()
	if s.starting != nil {
		s.mu.Unlock()
		return nil, domain.NewConflictError("session is still waiting for its first fix")
	}
	if s.current == nil {
		s.mu.Unlock()
		return nil, domain.NewInvalidStateError(string(session.StatusIdle), string(session.StatusStopped))
	}
	handle := s.handle
	s.handle = uuid.Nil
	defer s.unsubscribe(handle)

	finalize, err := s.current.Stop(s.now().UTC())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	state, version := s.versionedSnapshotLocked()
	s.mu.Unlock()

	s.broadcast(state, version)
	s.logger.Info("tracking session stopped",
		zap.String("session_id", finalize.SessionID.String()),
		zap.Float64("distance_km", finalize.DistanceKilometers),
		zap.String("duration", finalize.Duration),
	)

	result := &StopResult{Live: state, Finalize: finalize}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	id, err := s.persist(ctx, finalize)
	if err != nil {
		s.mu.Lock()
		s.pending = append(s.pending, finalize)
		s.mu.Unlock()
		return result, err
	}
	result.RunID = &id
	return result, nil
}

// RetryFinalize re-submits pending results in order, stopping at the first
// failure.
func (s *TrackingService) RetryFinalize(ctx context.Context) (*FinalizeResult, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil, domain.NewConflictError("no pending run to finalize")
	}
	s.mu.Unlock()

	result := &FinalizeResult{RunIDs: []int64{}}
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			break
		}
		next := s.pending[0]
		s.mu.Unlock()

		id, err := s.persist(ctx, next)
		if err != nil {
			result.Pending = s.Pending()
			return result, err
		}

		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
		result.RunIDs = append(result.RunIDs, id)
	}
	result.Pending = s.Pending()
	return result, nil
}

// persist stores one finalize request and announces it.
func (s *TrackingService) persist(ctx context.Context, req session.FinalizeRequest) (int64, error) {
	id, err := s.repo.Create(ctx, req.DistanceKilometers, req.Duration)
	if err != nil {
		s.logger.Error("failed to save run record",
			zap.String("session_id", req.SessionID.String()),
			zap.Error(err),
		)
		var appErr *domain.AppError
		if !errors.As(err, &appErr) {
			err = domain.NewStorageError("create run record", err)
		}
		return 0, err
	}

	s.logger.Info("run record saved",
		zap.Int64("run_id", id),
		zap.String("session_id", req.SessionID.String()),
	)

	s.publishEvent(ctx, events.TopicRunEvents, events.RunRecorded, req.SessionID.String(), events.RunRecordedEvent{
		RunID:              id,
		SessionID:          req.SessionID,
		DistanceKilometers: req.DistanceKilometers,
		Duration:           req.Duration,
		ElapsedMillis:      req.ElapsedMillis,
		RecordedAt:         s.now().UTC(),
	})
	return id, nil
}

// Shutdown stops an active session so its run is not lost.
func (s *TrackingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	active := s.current != nil && s.current.Status() == session.StatusActive && s.starting == nil
	s.mu.Unlock()
	if !active {
		return nil
	}
	_, err := s.Stop(ctx)
	return err
}

// LiveState returns the current snapshot.
func (s *TrackingService) LiveState() live.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Pending returns the finalize requests that still need persisting.
func (s *TrackingService) Pending() []session.FinalizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.FinalizeRequest, len(s.pending))
	copy(out, s.pending)
	return out
}

// ListRuns returns all stored runs ordered by id.
func (s *TrackingService) ListRuns(ctx context.Context) ([]RunDTO, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]RunDTO, len(records))
	for i, r := range records {
		dtos[i] = toRunDTO(r)
	}
	return dtos, nil
}

// RunStats returns the run count and total distance.
func (s *TrackingService) RunStats(ctx context.Context) (*RunStatsDTO, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &RunStatsDTO{Count: len(records)}
	for _, r := range records {
		stats.TotalDistanceKilometers += r.DistanceKilometers()
	}
	return stats, nil
}

// --- Helpers ---

func (s *TrackingService) snapshotLocked() live.State {
	return live.Snapshot(s.current, s.now(), s.lastErr)
}

// versionedSnapshotLocked returns the current snapshot with the next
// broadcast version.
func (s *TrackingService) versionedSnapshotLocked() (live.State, uint64) {
	s.version++
	return s.snapshotLocked(), s.version
}

// broadcast publishes snapshots in version order. A snapshot taken before
// one that was already published is dropped.
func (s *TrackingService) broadcast(state live.State, version uint64) {
	if s.hub == nil {
		return
	}
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	if version <= s.broadcasted {
		return
	}
	s.broadcasted = version
	s.hub.Publish(state)
}

func (s *TrackingService) unsubscribe(handle uuid.UUID) {
	if handle == uuid.Nil {
		return
	}
	if err := s.source.Unsubscribe(handle); err != nil {
		s.logger.Warn("failed to unsubscribe from location samples",
			zap.String("handle", handle.String()),
			zap.Error(err),
		)
	}
}

// publishEvent creates a CloudEvent and publishes it; failures are logged.
func (s *TrackingService) publishEvent(ctx context.Context, topic, eventType, subject string, data interface{}) {
	if s.producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(events.EventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = subject

	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toRunDTO(r run.RunRecord) RunDTO {
	return RunDTO{
		ID:                 r.ID(),
		DistanceKilometers: r.DistanceKilometers(),
		Duration:           r.Duration(),
		Date:               r.RecordedAtISO(),
	}
}
