package events

import (
	"context"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/kafka"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/source"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LocationSampleSource is a session.SampleSource fed by location events on
// the location.samples topic. Messages that arrive while nothing is
// subscribed are consumed and dropped.
type LocationSampleSource struct {
	*source.Dispatcher
	consumer *kafka.Consumer
	logger   *zap.Logger
}

// NewLocationSampleSource creates a new LocationSampleSource.
func NewLocationSampleSource(
	brokers []string,
	groupID string,
	authorized bool,
	logger *zap.Logger,
) *LocationSampleSource {
	consumer := kafka.NewConsumer(brokers, groupID, TopicLocationSamples, logger)
	return &LocationSampleSource{
		Dispatcher: source.NewDispatcher(authorized, logger),
		consumer:   consumer,
		logger:     logger,
	}
}

// Start begins consuming location events. This blocks until the context is cancelled.
func (s *LocationSampleSource) Start(ctx context.Context) error {
	return s.consumer.Consume(ctx, s.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (s *LocationSampleSource) Close() error {
	return s.consumer.Close()
}

func (s *LocationSampleSource) handleMessage(_ context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		s.logger.Error("failed to parse cloud event from location topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		s.DispatchError(domain.NewSampleSourceError("malformed location message", err))
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case LocationSampled:
		return s.handleLocationSampled(cloudEvent)
	default:
		s.logger.Debug("ignoring unhandled location event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (s *LocationSampleSource) handleLocationSampled(cloudEvent kafka.CloudEvent) error {
	var evt LocationSampledEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		s.logger.Error("failed to parse LocationSampledEvent data", zap.Error(err))
		s.DispatchError(domain.NewSampleSourceError("malformed location sample", err))
		return nil
	}

	at := evt.Timestamp
	if at.IsZero() {
		at = cloudEvent.Time
	}
	sample := session.RouteSample{
		Coordinate: geo.Coordinate{Latitude: evt.Latitude, Longitude: evt.Longitude},
		Timestamp:  at.UTC(),
	}

	delivered, err := s.Dispatch(sample)
	if err != nil {
		s.logger.Warn("rejected location sample",
			zap.String("device_id", evt.DeviceID),
			zap.Error(err),
		)
		s.DispatchError(domain.NewSampleSourceError("invalid location sample", err))
		return nil
	}

	s.logger.Debug("location sample dispatched",
		zap.String("device_id", evt.DeviceID),
		zap.Int("delivered", delivered),
	)
	return nil
}
