//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/application"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/geo"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/events"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/live"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/kafka"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/repository"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// trackingStack holds wired-up tracking service components.
type trackingStack struct {
	Service *application.TrackingService
	Source  *events.LocationSampleSource
	Repo    *repository.GormRunRepository
	Cleanup func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// SQL migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_tracking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_tracking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicLocationSamples, events.TopicRunEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupTrackingStack wires up the full tracking service stack.
func setupTrackingStack(t *testing.T, db *gorm.DB, brokers []string) *trackingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	repo := repository.NewGormRunRepository(db)
	require.NoError(t, repo.Initialize(context.Background()))

	producer := kafka.NewProducer(brokers, logger)
	groupID := fmt.Sprintf("test-tracking-%s", uuid.New().String()[:8])
	source := events.NewLocationSampleSource(brokers, groupID, true, logger)
	hub := live.NewHub(nil, logger)

	opts := application.DefaultTrackingOptions()
	opts.FirstFixTimeout = 30 * time.Second
	svc := application.NewTrackingService(repo, source, producer, hub, opts, logger)

	return &trackingStack{
		Service: svc,
		Source:  source,
		Repo:    repo,
		Cleanup: func() {
			_ = source.Close()
			_ = producer.Close()
		},
	}
}

// publishLocation publishes a location.sampled CloudEvent to Kafka.
func publishLocation(t *testing.T, brokers []string, lat, lng float64, at time.Time) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent("device-gateway", events.LocationSampled, events.LocationSampledEvent{
		DeviceID:  "integration-phone",
		Latitude:  lat,
		Longitude: lng,
		Timestamp: at,
	})
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), events.TopicLocationSamples, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForRoute polls the live state until the route has n points.
func waitForRoute(t *testing.T, svc *application.TrackingService, n int, timeout time.Duration) []geo.Coordinate {
	t.Helper()
	var route []geo.Coordinate
	require.Eventually(t, func() bool {
		route = svc.LiveState().Route
		return len(route) >= n
	}, timeout, 200*time.Millisecond, "route did not reach %d points", n)
	return route
}

// waitForRunRecord polls the run_records table until the row exists.
func waitForRunRecord(t *testing.T, db *gorm.DB, id int64, timeout time.Duration) repository.RunRecordModel {
	t.Helper()
	var result repository.RunRecordModel
	require.Eventually(t, func() bool {
		return db.Where("id = ?", id).First(&result).Error == nil
	}, timeout, 200*time.Millisecond, "run record %d not found", id)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
