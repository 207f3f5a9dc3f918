package live

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "tracking:"
	channelSuffix  = ":live"
	channelPattern = channelPrefix + "*" + channelSuffix

	clientBuffer   = 64
	publishTimeout = 2 * time.Second
)

// envelope is the Redis wire form; origin lets a hub skip its own messages.
type envelope struct {
	Origin string `json:"origin"`
	State  State  `json:"state"`
}

// Client is a registered live-state listener.
type Client struct {
	Send chan []byte
}

// Hub fans live-state snapshots out to local listeners and, when Redis is
// configured, to listeners on other instances via tracking:{session}:live.
type Hub struct {
	id      string
	redis   *redis.Client
	logger  *zap.Logger
	clients map[*Client]struct{}
	latest  State
	mu      sync.RWMutex
}

// NewHub creates a Hub. redisClient may be nil.
func NewHub(redisClient *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		logger:  logger,
		clients: map[*Client]struct{}{},
		latest:  IdleState(),
	}
}

// Register adds a listener. The latest snapshot is queued immediately.
func (h *Hub) Register() *Client {
	client := &Client{Send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	if payload, err := json.Marshal(h.latest); err == nil {
		client.Send <- payload
	}
	return client
}

// Unregister removes a listener and closes its channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Latest returns the most recent snapshot.
func (h *Hub) Latest() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Publish records state as the latest snapshot and broadcasts it.
func (h *Hub) Publish(state State) {
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("failed to marshal live state", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.latest = state
	h.mu.Unlock()

	h.fanOut(payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.id, State: state})
	if err != nil {
		h.logger.Error("failed to marshal live envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.redis.Publish(ctx, redisChannel(state.SessionID.String()), msg).Err(); err != nil {
		h.logger.Warn("redis publish failed",
			zap.String("session_id", state.SessionID.String()),
			zap.Error(err),
		)
	}
}

// Run forwards snapshots published by other instances to local listeners.
// It blocks until ctx is cancelled; without Redis it just waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handleRemote(msg)
		}
	}
}

func (h *Hub) handleRemote(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		h.logger.Warn("dropping malformed live message",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}
	if env.Origin == h.id {
		return
	}
	if sessionIDFromChannel(msg.Channel) == "" {
		return
	}
	if _, err := session.ParseSessionStatus(env.State.Status); err != nil {
		h.logger.Warn("dropping live message with unknown status",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}

	payload, err := json.Marshal(env.State)
	if err != nil {
		return
	}
	h.fanOut(payload)
}

func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
