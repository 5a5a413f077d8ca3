package stream

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "stream:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans messages out to websocket clients by session id. With a
// redis client, messages go through redis pub/sub so every API node
// delivers to its own clients; without one, delivery is local only.
type Hub struct {
	redis   *redis.Client
	log     *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	ready   chan struct{}
	once    sync.Once
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		redis:   redisClient,
		log:     logger,
		clients: map[string]map[*Client]struct{}{},
		ready:   make(chan struct{}),
	}
}

// Ready is closed once Run is subscribed, or immediately by Run when
// there is no redis client.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Run relays redis messages to local clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		h.markReady()
		<-ctx.Done()
		return nil
	}

	pubsub := h.redis.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.markReady()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if sessionID := sessionIDFromChannel(msg.Channel); sessionID != "" {
				h.deliver(sessionID, []byte(msg.Payload))
			}
		}
	}
}

func (h *Hub) markReady() {
	h.once.Do(func() { close(h.ready) })
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Publish sends payload to every client of sessionID. If redis rejects
// the publish the message is still delivered to local clients and the
// error is returned.
func (h *Hub) Publish(ctx context.Context, sessionID string, payload []byte) error {
	if h.redis == nil {
		h.deliver(sessionID, payload)
		return nil
	}
	if err := h.redis.Publish(ctx, redisChannel(sessionID), payload).Err(); err != nil {
		h.log.Warn("redis publish failed, delivering locally", "session_id", sessionID, "error", err)
		h.deliver(sessionID, payload)
		return err
	}
	return nil
}

// deliver drops the message for clients whose buffer is full.
func (h *Hub) deliver(sessionID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
			sent++
		default:
		}
	}
	return sent
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
