package realtime

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Balance event types pushed to clients
const (
	EventCredited = "balance.credited"
	EventRefunded = "balance.refunded"
	EventDebited  = "balance.debited"
)

const balanceEventsChannel = "ws:balance_events"

// sendBuffer is the per-connection outbound queue size.
const sendBuffer = 256

var (
	wsConnectionsGauge   = expvar.NewInt("websocket_connections")
	wsEventsSentTotal    = expvar.NewInt("websocket_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("websocket_events_dropped_total")
)

// BalanceEvent tells a client its balance changed.
type BalanceEvent struct {
	Type          string `json:"type"`
	TransactionID string `json:"transactionId,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	AmountPRX     int64  `json:"amountPrx"`
	Balance       int64  `json:"balance"`
}

type fanoutMessage struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one client socket.
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// NewConnection wraps conn with an outbound buffer.
func NewConnection(userID uuid.UUID, conn *websocket.Conn) *Connection {
	return &Connection{UserID: userID, Conn: conn, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks connections per user on this instance and relays events
// published by other instances through Redis.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	pubsub    *redis.PubSub
	publishFn func(ctx context.Context, channel string, payload []byte) error

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

// NewHub creates a hub. redisClient may be nil for a single instance.
func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with an explicit instance identifier.
func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, balanceEventsChannel)
		h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
			return redisClient.Publish(ctx, channel, payload).Err()
		}
	}

	return h
}

// Run relays remote events until Shutdown. Call in a goroutine.
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}

	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemote(msg.Payload)
		}
	}
}

func (h *Hub) handleRemote(payload string) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return
	}
	if msg.SenderInstanceID == h.instanceID {
		return
	}
	userID, err := uuid.Parse(msg.UserID)
	if err != nil {
		return
	}
	h.sendLocal(userID, msg.Payload)
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	if h.connections[conn.UserID] == nil {
		h.connections[conn.UserID] = make(map[*Connection]bool)
	}
	h.connections[conn.UserID][conn] = true
	h.mu.Unlock()

	wsConnectionsGauge.Add(1)
	log.Debug().Str("user_id", conn.UserID.String()).Msg("User connected to WebSocket")
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.connections[conn.UserID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; exists {
		delete(conns, conn)
		close(conn.Send)
		wsConnectionsGauge.Add(-1)
	}
	if len(conns) == 0 {
		delete(h.connections, conn.UserID)
	}
	log.Debug().Str("user_id", conn.UserID.String()).Msg("User disconnected from WebSocket")
}

// Publish delivers ev to every connection of userID on any instance.
func (h *Hub) Publish(userID uuid.UUID, ev BalanceEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal balance event")
		return
	}

	h.sendLocal(userID, data)

	if h.publishFn == nil {
		return
	}
	payload, err := json.Marshal(fanoutMessage{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return
	}
	if err := h.publishFn(h.ctx, balanceEventsChannel, payload); err != nil {
		log.Warn().Err(err).Str("channel", balanceEventsChannel).Msg("Redis publish failed")
	}
}

func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[userID] {
		select {
		case conn.Send <- data:
			wsEventsSentTotal.Add(1)
		default:
			wsEventsDroppedTotal.Add(1)
			log.Warn().Str("user_id", userID.String()).Msg("WebSocket send buffer full")
		}
	}
}

// ConnectionCount returns the number of local connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown stops Run and closes the Redis subscription.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
