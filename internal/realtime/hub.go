package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/pkg/logger"
	"github.com/charlesng35/talenthub/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10

	defaultBufferSize       = 64
	defaultPingInterval     = 25 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Events emitted by the hub itself.
const (
	EventConnected = "connected"
	EventPong      = "pong"
)

// ErrDeliveryDropped is returned by Emit calls when at least one target
// connection could not take the event because its send buffer was full.
var ErrDeliveryDropped = errors.New("realtime: event dropped for slow connection")

// Message is the JSON frame delivered to live clients.
type Message struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type controlMessage struct {
	Action string `json:"action"`
}

// Options configure a Hub.
type Options struct {
	HandshakeTimeout time.Duration
	SendBuffer       int
	PingInterval     time.Duration
	// AllowedOrigins lists browser origins accepted besides same-host and loopback.
	AllowedOrigins []string
}

// UserRoom is the broadcast group of every connection of one user.
func UserRoom(userID string) string { return "user:" + strings.TrimSpace(userID) }

// RoleRoom is the broadcast group of every connection holding a role.
func RoleRoom(role string) string { return "role:" + strings.ToLower(strings.TrimSpace(role)) }

// Hub is the in-memory connection registry. Each authenticated connection
// joins the rooms of its user and of its role and leaves both on disconnect.
// Delivery is fire-and-forget; the registry is never a source of truth.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*connection]struct{}
	upgrader websocket.Upgrader

	sendBuffer   int
	pingInterval time.Duration
	pongWait     time.Duration
	nextID       atomic.Uint64
	log          *zap.Logger
}

// NewHub constructs a connection registry.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultBufferSize
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		if host := hostWithoutPort(origin); host != "" {
			allowed[host] = struct{}{}
		}
	}

	return &Hub{
		rooms: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				if _, ok := allowed[originHost]; ok {
					return true
				}
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
		sendBuffer:   opts.SendBuffer,
		pingInterval: opts.PingInterval,
		pongWait:     opts.PingInterval * 2,
		log:          logger.WithModule("realtime"),
	}
}

// Serve upgrades an already authenticated request and registers the
// connection until the peer goes away. It blocks for the connection lifetime.
func (h *Hub) Serve(principal auth.Principal, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.LiveHandshakes.WithLabelValues("failed").Inc()
		h.log.Warn("upgrade failed", zap.String("user", principal.ID), zap.Error(err))
		return
	}
	metrics.LiveHandshakes.WithLabelValues("accepted").Inc()

	client := &connection{
		id:        fmt.Sprintf("c%d", h.nextID.Add(1)),
		hub:       h,
		socket:    socket,
		principal: principal,
		send:      make(chan Message, h.sendBuffer),
	}
	h.register(client)

	h.reply(client, Message{
		Event: EventConnected,
		Data: map[string]string{
			"connectionId": client.id,
			"userId":       principal.ID,
			"role":         principal.Role,
		},
		Timestamp: time.Now().UTC(),
	})

	go client.writeLoop()
	client.readLoop()
}

// EmitToUser delivers an event to every connection of userID and returns the
// number of connections that accepted it.
func (h *Hub) EmitToUser(userID, event string, payload any) (int, error) {
	return h.emit(UserRoom(userID), event, payload)
}

// EmitToRole delivers an event to every connection holding role.
func (h *Hub) EmitToRole(role, event string, payload any) (int, error) {
	return h.emit(RoleRoom(role), event, payload)
}

// ConnectionCount returns the number of live connections in a room.
func (h *Hub) ConnectionCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every registered connection.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*connection
	seen := make(map[*connection]struct{})
	for _, members := range h.rooms {
		for client := range members {
			if _, ok := seen[client]; ok {
				continue
			}
			seen[client] = struct{}{}
			all = append(all, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range all {
		client.close()
	}
}

func (h *Hub) emit(room, event string, payload any) (int, error) {
	message := Message{Event: event, Data: payload, Timestamp: time.Now().UTC()}
	if _, err := json.Marshal(message); err != nil {
		return 0, fmt.Errorf("realtime: encode %s event: %w", event, err)
	}

	var (
		delivered int
		slow      []*connection
	)

	h.mu.RLock()
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	metrics.LiveDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	if len(slow) == 0 {
		return delivered, nil
	}

	metrics.LiveDeliveries.WithLabelValues("dropped").Add(float64(len(slow)))
	for _, client := range slow {
		h.log.Warn("dropping backpressured connection",
			zap.String("connection", client.id),
			zap.String("user", client.principal.ID),
		)
		client.close()
	}
	return delivered, fmt.Errorf("%w: %d of %d", ErrDeliveryDropped, len(slow), delivered+len(slow))
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range client.rooms() {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*connection]struct{})
		}
		h.rooms[room][client] = struct{}{}
	}
	client.registered = true
	metrics.LiveConnections.Inc()

	h.log.Debug("connection registered",
		zap.String("connection", client.id),
		zap.String("user", client.principal.ID),
		zap.String("role", client.principal.Role),
	)
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !client.registered {
		return
	}
	for _, room := range client.rooms() {
		members := h.rooms[room]
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.registered = false
	metrics.LiveConnections.Dec()
}

// reply queues a frame for a single connection without blocking.
func (h *Hub) reply(client *connection, message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !client.registered {
		return
	}
	select {
	case client.send <- message:
	default:
	}
}

type connection struct {
	id         string
	hub        *Hub
	socket     *websocket.Conn
	principal  auth.Principal
	send       chan Message
	once       sync.Once
	registered bool
}

func (c *connection) rooms() []string {
	return []string{UserRoom(c.principal.ID), RoleRoom(c.principal.Role)}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Info("unexpected close", zap.String("connection", c.id), zap.Error(err))
			}
			return
		}
		_ = c.socket.SetReadDeadline(time.Now().Add(c.hub.pongWait))

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			c.hub.reply(c, Message{Event: EventPong, Timestamp: time.Now().UTC()})
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(c.hub.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close unregisters before closing send so no emitter can write to a closed channel.
func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
