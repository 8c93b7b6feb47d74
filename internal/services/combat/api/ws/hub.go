package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/louisbranch/turnorder/internal/platform/timeouts"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/roll"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

const clientBuffer = 16

// Source supplies the current document and committed changes.
// *storage.Feed satisfies it.
type Source interface {
	Load(ctx context.Context, scope string) (storage.Snapshot, error)
	Subscribe() (<-chan storage.Snapshot, func())
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	// version is the newest document version queued to the viewer. Guarded
	// by Hub.mu.
	version int64
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans committed combat snapshots out to websocket viewers.
type Hub struct {
	source   Source
	scope    string
	resolver Resolver
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns a hub for scope. resolver may be nil.
func NewHub(source Source, scope string, resolver Resolver, logger zerolog.Logger) (*Hub, error) {
	if source == nil {
		return nil, errors.New("combat source is required")
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	return &Hub{
		source:   source,
		scope:    scope,
		resolver: resolver,
		logger:   logger.With().Str("component", "combat_feed").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}, nil
}

// Routes returns the feed endpoints.
func (h *Hub) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

// Register mounts the feed endpoints on mux.
func (h *Hub) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /combat/state", h.handleState)
	mux.HandleFunc("GET /combat/ws", h.handleWebsocket)
}

// Run forwards committed snapshots for the hub scope until ctx ends or the
// source closes the subscription.
func (h *Hub) Run(ctx context.Context) {
	snapshots, cancel := h.source.Subscribe()
	defer cancel()
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.Scope != h.scope {
				continue
			}
			h.broadcastView(ctx, snap)
		}
	}
}

// Notify forwards a notice to every connected viewer.
func (h *Hub) Notify(_ context.Context, notice authority.Notice) {
	data, err := json.Marshal(NoticeMessage{Type: TypeNotice, Notice: notice})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode notice")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
}

// PostMessage forwards public rolls to viewers. Rolls visible only to the
// game master are not sent.
func (h *Hub) PostMessage(_ context.Context, msg roll.Message) error {
	if msg.Visibility != roll.VisibilityPublic {
		return nil
	}
	data, err := json.Marshal(RollMessage{Type: TypeRoll, Roll: msg})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
	return nil
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.source.Load(r.Context(), h.scope)
	if err != nil {
		h.logger.Error().Err(err).Msg("load combat for state request")
		http.Error(w, "combat state unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewView(r.Context(), snap, h.resolver)); err != nil {
		h.logger.Warn().Err(err).Msg("write state response")
	}
}

func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if err := h.register(r.Context(), c); err != nil {
		h.logger.Error().Err(err).Msg("load combat for new viewer")
		message := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "combat state unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(timeouts.WebsocketWrite))
		_ = conn.Close()
		return
	}
	go h.writeLoop(c)
	h.readLoop(c)
}

// register queues the current snapshot for c and adds it to the hub under
// the same lock broadcasts take. Run may still deliver snapshots committed
// before the load; broadcastView skips those for c by version.
func (h *Hub) register(ctx context.Context, c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap, err := h.source.Load(ctx, h.scope)
	if err != nil {
		return err
	}
	data, err := json.Marshal(NewView(ctx, snap, h.resolver))
	if err != nil {
		return err
	}
	c.send <- data
	c.version = snap.Version
	h.clients[c] = struct{}{}
	h.logger.Debug().Int("viewers", len(h.clients)).Msg("viewer connected")
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	h.logger.Debug().Int("viewers", len(h.clients)).Msg("viewer disconnected")
}

// readLoop drains viewer frames until the connection fails. Viewers are
// read-only; anything they send is discarded.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeouts.WebsocketWrite))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(timeouts.WebsocketWrite))
	_ = c.conn.Close()
}

func (h *Hub) broadcastView(ctx context.Context, snap storage.Snapshot) {
	data, err := json.Marshal(NewView(ctx, snap, h.resolver))
	if err != nil {
		h.logger.Error().Err(err).Int64("version", snap.Version).Msg("encode combat view")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if snap.Version <= c.version {
			continue
		}
		if h.queueLocked(c, data) {
			c.version = snap.Version
		}
	}
}

// broadcastLocked queues data for every client.
func (h *Hub) broadcastLocked(data []byte) {
	for c := range h.clients {
		h.queueLocked(c, data)
	}
}

// queueLocked queues data for c. A viewer whose buffer is full is
// disconnected.
func (h *Hub) queueLocked(c *client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		delete(h.clients, c)
		c.close()
		h.logger.Warn().Msg("viewer too slow, disconnecting")
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
