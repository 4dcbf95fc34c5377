// Package webui serves the operator dashboard's WebSocket and JSON endpoints.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
)

const (
	sendBuffer = 256
	writeWait  = 5 * time.Second
	maxMessage = 1 << 20
)

// Submitter accepts events from clients; the bot loop implements it.
type Submitter interface {
	Submit(ev dispatcher.Event) error
}

// ConfigSource provides the config shown to clients.
type ConfigSource interface {
	Snapshot() *config.Config
}

// accepted lists the kinds a client may send.
var accepted = map[string]bool{
	streaming.TypeUpdateConfig:  true,
	streaming.TypeManualControl: true,
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks connected dashboard clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool

	configs  ConfigSource
	sink     Submitter
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub returns a hub that submits client messages to sink.
func NewHub(configs ConfigSource, sink Submitter, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		configs: configs,
		sink:    sink,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler routes /ws and /api/config.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/config", h.serveConfig)
	return mux
}

func (h *Hub) serveConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.configs.Snapshot()); err != nil {
		h.logger.Warn("encode config", "error", err)
	}
}

// ServeWS upgrades the request and sends the current config first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, sendBuffer)}
	if msg, err := encode(streaming.TypeConfigIsCurrent, h.configs.Snapshot()); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", "client", c.id.String(), "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessage)

	for {
		var env streaming.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("dashboard client read failed", "client", c.id.String(), "error", err)
			}
			return
		}
		if !accepted[env.Type] {
			h.logger.Warn("ignoring dashboard message", "client", c.id.String(), "type", env.Type)
			continue
		}
		err := h.sink.Submit(dispatcher.Event{
			Kind:      env.Type,
			Source:    "webui:" + c.id.String(),
			Payload:   env.Payload,
			Timestamp: time.Now(),
		})
		if err != nil {
			h.logger.Warn("dashboard message rejected", "type", env.Type, "error", err)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("dashboard client write failed", "client", c.id.String(), "error", err)
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		h.logger.Info("dashboard client disconnected", "client", c.id.String())
	}
	c.close()
}

func encode(typ string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(typ, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Broadcast sends payload to every client. A client whose buffer is full
// is disconnected.
func (h *Hub) Broadcast(typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		h.logger.Error("broadcast encode failed", "type", typ, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow dashboard client", "client", c.id.String())
		h.remove(c)
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[uuid.UUID]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// ListenAndServe serves hub on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, hub *Hub) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
