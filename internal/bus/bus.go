// Package bus pushes session events to attached UI clients over a websocket
// and exposes the daemon's metrics endpoint. Rendering happens elsewhere;
// this is the wire between the orchestrator and whatever draws it.
package bus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"connectaid/internal/alert"
	"connectaid/internal/responders"
)

type Event struct {
	Kind       string                 `json:"kind"` // status | heard | step | alert | responders
	SessionID  string                 `json:"session_id"`
	Channel    string                 `json:"channel,omitempty"` // manual | voice
	Step       string                 `json:"step,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Alert      *alert.Alert           `json:"alert,omitempty"`
	Responders []responders.Responder `json:"responders,omitempty"`
	At         time.Time              `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // single-user local daemon
}

// Hub fans events out to every connected client. Slow clients are dropped
// rather than allowed to stall the session.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish broadcasts one event. Never blocks the caller.
func (h *Hub) Publish(ev Event) {
	ev.At = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn("failed to marshal event", "kind", ev.Kind, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn("dropping slow bus client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Info("bus client attached", "remote", conn.RemoteAddr())

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readPump exists only to notice the peer going away.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Handler returns the HTTP mux carrying /ws and /metrics.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve blocks on the HTTP listener.
func (h *Hub) Serve(addr string) error {
	log.Info("bus listening", "addr", addr)
	return http.ListenAndServe(addr, h.Handler())
}
