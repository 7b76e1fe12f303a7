// Package stream pushes book events to websocket clients. Each event gets a
// monotonically increasing sequence number; clients reconnecting with
// ?since=<seq> receive what they missed from a bounded replay buffer.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

// Envelope is a sequenced event as sent to clients.
type Envelope struct {
	Seq int64 `json:"seq"`
	model.EventMessage
}

// Hub manages websocket clients and fans out book events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer

	upgrader websocket.Upgrader
	log      *zap.Logger

	// OnClientsChanged is called with the client count after every
	// connect and disconnect.
	OnClientsChanged func(n int)
}

// NewHub creates a hub keeping replaySize recent events.
func NewHub(replaySize int, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// OnTradeEvent implements model.TradeListener. Sequencing, the replay push
// and the fan-out share one critical section, so every client sees events
// in seq order and a joining client never gets one twice.
func (h *Hub) OnTradeEvent(_ context.Context, ev model.TradeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := json.Marshal(Envelope{Seq: h.seq + 1, EventMessage: ev.Message()})
	if err != nil {
		h.log.Error("marshal stream envelope", zap.Error(err))
		return
	}
	h.seq++
	h.replay.Push(h.seq, data)
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("ws client too slow, dropping event", zap.String("remote", c.remote))
		}
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	since := int64(-1)
	if v := r.URL.Query().Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = n
		}
	}

	c := newClient(h, conn, r.RemoteAddr)

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	if since >= 0 {
		for _, e := range h.replay.Since(since) {
			select {
			case c.send <- e.Data:
			default:
			}
		}
	}
	h.mu.Unlock()

	h.log.Info("ws client connected", zap.String("remote", c.remote), zap.Int("clients", n))
	h.clientsChanged(n)

	go c.writePump()
	go c.readPump()
}

// Seq returns the sequence number of the last event.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Each client's read loop then
// unregisters it.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	close(c.send)
	h.log.Info("ws client disconnected", zap.String("remote", c.remote), zap.Int("clients", n))
	h.clientsChanged(n)
}

func (h *Hub) clientsChanged(n int) {
	if h.OnClientsChanged != nil {
		h.OnClientsChanged(n)
	}
}

// ServeWSHandler adapts ServeWS to http.Handler.
func (h *Hub) ServeWSHandler() http.Handler {
	return http.HandlerFunc(h.ServeWS)
}
