package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
	"github.com/dmmcquay/leelawatcher/internal/registry"
	"github.com/gorilla/websocket"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsWriteWait        = 10 * time.Second
	clientBuffer       = 16
	broadcastBuffer    = 64
)

// Message types pushed to display clients.
const (
	MessageBoard    = "board"
	MessageNotice   = "message"
	MessageProgress = "progress"
	MessagePing     = "ping"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type boardPayload struct {
	Active bool               `json:"active"`
	Board  *registry.Snapshot `json:"board,omitempty"`
}

type progressPayload struct {
	InProgress bool `json:"inProgress"`
}

type noticePayload struct {
	Text string `json:"text"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans focus board updates and controller messages out to websocket
// display clients. It implements watcher.Listener.
type Hub struct {
	boards  BoardSource
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector

	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan []byte
	upgrader  websocket.Upgrader
}

// NewHub creates a hub reading snapshots from boards. m may be nil.
func NewHub(boards BoardSource, logger logging.ContextLogger, m *metrics.PrometheusCollector) *Hub {
	return &Hub{
		boards:    boards,
		logger:    logger,
		metrics:   m,
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, broadcastBuffer),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run delivers published messages until ctx is done, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				c.enqueue(data)
			}
			h.mu.Unlock()
		}
	}
}

// OnMessage forwards a controller notification.
func (h *Hub) OnMessage(msg string) {
	h.publish(MessageNotice, noticePayload{Text: msg})
}

// OnProgress forwards the in-progress flag.
func (h *Hub) OnProgress(inProgress bool) {
	h.publish(MessageProgress, progressPayload{InProgress: inProgress})
}

// BoardChanged pushes the current focus board to every client.
func (h *Hub) BoardChanged() {
	h.publish(MessageBoard, h.boardPayload())
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) boardPayload() boardPayload {
	snap, ok := h.boards.Snapshot()
	if !ok {
		return boardPayload{}
	}
	return boardPayload{Active: true, Board: &snap}
}

func (h *Hub) publish(kind string, payload any) {
	data, err := encode(kind, payload)
	if err != nil {
		h.logger.Warn("Failed to encode websocket message", "type", kind, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("Websocket broadcast buffer full, dropping message", "type", kind)
	}
}

// ServeWS upgrades the request and streams hub messages to it. The client
// first receives the current focus board.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if data, err := encode(MessageBoard, h.boardPayload()); err == nil {
		c.enqueue(data)
	}
	h.register(c)

	go func() {
		defer conn.Close()
		if err := writeWithHeartbeat(conn, c.send); err != nil {
			h.logger.Debug("Websocket write ended", "error", err)
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.recordClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.recordClients(n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.recordClients(0)
}

func (h *Hub) recordClients(n int) {
	if h.metrics != nil {
		h.metrics.SetWebsocketClients(n)
	}
}

// enqueue drops the message when the client is not keeping up.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func encode(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsMessage{Type: kind, Payload: raw})
}

// writeWithHeartbeat drains send onto conn, pinging when idle. It returns nil
// once send is closed.
func writeWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	ping, _ := json.Marshal(wsMessage{Type: MessagePing})

	write := func(data []byte) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		lastWrite = time.Now()
		return nil
	}

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := write(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := write(ping); err != nil {
				return err
			}
		}
	}
}
