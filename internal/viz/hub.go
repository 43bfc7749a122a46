package viz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second

	// clientBuffer is the number of views queued per client before the
	// client is dropped as too slow.
	clientBuffer = 16
)

// client is one WebSocket subscriber. The hub only touches send; the
// client's own writer goroutine owns conn writes.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, clientBuffer)}
}

// hub fans views out to WebSocket clients. One goroutine owns the client
// set; everything else talks to it over channels.
type hub struct {
	upgrader  websocket.Upgrader
	clients   map[*client]bool
	register  chan *client
	remove    chan *client
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	h := &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*client]bool),
		register:  make(chan *client),
		remove:    make(chan *client),
		broadcast: make(chan []byte, 16),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go h.run()
	return h
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.remove:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Buffer full, the client is not keeping up.
					h.logger.Warn("websocket client too slow, disconnecting")
					h.drop(c)
				}
			}
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// drop unregisters c and closes its queue, which stops its writer.
func (h *hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// serve upgrades the request, queues the current view and keeps the
// connection registered until the client goes away.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, current View) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	data, err := json.Marshal(current)
	if err != nil {
		conn.Close()
		return err
	}
	c := newClient(conn)
	c.send <- data

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// writePump writes queued views until the hub closes the queue or a write
// fails.
func (h *hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.unregister(c)
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("websocket send failed", "error", err)
			h.unregister(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump detects disconnects. Clients only listen.
func (h *hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", "error", err)
			}
			return
		}
	}
}

func (h *hub) unregister(c *client) {
	select {
	case h.remove <- c:
	case <-h.done:
	}
}

func (h *hub) publish(v View) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal view", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn("websocket backlog full, dropping view", "tick", v.Tick)
	}
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.done) })
}
