package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-systemv1/internal/model"
)

const clientSendBuf = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream carries no credentials and is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans emitted signal events out to WebSocket clients. It satisfies the
// detector's observer contract, so registering it streams every transition.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]bool)}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnSignal broadcasts the event to every connected client. A client whose
// send buffer is full is dropped rather than allowed to stall the rest.
func (h *Hub) OnSignal(_ context.Context, ev model.SignalEvent) error {
	payload := ev.JSON()

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			log.Printf("[api] dropping slow ws client")
			h.remove(c)
		}
	}
	return nil
}

// HandleWS upgrades the connection and starts the client pumps. Optional
// symbol and interval query parameters filter the stream.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade: %v", err)
		return
	}

	c := &wsClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, clientSendBuf),
		symbol:   r.URL.Query().Get("symbol"),
		interval: r.URL.Query().Get("interval"),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Printf("[api] ws client connected (%d total)", h.ClientCount())

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// wsClient is a single WebSocket peer with an optional pair filter.
type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	symbol   string
	interval string
}

func (c *wsClient) wants(ev model.SignalEvent) bool {
	if c.symbol != "" && c.symbol != ev.Symbol {
		return false
	}
	if c.interval != "" && c.interval != ev.Interval {
		return false
	}
	return true
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; its job is detecting disconnects and
// answering pongs.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		log.Println("[api] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
