package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zaqqye/firmsheet/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// FirmSavedMessage is pushed to every listener after a successful save.
type FirmSavedMessage struct {
	Type    string            `json:"type"`
	ID      string            `json:"id"`
	Record  models.FirmRecord `json:"record"`
	SavedAt time.Time         `json:"saved_at"`
}

// FirmHub fans out record changes to connected form pages.
type FirmHub struct {
	register   chan *firmClient
	unregister chan *firmClient
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	clients    map[*firmClient]struct{}
	log        *zap.Logger
}

func NewFirmHub(log *zap.Logger) *FirmHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &FirmHub{
		register:   make(chan *firmClient),
		unregister: make(chan *firmClient),
		broadcast:  make(chan []byte, 64),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		clients:    make(map[*firmClient]struct{}),
		log:        log,
	}
}

func (h *FirmHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.drop(client)
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Stop ends Run and closes all client connections.
func (h *FirmHub) Stop() {
	close(h.done)
}

// Clients reports the number of registered listeners.
func (h *FirmHub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Broadcast queues msg for all listeners. It never blocks the caller: when
// the queue is full the message is dropped.
func (h *FirmHub) Broadcast(msg FirmSavedMessage) {
	if h == nil {
		return
	}
	if msg.Type == "" {
		msg.Type = "firm_saved"
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("ws: marshal payload", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("ws: broadcast queue full, dropping message", zap.String("id", msg.ID))
	}
}

func (h *FirmHub) drop(client *firmClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	client.conn.Close()
}

type firmClient struct {
	hub  *FirmHub
	conn *websocket.Conn
	send chan []byte
}

func newFirmClient(hub *FirmHub, conn *websocket.Conn) *firmClient {
	return &firmClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *firmClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *firmClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
