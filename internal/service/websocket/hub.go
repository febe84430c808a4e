package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"photolabels/internal/logger"
	"photolabels/internal/models"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many reports may wait for one slow viewer before it
	// is disconnected.
	sendBuffer = 16
)

// client is one viewer connection. Only its writePump writes to conn.
type client struct {
	conn    *websocket.Conn
	session string
	send    chan []byte
}

type message struct {
	session string
	payload []byte
}

// HubService fans cycle reports out to the viewers of each session. It keeps
// the last report presented in every session and sends it to viewers as
// they register, so a viewer never starts on a report that was already
// replaced.
type HubService struct {
	clients    map[*websocket.Conn]*client
	last       map[string][]byte // owned by Run
	broadcast  chan message
	register   chan *client
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		last:       make(map[string][]byte),
		broadcast:  make(chan message, 256),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every connection. It never writes to a connection itself.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn, c := range h.clients {
				delete(h.clients, conn)
				close(c.send)
			}
			h.mutex.Unlock()
			h.logger.Info("Hub stopped")
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c
			h.mutex.Unlock()
			if payload, ok := h.last[c.session]; ok {
				c.send <- payload
			}
			go h.writePump(c)
			h.logger.Info("Viewer connected to session %s. Total: %d", c.session, h.GetClientCount())

		case conn := <-h.unregister:
			if h.remove(conn) {
				h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())
			}

		case msg := <-h.broadcast:
			if msg.payload == nil {
				delete(h.last, msg.session)
				continue
			}
			h.last[msg.session] = msg.payload
			for _, c := range h.sessionClients(msg.session) {
				select {
				case c.send <- msg.payload:
				default:
					h.logger.Warning("Viewer of session %s is not keeping up, disconnecting", c.session)
					h.remove(c.conn)
				}
			}
		}
	}
}

// remove drops conn and stops its writePump. It reports whether conn was
// registered.
func (h *HubService) remove(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)
	close(c.send)
	return true
}

// writePump sends queued payloads to one viewer and closes the connection
// once the hub closes its queue.
func (h *HubService) writePump(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(c.conn)
			// Drain until the hub closes the queue.
			for range c.send {
			}
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *HubService) sessionClients(session string) []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var out []*client
	for _, c := range h.clients {
		if c.session == session {
			out = append(out, c)
		}
	}
	return out
}

// Register subscribes conn to session. The viewer first receives the last
// report presented in the session, if any, then every later one.
func (h *HubService) Register(conn *websocket.Conn, session string) {
	c := &client{conn: conn, session: session, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues payload for every viewer of session and makes it the
// report new viewers of session start with.
func (h *HubService) Broadcast(payload []byte, session string) {
	select {
	case h.broadcast <- message{session: session, payload: payload}:
	case <-h.done:
	}
}

// Forget drops the last report kept for session. It is ordered with the
// session's broadcasts.
func (h *HubService) Forget(session string) {
	h.Broadcast(nil, session)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of viewers of session.
func (h *HubService) SessionClientCount(session string) int {
	return len(h.sessionClients(session))
}

// Presenter returns a presenter that broadcasts reports to session viewers.
func (h *HubService) Presenter(session string) *Presenter {
	return &Presenter{hub: h, session: session}
}

// Presenter sends cycle reports as JSON to the viewers of one session.
type Presenter struct {
	hub     *HubService
	session string
}

func (p *Presenter) Present(report models.CycleReport) {
	payload, err := EncodeReport(report)
	if err != nil {
		p.hub.logger.Error("Error encoding report for session %s: %v", p.session, err)
		return
	}
	p.hub.Broadcast(payload, p.session)
}

// EncodeReport is the wire form of a report pushed to viewers.
func EncodeReport(report models.CycleReport) ([]byte, error) {
	if report.Results == nil {
		report.Results = models.ResultSet{}
	}
	return json.Marshal(report)
}
