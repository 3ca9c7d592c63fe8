package sync

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 2 * time.Second

// Hub fans dataset events out to TCP and WebSocket subscribers. The last
// event is remembered so late joiners learn the current table id.
type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
	last      *DatasetEvent
	logger    *zap.Logger
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
		logger:    logger,
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish records ev as the latest event and sends it to every client.
// Clients that cannot keep up are dropped.
func (h *Hub) Publish(ev DatasetEvent) {
	if ev.Type == "" {
		ev.Type = EventDatasetLoaded
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.Write(b); err != nil {
			h.logger.Debug("dropping tcp client", zap.Stringer("addr", c.RemoteAddr()), zap.Error(err))
			_ = c.Close()
			delete(h.clients, c)
		}
	}

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug("dropping ws client", zap.Error(err))
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

// Last returns the most recent event, if any.
func (h *Hub) Last() (DatasetEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return DatasetEvent{}, false
	}
	return *h.last, true
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func (h *Hub) welcome(transport string) []byte {
	st := h.Stats()
	w := welcomeEvent{Type: EventWelcome, Transport: transport, Clients: st.TCPClients + st.WSClients}
	if last, ok := h.Last(); ok {
		w.TableID = last.TableID
	}
	b, _ := json.Marshal(w)
	return append(b, '\n')
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
	for ws := range h.wsClients {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}
