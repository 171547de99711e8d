// Package inspector is a non-load-bearing observability surface: it runs
// an optional WebSocket server that broadcasts a JSON event for every
// event the compile orchestrator publishes on its event channel (a
// function queued, compiled, invalidated or failed). No client ever
// has to be connected; a server with nobody watching just drops events
// on the floor. Compilation itself never blocks on this package.
package inspector

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sentrajit/internal/orchestrator"
)

// Server broadcasts orchestrator events to connected WebSocket clients.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu      sync.RWMutex
	clients map[string]*client

	events <-chan orchestrator.Event
	done   chan struct{}
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// New constructs a Server that will broadcast whatever it reads off
// events. It does not start listening until Start is called.
func New(addr string, events <-chan orchestrator.Event) *Server {
	s := &Server{
		addr:    addr,
		clients: make(map[string]*client),
		events:  events,
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	return s
}

// Start begins serving WebSocket upgrades on addr and fans out events in
// the background. It returns once the listener is up; serving and
// broadcasting continue on background goroutines until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: s.addr, Handler: mux}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go s.broadcastLoop()
	go func() {
		_ = s.httpSrv.Serve(ln)
	}()
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := uuid.NewString()
	c := &client{id: id, conn: conn}
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	go s.drainClient(c)
}

// drainClient reads and discards client frames (pings, client-initiated
// closes) until the connection fails, then removes the client.
func (s *Server) drainClient(c *client) {
	defer s.removeClient(c.id)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

func (s *Server) broadcastLoop() {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.broadcast(ev)
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcast(ev orchestrator.Event) {
	payload, err := json.Marshal(wireEvent{
		FunctionID: ev.FunctionID,
		Kind:       ev.Kind,
		Level:      ev.Level.String(),
		Timestamp:  ev.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.mu.Unlock()
		if err != nil {
			s.removeClient(c.id)
		}
	}
}

type wireEvent struct {
	FunctionID uint32 `json:"function_id"`
	Kind       string `json:"kind"`
	Level      string `json:"level"`
	Timestamp  string `json:"timestamp"`
}

// ClientCount reports how many WebSocket clients are currently attached,
// mainly useful for tests and metrics.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stop closes every client connection and shuts down the HTTP listener.
func (s *Server) Stop() error {
	close(s.done)
	s.mu.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}
