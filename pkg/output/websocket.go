package output

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/drover-sh/drover/pkg/runstate"
)

// StreamServer broadcasts run events to connected websocket clients. It is
// an optional output handler for embedders that want to watch a run live;
// the CLI does not start one.
type StreamServer struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan runstate.Event
}

// NewStreamServer creates a websocket broadcaster.
func NewStreamServer() *StreamServer {
	return &StreamServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan runstate.Event),
	}
}

// ServeHTTP upgrades one client connection and streams events to it until
// it disconnects.
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	send := make(chan runstate.Event, 256)

	s.mu.Lock()
	s.clients[conn] = send
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for event := range send {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("websocket client write failed")
			return
		}
	}
}

// OnEvent broadcasts one event to every connected client. A client whose
// buffer is full misses the event rather than stalling the run.
func (s *StreamServer) OnEvent(event runstate.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, send := range s.clients {
		select {
		case send <- event:
		default:
		}
	}
}

// Close disconnects all clients.
func (s *StreamServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, send := range s.clients {
		close(send)
		conn.Close()
		delete(s.clients, conn)
	}
}
