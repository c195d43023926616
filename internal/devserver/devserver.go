// Package devserver implements composer's local preview server: it serves
// a build's output directory over HTTP and pushes live-reload notifications
// to connected browsers over a WebSocket whenever the caller signals a
// rebuild, grounded on the teacher's retained but previously-unwired
// github.com/coder/websocket dependency (listed in its go.mod, unimported
// by any of its source files).
package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Server serves a static output directory and notifies connected clients
// over WebSocket whenever Reload is called.
type Server struct {
	Dir string

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New creates a Server rooted at dir.
func New(dir string) *Server {
	return &Server{Dir: dir, clients: make(map[*websocket.Conn]struct{})}
}

// Handler returns the root HTTP handler: static files plus a /__reload
// WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.Dir)))
	mux.HandleFunc("/__reload", s.handleReload)
	return mux
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Reload notifies every connected client that a new build is ready. Writes
// that fail (a client that has gone away) are skipped rather than aborting
// the broadcast.
func (s *Server) Reload(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for _, c := range conns {
		_ = c.Write(writeCtx, websocket.MessageText, []byte("reload"))
	}
}
