package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/registry"
)

// Server represents the WebSocket server. It is also the Observer of every
// table, fanning snapshots out to seated players and watchers.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	registry *registry.Registry
	logger   *log.Logger

	mu          sync.RWMutex
	connections map[*Connection]bool
}

var _ game.Observer = (*Server)(nil)

// NewServer creates a new WebSocket server
func NewServer(addr string, logger *log.Logger) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			// Clients are bots and terminals, not browsers.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		logger:      logger.WithPrefix("server"),
	}
}

// SetRegistry sets the registry requests are routed to
func (s *Server) SetRegistry(r *registry.Registry) {
	s.registry = r
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Stop()
	return err
}

// Stop closes all connections
func (s *Server) Stop() {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s)
	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "conn", client.ID(), "total", total)

	client.Start()
	go func() {
		<-client.Done()
		s.unregister(client)
	}()
}

// unregister forgets a closed connection and releases its seats into the
// reconnect grace period. Table locks are never taken under s.mu.
func (s *Server) unregister(client *Connection) {
	s.mu.Lock()
	delete(s.connections, client)
	total := len(s.connections)
	s.mu.Unlock()

	if playerID := client.Player(); playerID != "" {
		for _, tableID := range client.Seated() {
			s.registry.Disconnect(tableID, playerID, client.ID())
		}
	}
	s.logger.Info("Client disconnected", "conn", client.ID(), "player", client.Player(), "total", total)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// TableUpdated sends every follower of the table its own view.
func (s *Server) TableUpdated(snap game.Snapshot) {
	s.forEachAt(snap.TableID, func(c *Connection, viewer string) {
		c.reply(MessageTypeTableSnapshot, snap.ViewFor(viewer))
	})
}

func (s *Server) TimerTick(tableID, playerID string, secondsRemaining int) {
	msg, err := NewMessage(MessageTypeTimerTick, TimerTickData{
		TableID:          tableID,
		PlayerID:         playerID,
		SecondsRemaining: secondsRemaining,
	})
	if err != nil {
		s.logger.Error("Failed to create timer tick", "error", err)
		return
	}
	s.BroadcastToTable(tableID, msg)
}

func (s *Server) HandEnded(res game.HandResult) {
	msg, err := NewMessage(MessageTypeHandResult, res)
	if err != nil {
		s.logger.Error("Failed to create hand result", "error", err)
		return
	}
	s.BroadcastToTable(res.TableID, msg)
}

// BroadcastToTable sends a message to all connections following a table
func (s *Server) BroadcastToTable(tableID string, msg *Message) {
	count := 0
	s.forEachAt(tableID, func(c *Connection, _ string) {
		if err := c.SendMessage(msg); err == nil {
			count++
		}
	})
	s.logger.Debug("Broadcasted message to table", "table", tableID, "type", msg.Type, "recipients", count)
}

func (s *Server) forEachAt(tableID string, fn func(c *Connection, viewer string)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.connections {
		if viewer, ok := conn.viewerAt(tableID); ok {
			fn(conn, viewer)
		}
	}
}
