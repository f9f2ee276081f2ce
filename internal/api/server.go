// Package api provides the HTTP API and the WebSocket endpoint the remote
// consumer attaches to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"inputrouter/internal/config"
	"inputrouter/internal/input"
	"inputrouter/internal/network"
	"inputrouter/internal/protocol"
	"inputrouter/internal/router"
)

// Backend is the side of the host the server talks to. Every method may
// be called from an HTTP or socket goroutine.
type Backend interface {
	Snapshot(ctx context.Context) (router.Snapshot, error)
	Flush(ctx context.Context) error
	ConsumerConnected(session string)
	ConsumerDisconnected(session string)
	HandleAck(ack protocol.AckFrame)
	HandleControl(msg protocol.Message)
	Dispatch(e input.Event) bool
}

// Server provides the HTTP API and implements router.Sender on top of the
// connected consumer.
type Server struct {
	configMgr *config.Manager
	backend   Backend
	token     string

	flushTimeout time.Duration
	sendBuffer   int

	mu         sync.Mutex
	consumer   *consumerConn
	seq        uint32
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, backend Backend) *Server {
	cfg := configMgr.Get()
	return &Server{
		configMgr:    configMgr,
		backend:      backend,
		token:        cfg.General.APIToken,
		flushTimeout: cfg.Router.FlushTimeout(),
		sendBuffer:   cfg.Router.SendBufferSize,
	}
}

// Handler returns the routed handler with auth and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/flush", s.handleFlush)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start starts the API server on the specified port. It blocks until the
// server stops.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			log.Printf("API: Consumers can connect to ws://%s:%d/ws", ip, port)
		}
	}

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	s.httpServer = server
	s.mu.Unlock()

	log.Printf("API: Listening on %s", addr)
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown disconnects the consumer and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.consumer
	server := s.httpServer
	s.mu.Unlock()

	if c != nil {
		c.close()
	}
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Status is the body of GET /api/status
type Status struct {
	Connected bool            `json:"connected"`
	Session   string          `json:"session,omitempty"`
	Consumer  string          `json:"consumer,omitempty"`
	Router    router.Snapshot `json:"router"`
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		log.Printf("API: Snapshot failed: %v", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	status := Status{Router: snap}
	s.mu.Lock()
	if s.consumer != nil {
		status.Connected = true
		status.Session = s.consumer.session
		status.Consumer = s.consumer.name
	}
	s.mu.Unlock()

	writeJSON(w, status)
}

// handleFlush handles POST /api/flush. It returns once the router reports
// that nothing is in flight.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.flushTimeout)
	defer cancel()
	start := time.Now()
	if err := s.backend.Flush(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			http.Error(w, "Flush timed out", http.StatusGatewayTimeout)
			return
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":     "flushed",
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

// handleEvents handles POST /api/events with a JSON array of events to
// route as if they came from the local source.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var events []input.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		http.Error(w, "Invalid event data", http.StatusBadRequest)
		return
	}
	for i, e := range events {
		if !e.Type.Valid() {
			http.Error(w, fmt.Sprintf("event %d: invalid type %d", i, e.Type), http.StatusBadRequest)
			return
		}
	}

	for _, e := range events {
		if !s.backend.Dispatch(e) {
			http.Error(w, "Router stopped", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]int{"queued": len(events)})
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.configMgr.Get())

	case http.MethodPost:
		newCfg := config.DefaultConfig()
		if err := json.NewDecoder(r.Body).Decode(newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		if err := s.configMgr.Set(newCfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring and discovery)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	connected := s.consumer != nil
	s.mu.Unlock()

	writeJSON(w, network.Health{
		Status:    "ok",
		Service:   network.ServiceName,
		Connected: connected,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
