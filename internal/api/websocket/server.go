package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server exposes the hub over HTTP.
type Server struct {
	hub      *Hub
	ctx      context.Context
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewServer creates a server for hub. Client pumps stop when ctx is done.
func NewServer(ctx context.Context, hub *Hub, allowedOrigins []string, log *logrus.Entry) *Server {
	if log == nil {
		log = hub.log
	}
	return &Server{
		hub: hub,
		ctx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// RegisterRoutes mounts the WebSocket endpoints on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/sweeps", s.handleSweeps)
	r.HandleFunc("/ws/health", s.handleHealth).Methods("GET")
}

func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	c := NewClient(uuid.NewString(), conn, s.hub, s.log)
	s.hub.Register(c)

	// Pumps outlive the request, so they take the server context.
	go c.WritePump(s.ctx)
	go c.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
		"metrics": s.hub.GetMetrics(),
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
