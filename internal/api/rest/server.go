package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/courtside/internal/api/websocket"
	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Options configures the REST server. Sweeps, SpotChecks, Trends, WebSocket
// and Health are optional.
type Options struct {
	Port           string
	Scraper        *service.Scraper
	Sweeps         *backfill.Service
	SpotChecks     SpotCheckHistory
	Trends         *service.TrendService
	WebSocket      *websocket.Server
	Health         map[string]HealthChecker
	RateLimit      float64
	Burst          int
	AllowedOrigins []string
	Logger         *logrus.Entry
}

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler http.Handler
	log     *logrus.Entry
}

// NewServer creates a new REST API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Component(nil, "rest")
	}
	handler := NewHandler(opts.Scraper, opts.SpotChecks, opts.Health, opts.Logger)
	handler.trends = opts.Trends

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(opts.Logger))
	router.Use(LoggingMiddleware(opts.Logger))

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	if opts.WebSocket != nil {
		opts.WebSocket.RegisterRoutes(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(RateLimitMiddleware(opts.RateLimit, opts.Burst))

	// Players
	api.HandleFunc("/players/resolve", handler.ResolvePlayer).Methods("GET")
	api.HandleFunc("/players/{playerID:[0-9]+}/gamelog", handler.GetPlayerGameLog).Methods("GET")
	api.HandleFunc("/players/{playerID:[0-9]+}/trend", handler.GetPlayerTrend).Methods("GET")

	// Teams
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET")
	api.HandleFunc("/teams/resolve", handler.ResolveTeam).Methods("GET")
	api.HandleFunc("/teams/{teamID:[0-9]+}/gamelog", handler.GetTeamGameLog).Methods("GET")
	api.HandleFunc("/teams/{teamID:[0-9]+}/trend", handler.GetTeamTrend).Methods("GET")

	// Games
	api.HandleFunc("/games/{gameID}/boxscore", handler.GetBoxScore).Methods("GET")
	api.HandleFunc("/games/{gameID}/spotcheck", handler.GetSpotCheck).Methods("GET")
	api.HandleFunc("/games/{gameID}/spotchecks", handler.GetSpotCheckHistory).Methods("GET")
	api.HandleFunc("/spotchecks/metrics", handler.GetCheckerMetrics).Methods("GET")

	// Charts
	api.HandleFunc("/compare/{kind}", handler.Compare).Methods("GET")

	// Sweeps
	if opts.Sweeps != nil {
		sweeps := NewSweepHandler(opts.Sweeps)
		api.HandleFunc("/sweeps", sweeps.HandleSweepRequest).Methods("POST")
		api.HandleFunc("/sweeps/status", sweeps.HandleSweepStatus).Methods("GET")
	}

	// CORS wraps the router so preflight requests reach it before method
	// matching.
	root := CORSMiddleware(opts.AllowedOrigins)(router)

	return &Server{
		port:    opts.Port,
		handler: root,
		log:     opts.Logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", opts.Port),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.log.WithField("port", s.port).Info("REST API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
