package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fortuna/courtside/internal/api/rest"
	"github.com/fortuna/courtside/internal/api/websocket"
	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/scheduler"
	"github.com/fortuna/courtside/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and the sweep progress websocket",
		Long: `Start the HTTP server. REST endpoints live under /api/v1, sweep progress is
streamed on /ws/sweeps. Sweep jobs are kept in Postgres when database_dsn is
set and in memory otherwise.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, Needs{Players: true}, func(app *App) error {
				if port != "" {
					app.Config.Server.Port = port
				}
				return runServe(cmd.Context(), app)
			})
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides rest_port)")
	return cmd
}

func runServe(ctx context.Context, app *App) error {
	cfg := app.Config
	log := logging.Component(app.Logger, "serve")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(logging.Component(app.Logger, "ws-hub"))
	go hub.Run(ctx)
	wsServer := websocket.NewServer(ctx, hub, cfg.Server.AllowedOrigins, logging.Component(app.Logger, "websocket"))

	var jobs backfill.JobStore = backfill.NewMemoryJobStore()
	if app.DB != nil {
		jobs = backfill.NewRepository(app.DB)
	}
	reporters := []backfill.Reporter{websocket.NewProgressReporter(hub)}
	if app.Events != nil {
		reporters = append(reporters, backfill.NewEventReporter(app.Events, logging.Component(app.Logger, "sweep-events")))
	}
	sweeps := backfill.NewService(backfill.Options{
		Store:      jobs,
		Runner:     backfill.NewRunner(app.Scraper),
		Reporters:  reporters,
		Season:     cfg.Season,
		SeasonType: cfg.SeasonType,
		Logger:     logging.Component(app.Logger, "sweeps"),
	})
	sweeps.Start()
	log.Info("sweep worker started")

	if cfg.Server.DailySweepHour >= 0 {
		sched := scheduler.New(sweeps, scheduler.Config{
			Hour:     cfg.Server.DailySweepHour,
			DaysBack: cfg.Server.DailySweepDaysBack,
		}, nil, logging.Component(app.Logger, "scheduler"))
		go sched.Start(ctx)
	}

	health := map[string]rest.HealthChecker{}
	restOpts := rest.Options{
		Port:           cfg.Server.Port,
		Scraper:        app.Scraper,
		Sweeps:         sweeps,
		WebSocket:      wsServer,
		Health:         health,
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logging.Component(app.Logger, "rest"),
	}
	if app.DB != nil {
		health["database"] = app.DB
		restOpts.SpotChecks = app.SpotChecks
		restOpts.Trends = service.NewTrendService(app.GameLogs)
	}
	if app.Redis != nil {
		health["redis"] = app.Redis
	}
	server := rest.NewServer(restOpts)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.WithError(serveErr).Error("REST server stopped")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST shutdown")
	}
	if err := sweeps.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("sweep worker shutdown")
	}
	cancel()

	if serveErr != nil {
		return WrapExitError(ExitCommandError, "serve", serveErr)
	}
	return nil
}
