package cli

import (
	"context"
	"errors"

	"github.com/fortuna/courtside/internal/cache"
	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/config"
	"github.com/fortuna/courtside/internal/export"
	"github.com/fortuna/courtside/internal/ingest/statsnba"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/publisher"
	"github.com/fortuna/courtside/internal/ratelimit"
	"github.com/fortuna/courtside/internal/resolve"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/fortuna/courtside/internal/store/repository"
	"github.com/sirupsen/logrus"
)

// Needs tells the builder which startup work a command depends on.
type Needs struct {
	// Players loads the player index, which costs one API request.
	Players bool
}

// Builder constructs the application for one command run.
type Builder func(ctx context.Context, cfg *config.Config, needs Needs) (*App, error)

// App is everything a command works with. DB, Redis and Events are nil when
// not configured.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Scraper *service.Scraper

	DB         *store.Database
	Redis      *cache.RedisCache
	Events     *publisher.RedisStreamPublisher
	GameLogs   *repository.GameLogRepository
	SpotChecks *repository.SpotCheckRepository

	closers []func() error
}

// Close releases the app's connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// BuildApp wires the stats client, optional Redis and Postgres, the sinks
// and the scraper from cfg.
func BuildApp(ctx context.Context, cfg *config.Config, needs Needs) (*App, error) {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	app := &App{Config: cfg, Logger: logger}
	log := logging.Component(logger, "app")

	var transport statsnba.Transport
	switch cfg.Stats.Transport {
	case config.TransportBrowser:
		bt := statsnba.NewBrowserTransport(cfg.Stats.RequestTimeout)
		app.onClose(func() error { bt.Close(); return nil })
		transport = bt
	default:
		transport = statsnba.NewHTTPTransport(cfg.Stats.RequestTimeout)
	}

	clientOpts := statsnba.ClientOptions{
		BaseURL:   cfg.Stats.BaseURL,
		Transport: transport,
		Governor: ratelimit.NewGovernor(cfg.Stats.RequestInterval,
			ratelimit.WithLogger(logging.Component(logger, "governor"))),
		MaxRetries: cfg.Stats.MaxRetries,
		RetryDelay: cfg.Stats.RetryDelay,
		CacheTTL:   cfg.Redis.CacheTTL,
		Logger:     logging.Component(logger, "statsnba"),
	}

	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache and events")
		} else {
			app.Redis = rc
			app.Events = publisher.NewRedisStreamPublisher(rc.Client())
			app.onClose(rc.Close)
			clientOpts.Cache = rc
			log.Info("connected to Redis")
		}
	}

	fetcher := statsnba.NewFetcher(statsnba.NewClient(clientOpts), logging.Component(logger, "fetcher"))

	var players []store.EntityRef
	if needs.Players {
		var err error
		players, err = fetcher.FetchPlayerIndex(ctx, cfg.Season)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				app.Close()
				return nil, err
			}
			log.WithError(err).Error("failed to load player index, player names will not resolve")
		}
	}

	opts := service.Options{
		Resolver:   resolve.New(players, statsnba.Teams(), logging.Component(logger, "resolver")),
		Source:     fetcher,
		CSV:        export.NewCSVSink(cfg.DataDir, logging.Component(logger, "csv")),
		Charts:     chart.NewSVGSink(cfg.DataDir, logging.Component(logger, "charts")),
		Season:     cfg.Season,
		SeasonType: cfg.SeasonType,
		Logger:     logging.Component(logger, "scraper"),
	}
	if app.Events != nil {
		opts.Events = app.Events
	}

	if cfg.DatabaseDSN != "" {
		db, err := store.NewDatabase(cfg.DatabaseDSN, logging.Component(logger, "store"))
		if err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "connect to database", err)
		}
		app.onClose(db.Close)
		if err := db.RunMigrations(ctx); err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "run migrations", err)
		}
		app.DB = db
		app.GameLogs = repository.NewGameLogRepository(db)
		app.SpotChecks = repository.NewSpotCheckRepository(db)
		opts.GameLogs = app.GameLogs
		opts.SpotChecks = app.SpotChecks
	}

	app.Scraper = service.NewScraper(opts)
	return app, nil
}

// withApp loads configuration, builds the app and closes it after fn.
func withApp(ctx context.Context, opts *RootOptions, needs Needs, fn func(*App) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	build := opts.build
	if build == nil {
		build = BuildApp
	}
	app, err := build(ctx, cfg, needs)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
