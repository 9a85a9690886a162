// Package scheduler queues the daily teams sweep while the server runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

// Enqueuer queues sweeps. backfill.Service implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
}

// Config holds scheduler configuration.
type Config struct {
	Hour     int // local hour of day, 0-23
	DaysBack int
}

// Status is a snapshot of the scheduler for logs and the API.
type Status struct {
	Hour      int       `json:"hour"`
	DaysBack  int       `json:"days_back"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastJobID string    `json:"last_job_id,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler enqueues a teams sweep once a day at a fixed hour.
type Scheduler struct {
	enqueuer Enqueuer
	config   Config
	clock    ratelimit.Clock
	log      *logrus.Entry

	mu     sync.Mutex
	status Status
}

// New creates a scheduler. A nil clock means the system clock.
func New(enqueuer Enqueuer, config Config, clock ratelimit.Clock, log *logrus.Entry) *Scheduler {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if log == nil {
		log = logging.Component(nil, "scheduler")
	}
	return &Scheduler{
		enqueuer: enqueuer,
		config:   config,
		clock:    clock,
		log:      log,
		status:   Status{Hour: config.Hour, DaysBack: config.DaysBack},
	}
}

// NextRun is the first time at hour:00 strictly after now, in now's location.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{"hour": s.config.Hour, "days_back": s.config.DaysBack}).Info("daily sweep scheduled")
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Info("daily sweep scheduler stopped")
			return
		}
	}
}

// RunOnce waits for the next run time and queues one sweep. It returns an
// error only when ctx ends first; enqueue failures are recorded in Status.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	next := NextRun(now, s.config.Hour)

	s.mu.Lock()
	s.status.NextRun = next
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"next_run": next.Format(time.RFC3339),
		"wait":     next.Sub(now).Round(time.Second),
	}).Debug("waiting for daily sweep")

	if err := s.clock.Sleep(ctx, next.Sub(now)); err != nil {
		return err
	}
	s.Trigger(ctx)
	return nil
}

// Trigger queues a sweep immediately.
func (s *Scheduler) Trigger(ctx context.Context) (*backfill.Job, error) {
	job, err := s.enqueuer.Enqueue(ctx, backfill.Request{Type: backfill.JobTypeTeams, DaysBack: s.config.DaysBack})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = s.clock.Now()
	if err != nil {
		s.status.LastError = err.Error()
		s.log.WithError(err).Error("failed to queue daily sweep")
		return nil, err
	}
	s.status.LastJobID = job.JobID
	s.status.LastError = ""
	s.log.WithField("job_id", job.JobID).Info("daily sweep queued")
	return job, nil
}

// GetStatus returns the scheduler status.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
