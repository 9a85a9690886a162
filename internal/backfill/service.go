package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fortuna/courtside/internal/logging"
	"github.com/sirupsen/logrus"
)

// Options configures a Service.
type Options struct {
	Store        JobStore
	Runner       *Runner
	Reporters    []Reporter
	Season       string
	SeasonType   string
	HistoryLimit int
	PollInterval time.Duration
	Logger       *logrus.Entry
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	store      JobStore
	runner     *Runner
	reporters  Reporters
	season     string
	seasonType string

	historyLimit int
	pollInterval time.Duration
	wake         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewService constructs a Service. Call Start to launch the worker, or
// RunPending to drain the queue in the foreground.
func NewService(opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Store == nil {
		opts.Store = NewMemoryJobStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component(nil, "sweeps")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}

	return &Service{
		store:        opts.Store,
		runner:       opts.Runner,
		reporters:    Reporters(opts.Reporters),
		season:       opts.Season,
		seasonType:   opts.SeasonType,
		historyLimit: opts.HistoryLimit,
		pollInterval: opts.PollInterval,
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		log:          opts.Logger,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.store.ResetStuckJobs(s.ctx); err != nil {
		s.log.WithError(err).Warn("failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for the running job to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue validates the request and queues a job for it.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       req.Type,
		Season:        req.Season,
		SeasonType:    req.SeasonType,
		DaysBack:      req.DaysBack,
		GameIDs:       req.GameIDs,
		Status:        JobStatusQueued,
		StatusMessage: "Queued",
	}
	if job.Season == "" {
		job.Season = s.season
	}
	if job.SeasonType == "" {
		job.SeasonType = s.seasonType
	}
	if job.JobType == JobTypeGames {
		job.ProgressTotal = len(job.GameIDs)
	}

	stored, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   stored.JobID,
		"job_type": stored.JobType,
	}).Info("job queued")

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.store.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

// RunPending executes queued jobs in the caller's goroutine until the queue
// is empty and returns how many ran.
func (s *Service) RunPending(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		job, err := s.store.MarkNextJobRunning(ctx)
		if err != nil {
			return n, err
		}
		if job == nil {
			return n, nil
		}
		s.executeJob(ctx, job)
		n++
	}
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.ctx.Err() != nil {
			return
		}

		job, err := s.store.MarkNextJobRunning(s.ctx)
		if err != nil {
			s.log.WithError(err).Error("claim job error")
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			case <-s.wake:
			}
			continue
		}

		s.executeJob(s.ctx, job)
	}
}

func (s *Service) executeJob(ctx context.Context, job *Job) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.JobID, "job_type": job.JobType})
	// Status writes must land even when ctx was cancelled mid-job.
	bg := context.WithoutCancel(ctx)

	if s.runner == nil {
		err := fmt.Errorf("no runner configured")
		_ = s.store.UpdateStatus(bg, job.JobID, JobStatusFailed, "Job failed", err)
		s.reporters.OnJobError(job.JobID, err)
		return
	}

	jr := &jobReporter{
		ctx:     bg,
		store:   s.store,
		jobID:   job.JobID,
		total:   job.ProgressTotal,
		summary: "Job completed",
		log:     log,
	}
	reporter := append(Reporters{jr}, s.reporters...)

	log.Info("job started")
	start := time.Now()
	err := s.runner.Run(ctx, job.JobID, job.Spec(), reporter)

	switch {
	case err == nil:
		_ = s.store.UpdateStatus(bg, job.JobID, JobStatusCompleted, jr.summary, nil)
		log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("job completed")
	case errors.Is(err, context.Canceled):
		_ = s.store.UpdateStatus(bg, job.JobID, JobStatusCancelled, "Job cancelled", err)
		log.Warn("job cancelled")
	default:
		_ = s.store.UpdateStatus(bg, job.JobID, JobStatusFailed, "Job failed", err)
		log.WithError(err).Error("job failed")
	}
}

type jobReporter struct {
	ctx     context.Context
	store   JobStore
	jobID   string
	total   int
	summary string
	log     *logrus.Entry
}

func (r *jobReporter) OnJobStart(_ string, spec JobSpec, total int) {
	if total > 0 {
		r.total = total
	}
	_ = r.store.UpdateProgress(r.ctx, r.jobID, 0, r.total, "Job starting")
}

func (r *jobReporter) OnItem(_ string, item string, rows int, err error) {
	entry := r.log.WithFields(logrus.Fields{"item": item, "rows": rows})
	if err != nil {
		entry.WithError(err).Warn("item failed")
		return
	}
	entry.Debug("item saved")
}

func (r *jobReporter) OnProgress(_ string, message string, current int, total int) {
	if total > 0 {
		r.total = total
	}
	_ = r.store.UpdateProgress(r.ctx, r.jobID, current, r.total, message)
}

func (r *jobReporter) OnJobComplete(_ string, message string) {
	r.summary = message
	_ = r.store.UpdateProgress(r.ctx, r.jobID, r.total, r.total, message)
}

func (r *jobReporter) OnJobError(_ string, err error) {
	r.log.WithError(err).Warn("job error")
}
