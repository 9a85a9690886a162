package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/courtside/internal/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository persists sweep jobs in PostgreSQL.
type Repository struct {
	db *store.Database
}

var _ JobStore = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

const jobColumns = `job_id, job_type, season, season_type, days_back, game_ids,
	status, status_message, progress_current, progress_total,
	last_error, created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new job row and returns the stored record.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	id := job.JobID
	if id == "" {
		id = uuid.NewString()
	}
	gameIDs := job.GameIDs
	if gameIDs == nil {
		gameIDs = []string{}
	}

	query := `
		INSERT INTO sweep_jobs (
			job_id, job_type, season, season_type, days_back, game_ids,
			status, status_message, progress_current, progress_total
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + jobColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		id, string(job.JobType), job.Season, job.SeasonType, job.DaysBack, pq.Array(gameIDs),
		string(job.Status), nullString(job.StatusMessage), job.ProgressCurrent, job.ProgressTotal,
	)

	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return stored, nil
}

// UpdateStatus updates status, message and optional error.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	query := `
		UPDATE sweep_jobs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			completed_at = CASE WHEN $2::varchar IN ('completed','failed','cancelled') THEN NOW() ELSE completed_at END
		WHERE job_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, string(status), message, errText); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	query := `
		UPDATE sweep_jobs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, current, total, message); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// ResetStuckJobs moves running jobs back to queued after a restart.
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE sweep_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the oldest queued job.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM sweep_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE sweep_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE sweep_jobs.job_id = next_job.job_id
		RETURNING sweep_jobs.job_id, sweep_jobs.job_type, sweep_jobs.season,
			sweep_jobs.season_type, sweep_jobs.days_back, sweep_jobs.game_ids,
			sweep_jobs.status, sweep_jobs.status_message,
			sweep_jobs.progress_current, sweep_jobs.progress_total,
			sweep_jobs.last_error, sweep_jobs.created_at, sweep_jobs.updated_at,
			sweep_jobs.started_at, sweep_jobs.completed_at
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the currently running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM sweep_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recently created jobs.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM sweep_jobs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	var (
		job         Job
		jobType     string
		status      string
		message     sql.NullString
		lastErr     sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := scanner.Scan(
		&job.JobID,
		&jobType,
		&job.Season,
		&job.SeasonType,
		&job.DaysBack,
		pq.Array(&job.GameIDs),
		&status,
		&message,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&lastErr,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.JobType = JobType(jobType)
	job.Status = JobStatus(status)
	job.StatusMessage = message.String
	job.LastError = lastErr.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
