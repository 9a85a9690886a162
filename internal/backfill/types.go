package backfill

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRequest is wrapped by Request.Validate failures.
var ErrInvalidRequest = errors.New("invalid sweep request")

// JobType enumerates the supported sweep variants.
type JobType string

const (
	// JobTypeTeams fetches and saves every team's game log.
	JobTypeTeams JobType = "teams"
	// JobTypeGames fetches and saves a list of box scores.
	JobTypeGames JobType = "games"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a queued or finished sweep.
type Job struct {
	JobID           string     `json:"job_id"`
	JobType         JobType    `json:"job_type"`
	Season          string     `json:"season,omitempty"`
	SeasonType      string     `json:"season_type,omitempty"`
	DaysBack        int        `json:"days_back,omitempty"`
	GameIDs         []string   `json:"game_ids,omitempty"`
	Status          JobStatus  `json:"status"`
	StatusMessage   string     `json:"status_message,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Copy returns a copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	cpy.GameIDs = append([]string(nil), j.GameIDs...)
	return &cpy
}

// Spec returns the work the job describes.
func (j *Job) Spec() JobSpec {
	return JobSpec{
		Type:       j.JobType,
		Season:     j.Season,
		SeasonType: j.SeasonType,
		DaysBack:   j.DaysBack,
		GameIDs:    append([]string(nil), j.GameIDs...),
	}
}

// Request is an API or CLI request for a sweep.
type Request struct {
	Type       JobType  `json:"type"`
	Season     string   `json:"season,omitempty"`
	SeasonType string   `json:"season_type,omitempty"`
	DaysBack   int      `json:"days_back,omitempty"`
	GameIDs    []string `json:"game_ids,omitempty"`
}

// Validate checks the request and infers the type when it is missing.
func (r *Request) Validate() error {
	ids := r.GameIDs[:0]
	for _, id := range r.GameIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	r.GameIDs = ids

	if r.Type == "" {
		if len(r.GameIDs) > 0 {
			r.Type = JobTypeGames
		} else {
			r.Type = JobTypeTeams
		}
	}

	switch r.Type {
	case JobTypeTeams:
		if r.DaysBack < 0 {
			return fmt.Errorf("%w: days_back must not be negative", ErrInvalidRequest)
		}
	case JobTypeGames:
		if len(r.GameIDs) == 0 {
			return fmt.Errorf("%w: games job requires at least one game id", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidRequest, r.Type)
	}
	return nil
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type       JobType
	Season     string
	SeasonType string
	DaysBack   int
	GameIDs    []string
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(jobID string, spec JobSpec, total int)
	OnItem(jobID string, item string, rows int, err error)
	OnProgress(jobID string, message string, current int, total int)
	OnJobComplete(jobID string, message string)
	OnJobError(jobID string, err error)
}

// Reporters fans callbacks out to several reporters.
type Reporters []Reporter

func (rs Reporters) OnJobStart(jobID string, spec JobSpec, total int) {
	for _, r := range rs {
		r.OnJobStart(jobID, spec, total)
	}
}

func (rs Reporters) OnItem(jobID string, item string, rows int, err error) {
	for _, r := range rs {
		r.OnItem(jobID, item, rows, err)
	}
}

func (rs Reporters) OnProgress(jobID string, message string, current int, total int) {
	for _, r := range rs {
		r.OnProgress(jobID, message, current, total)
	}
}

func (rs Reporters) OnJobComplete(jobID string, message string) {
	for _, r := range rs {
		r.OnJobComplete(jobID, message)
	}
}

func (rs Reporters) OnJobError(jobID string, err error) {
	for _, r := range rs {
		r.OnJobError(jobID, err)
	}
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
