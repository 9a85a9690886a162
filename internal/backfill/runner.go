package backfill

import (
	"context"
	"fmt"

	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
)

// Sweeper performs the multi-item fetches behind a job. service.Scraper
// implements it.
type Sweeper interface {
	RecentGamesForAllTeams(ctx context.Context, daysBack int, progress service.ProgressFunc) (map[int]*store.Dataset, error)
	BoxScores(ctx context.Context, gameIDs []string, progress service.ProgressFunc) (map[string]*store.BoxScore, error)
}

// Runner executes job specs against a sweeper for the job's season.
type Runner struct {
	sweeper func(season, seasonType string) Sweeper
}

// NewRunner constructs a runner backed by the scraper.
func NewRunner(scraper *service.Scraper) *Runner {
	return &Runner{
		sweeper: func(season, seasonType string) Sweeper {
			return scraper.WithSeason(season, seasonType)
		},
	}
}

// NewRunnerWithSweeper uses the same sweeper for every season.
func NewRunnerWithSweeper(s Sweeper) *Runner {
	return &Runner{
		sweeper: func(string, string) Sweeper { return s },
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// Items that fail are reported and skipped; Run fails only when the sweep
// is cancelled or produced nothing at all.
func (r *Runner) Run(ctx context.Context, jobID string, spec JobSpec, reporter Reporter) error {
	if reporter == nil {
		reporter = Reporters(nil)
	}

	sweeper := r.sweeper(spec.Season, spec.SeasonType)

	var (
		failed  int
		lastErr error
	)
	progress := func(p service.Progress) {
		if p.Err != nil {
			failed++
			lastErr = p.Err
		}
		reporter.OnItem(jobID, p.Item, p.Rows, p.Err)
		reporter.OnProgress(jobID, itemMessage(p), p.Current, p.Total)
	}

	var (
		done int
		err  error
	)
	switch spec.Type {
	case JobTypeTeams:
		reporter.OnJobStart(jobID, spec, 0)
		var logs map[int]*store.Dataset
		logs, err = sweeper.RecentGamesForAllTeams(ctx, spec.DaysBack, progress)
		done = len(logs)
	case JobTypeGames:
		if len(spec.GameIDs) == 0 {
			err = fmt.Errorf("no game IDs provided for job type %q", spec.Type)
			reporter.OnJobError(jobID, err)
			return err
		}
		reporter.OnJobStart(jobID, spec, len(spec.GameIDs))
		var scores map[string]*store.BoxScore
		scores, err = sweeper.BoxScores(ctx, spec.GameIDs, progress)
		done = len(scores)
	default:
		err = fmt.Errorf("unsupported job type %q", spec.Type)
		reporter.OnJobError(jobID, err)
		return err
	}

	if err != nil {
		reporter.OnJobError(jobID, err)
		return err
	}
	if done == 0 && failed > 0 {
		err = fmt.Errorf("all %d items failed: %w", failed, lastErr)
		reporter.OnJobError(jobID, err)
		return err
	}

	msg := fmt.Sprintf("Saved %d %s", done, unit(spec.Type, done))
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, failed)
	}
	reporter.OnJobComplete(jobID, msg)
	return nil
}

func itemMessage(p service.Progress) string {
	if p.Err != nil {
		return fmt.Sprintf("%s failed (%d/%d)", p.Item, p.Current, p.Total)
	}
	return fmt.Sprintf("%s: %d rows (%d/%d)", p.Item, p.Rows, p.Current, p.Total)
}

func unit(t JobType, n int) string {
	switch {
	case t == JobTypeTeams && n == 1:
		return "team log"
	case t == JobTypeTeams:
		return "team logs"
	case n == 1:
		return "box score"
	default:
		return "box scores"
	}
}
