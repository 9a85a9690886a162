package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command with teams and games
// subcommands.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fetch many logs or box scores in one paced run",
		Long: `Run a sweep in the foreground. Every request goes through the rate governor,
so a full teams sweep takes at least 30 request intervals. Failed items are
reported and skipped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var daysBack int
	teams := &cobra.Command{
		Use:           "teams",
		Short:         "Fetch and save every team's game log",
		Example:       "  courtside sweep teams --days-back 7",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts, backfill.Request{Type: backfill.JobTypeTeams, DaysBack: daysBack})
		},
	}
	teams.Flags().IntVar(&daysBack, "days-back", 30, "report games from the last N days")

	games := &cobra.Command{
		Use:           "games <game-id>...",
		Short:         "Fetch and save box scores for a list of games",
		Example:       "  courtside sweep games 0022400061 0022400062",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts, backfill.Request{Type: backfill.JobTypeGames, GameIDs: args})
		},
	}

	cmd.AddCommand(teams, games)
	return cmd
}

func runSweep(cmd *cobra.Command, opts *RootOptions, req backfill.Request) error {
	ctx := cmd.Context()
	out := newFormatter(opts, cmd.OutOrStdout())

	return withApp(ctx, opts, Needs{}, func(app *App) error {
		reporters := []backfill.Reporter{&printReporter{out: out}}
		if app.Events != nil {
			reporters = append(reporters, backfill.NewEventReporter(app.Events, logging.Component(app.Logger, "sweep-events")))
		}

		svc := backfill.NewService(backfill.Options{
			Runner:     backfill.NewRunner(app.Scraper),
			Reporters:  reporters,
			Season:     app.Config.Season,
			SeasonType: app.Config.SeasonType,
			Logger:     logging.Component(app.Logger, "sweeps"),
		})

		job, err := svc.Enqueue(ctx, req)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid sweep", err)
		}
		if _, err := svc.RunPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, "run sweep", err)
		}

		final, err := finishedJob(context.WithoutCancel(ctx), svc, job.JobID)
		if err != nil {
			return WrapExitError(ExitCommandError, "sweep status", err)
		}

		switch final.Status {
		case backfill.JobStatusCompleted:
			return out.Success(final, final.StatusMessage)
		case backfill.JobStatusCancelled:
			return NewExitError(ExitCommandError, "sweep cancelled")
		default:
			return NewExitError(ExitCommandError, fmt.Sprintf("sweep failed: %s", final.LastError))
		}
	})
}

func finishedJob(ctx context.Context, svc *backfill.Service, jobID string) (*backfill.Job, error) {
	summary, err := svc.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range summary.History {
		if j.JobID == jobID {
			return j, nil
		}
	}
	return nil, fmt.Errorf("job %s not found", jobID)
}

// printReporter writes sweep progress to the command output.
type printReporter struct {
	out *OutputFormatter
}

func (r *printReporter) OnJobStart(jobID string, spec backfill.JobSpec, total int) {
	switch spec.Type {
	case backfill.JobTypeTeams:
		r.out.Progress("Sweeping all teams for %s %s (last %d days)", spec.Season, spec.SeasonType, spec.DaysBack)
	default:
		r.out.Progress("Fetching %d box scores", total)
	}
}

func (r *printReporter) OnItem(jobID string, item string, rows int, err error) {
	if err != nil {
		r.out.Progress("  %-12s failed: %v", item, err)
		return
	}
	r.out.Progress("  %-12s %d rows", item, rows)
}

func (r *printReporter) OnProgress(jobID string, message string, current int, total int) {}

func (r *printReporter) OnJobComplete(jobID string, message string) {}

func (r *printReporter) OnJobError(jobID string, err error) {
	r.out.Progress("Sweep stopped: %v", err)
}
