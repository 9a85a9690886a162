package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/spf13/cobra"
)

// CompareOptions holds flags for the compare commands.
type CompareOptions struct {
	*RootOptions
	Stat string
}

// NewCompareCommand creates the compare command and its players and teams
// subcommands.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Chart one stat for two players or two teams",
		Long: `Fetch and save both game logs, then write an SVG chart of the stat per game
with a rolling mean and season averages to visualizations/<A>_vs_<B>_<STAT>.svg.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Stat, "stat", "PTS", "column to chart, e.g. PTS, REB, AST, FG_PCT")

	cmd.AddCommand(&cobra.Command{
		Use:           "players <a> <b>",
		Short:         "Compare two players",
		Example:       `  courtside compare players "LeBron James" "Stephen Curry" --stat AST`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.RootOptions, Needs{Players: true}, func(app *App) error {
				return runCompare(cmd, opts, args, app.Scraper.ComparePlayers)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "teams <a> <b>",
		Short:         "Compare two teams",
		Example:       "  courtside compare teams BOS LAL --stat REB",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.RootOptions, Needs{}, func(app *App) error {
				return runCompare(cmd, opts, args, app.Scraper.CompareTeams)
			})
		},
	})

	return cmd
}

type compareFunc func(ctx context.Context, a, b, stat string) (*service.CompareResult, error)

func runCompare(cmd *cobra.Command, opts *CompareOptions, args []string, compare compareFunc) error {
	res, err := compare(cmd.Context(), args[0], args[1], opts.Stat)
	switch {
	case errors.Is(err, chart.ErrUnknownStat):
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot chart %s", opts.Stat), err)
	case errors.Is(err, store.ErrNotFound):
		return WrapExitError(ExitCommandError, "no match", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "compare", err)
	}

	c := res.Comparison
	lines := []string{
		c.Title,
		fmt.Sprintf("  %-24s %3d games  avg %.1f", c.A.Label, len(c.A.Points), chart.Mean(c.A.Values())),
		fmt.Sprintf("  %-24s %3d games  avg %.1f", c.B.Label, len(c.B.Points), chart.Mean(c.B.Values())),
		"  saved " + res.Path,
	}
	return newFormatter(opts.RootOptions, cmd.OutOrStdout()).Success(res, lines...)
}
