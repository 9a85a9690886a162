package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/courtside/internal/reconciliation"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/spf13/cobra"
)

// NewPlayerCommand creates the player command.
func NewPlayerCommand(opts *RootOptions) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "player <name>",
		Short: "Fetch a player's game log",
		Long: `Resolve a player by name and fetch their game log for the configured season.

The log is written to players/<First_Last>_games.csv under the data directory
unless --no-save is given. Names may be given unquoted.`,
		Example:       "  courtside player LeBron James --season 2023-24",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, Needs{Players: true}, func(app *App) error {
				res, err := app.Scraper.PlayerGameLog(cmd.Context(), name, !noSave)
				return reportGameLog(newFormatter(opts, cmd.OutOrStdout()), name, res, err)
			})
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "fetch without writing CSV")
	return cmd
}

// NewTeamCommand creates the team command.
func NewTeamCommand(opts *RootOptions) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:           "team <name>",
		Short:         "Fetch a team's game log",
		Long:          "Resolve a team by name, nickname or abbreviation and fetch its game log.",
		Example:       "  courtside team celtics\n  courtside team LAL --season-type playoffs",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return withApp(cmd.Context(), opts, Needs{}, func(app *App) error {
				res, err := app.Scraper.TeamGameLog(cmd.Context(), name, !noSave)
				return reportGameLog(newFormatter(opts, cmd.OutOrStdout()), name, res, err)
			})
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "fetch without writing CSV")
	return cmd
}

func reportGameLog(out *OutputFormatter, query string, res *service.GameLogResult, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("no match for %q", query), err)
	}
	if err != nil && !errors.Is(err, store.ErrEmptyResult) {
		return WrapExitError(ExitCommandError, "fetch game log", err)
	}

	name := res.Entity.FullName
	if res.Empty {
		return out.Success(res, fmt.Sprintf("No games found for %s in %s %s", name, res.Season, res.Type))
	}

	lines := []string{fmt.Sprintf("%s: %d games (%s %s)", name, res.Dataset.Len(), res.Season, res.Type)}
	if res.Match != nil && res.Match.Ambiguous() {
		lines = append(lines, fmt.Sprintf("  %d candidates matched %q by %s; using %s", res.Match.Candidates, query, res.Match.Strategy, name))
	}
	if res.Path != "" {
		lines = append(lines, "  saved "+res.Path)
	}
	return out.Success(res, lines...)
}

// NewBoxScoreCommand creates the boxscore command.
func NewBoxScoreCommand(opts *RootOptions) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:           "boxscore <game-id>",
		Short:         "Fetch a game's traditional box score",
		Long:          "Fetch player and team splits for one game and save them under boxscores/.",
		Example:       "  courtside boxscore 0022400061",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, Needs{}, func(app *App) error {
				res, err := app.Scraper.BoxScore(cmd.Context(), args[0], !noSave)
				return reportBoxScore(newFormatter(opts, cmd.OutOrStdout()), args[0], res, err)
			})
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "fetch without writing CSV")
	return cmd
}

func reportBoxScore(out *OutputFormatter, gameID string, res *service.BoxScoreResult, err error) error {
	if err != nil && !errors.Is(err, store.ErrEmptyResult) {
		return WrapExitError(ExitCommandError, "fetch box score", err)
	}
	if res.Empty {
		return out.Success(res, fmt.Sprintf("No box score for game %s", gameID))
	}

	lines := []string{fmt.Sprintf("Game %s: %d player rows, %d team rows", gameID, res.BoxScore.Players.Len(), res.BoxScore.Teams.Len())}
	for _, p := range []string{res.PlayersPath, res.TeamsPath} {
		if p != "" {
			lines = append(lines, "  saved "+p)
		}
	}
	return out.Success(res, lines...)
}

// NewSpotCheckCommand creates the spotcheck command.
func NewSpotCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "spotcheck <game-id>",
		Short: "Check that player points add up to team points",
		Long: `Fetch a game's box score and compare each team's reported points with the
sum of its players' points.

Exit codes:
  0  totals agree
  1  totals disagree
  2  the box score could not be fetched`,
		Example:       "  courtside spotcheck 0022400061",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, Needs{}, func(app *App) error {
				report, err := app.Scraper.SpotCheck(cmd.Context(), args[0])
				return reportSpotCheck(newFormatter(opts, cmd.OutOrStdout()), report, err)
			})
		},
	}
}

func reportSpotCheck(out *OutputFormatter, report *reconciliation.Report, fetchErr error) error {
	if fetchErr != nil && !errors.Is(fetchErr, store.ErrEmptyResult) {
		return WrapExitError(ExitCommandError, "fetch box score", fetchErr)
	}

	lines := []string{}
	for _, side := range report.Sides {
		label := side.Abbreviation
		if label == "" {
			label = fmt.Sprint(side.TeamID)
		}
		mark := "ok"
		if !side.Consistent {
			mark = "MISMATCH"
		}
		lines = append(lines, fmt.Sprintf("  %-4s team %s  players %s  (%d players) %s",
			label, side.Reported.String(), side.Computed.String(), side.Players, mark))
	}

	if report.Passed {
		lines = append([]string{fmt.Sprintf("Game %s: totals consistent", report.GameID)}, lines...)
		return out.Success(report, lines...)
	}

	lines = append([]string{fmt.Sprintf("Game %s: FAILED: %s", report.GameID, report.Reason)}, lines...)
	if err := out.Failure(report, report.Reason, lines...); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, "spot check failed", report.Err())
}
