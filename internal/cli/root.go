package cli

import (
	"fmt"

	"github.com/fortuna/courtside/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Season     string
	SeasonType string
	Transport  string
	LogLevel   string
	LogFormat  string
	Format     string // "json" | "text"

	// build constructs the application for a command. Tests replace it.
	build Builder
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the courtside CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{build: BuildApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courtside",
		Short: "Fetch, check and chart NBA statistics",
		Long: "courtside pulls game logs and box scores from stats.nba.com at a polite pace,\n" +
			"saves them as CSV, checks box scores for consistency and charts comparisons.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.SeasonType != "" {
				st, err := config.NormalizeSeasonType(opts.SeasonType)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --season-type", err)
				}
				opts.SeasonType = st
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory for CSV and SVG output")
	cmd.PersistentFlags().StringVar(&opts.Season, "season", "", "season, e.g. 2024-25")
	cmd.PersistentFlags().StringVar(&opts.SeasonType, "season-type", "", "Regular Season, Playoffs, Pre Season or All Star")
	cmd.PersistentFlags().StringVar(&opts.Transport, "transport", "", "stats API transport (http|browser)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewPlayerCommand(opts))
	cmd.AddCommand(NewTeamCommand(opts))
	cmd.AddCommand(NewBoxScoreCommand(opts))
	cmd.AddCommand(NewSpotCheckCommand(opts))
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Season != "" {
		cfg.Season = opts.Season
	}
	if opts.SeasonType != "" {
		cfg.SeasonType = opts.SeasonType
	}
	if opts.Transport != "" {
		cfg.Stats.Transport = opts.Transport
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}
