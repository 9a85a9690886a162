package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "courtside", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	for _, name := range []string{"config", "data-dir", "season", "season-type", "transport", "log-level", "log-format", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	paths := [][]string{
		{"player"},
		{"team"},
		{"boxscore"},
		{"spotcheck"},
		{"compare", "players"},
		{"compare", "teams"},
		{"sweep", "teams"},
		{"sweep", "games"},
		{"serve"},
	}
	for _, path := range paths {
		t.Run(fmt.Sprint(path), func(t *testing.T) {
			found, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], found.Name())
		})
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		path []string
		flag string
		def  string
	}{
		{[]string{"player"}, "no-save", "false"},
		{[]string{"team"}, "no-save", "false"},
		{[]string{"boxscore"}, "no-save", "false"},
		{[]string{"compare", "players"}, "stat", "PTS"},
		{[]string{"sweep", "teams"}, "days-back", "30"},
		{[]string{"serve"}, "port", ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.path)+"/"+tt.flag, func(t *testing.T) {
			found, _, err := cmd.Find(tt.path)
			require.NoError(t, err)
			f := found.Flags().Lookup(tt.flag)
			if f == nil {
				f = found.InheritedFlags().Lookup(tt.flag)
			}
			require.NotNil(t, f, "missing --%s on %v", tt.flag, tt.path)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInvalidGlobalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--format", "xml", "team", "BOS"}},
		{"season type", []string{"--season-type", "summer league", "team", "BOS"}},
		{"transport", []string{"--transport", "carrier-pigeon", "team", "BOS"}},
		{"missing args", []string{"boxscore"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCLIHarness(t)
			_, err := h.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapExitError(ExitFailure, "spot check failed", inner)

	assert.Equal(t, "spot check failed: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "plain", NewExitError(ExitCommandError, "plain").Error())

	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, ExitCommandError, GetExitCode(inner))
}
