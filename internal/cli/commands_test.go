package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/config"
	"github.com/fortuna/courtside/internal/export"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/normalize"
	"github.com/fortuna/courtside/internal/resolve"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	luka = 1629029
	dal  = 1610612742
	sas  = 1610612759
)

type stubSource struct {
	players map[int]*store.Dataset
	teams   map[int]*store.Dataset
	boxes   map[string]*store.BoxScore
}

func (s *stubSource) FetchPlayerLog(_ context.Context, id int, season, _ string) (*store.Dataset, error) {
	if ds, ok := s.players[id]; ok {
		return ds, nil
	}
	return store.NewEmptyDataset(store.KindPlayerLog, id), fmt.Errorf("player %d %s: %w", id, season, store.ErrEmptyResult)
}

func (s *stubSource) FetchTeamLog(_ context.Context, id int, season, _ string) (*store.Dataset, error) {
	if ds, ok := s.teams[id]; ok {
		return ds, nil
	}
	return store.NewEmptyDataset(store.KindTeamLog, id), fmt.Errorf("team %d %s: %w", id, season, store.ErrEmptyResult)
}

func (s *stubSource) FetchBoxScore(_ context.Context, gameID string) (*store.BoxScore, error) {
	if bs, ok := s.boxes[gameID]; ok {
		return bs, nil
	}
	return store.NewEmptyBoxScore(gameID), fmt.Errorf("box score %s: %w", gameID, store.ErrTransport)
}

func gameLog(kind store.DatasetKind, id int, rows ...[]interface{}) *store.Dataset {
	table := &store.Table{Headers: []string{"Game_ID", "GAME_DATE", "MATCHUP", "PTS", "REB", "AST"}, Rows: rows}
	if kind == store.KindTeamLog {
		return normalize.TeamRows(table, id)
	}
	return normalize.PlayerRows(table, id)
}

func boxScore(gameID string, dalPts, sasPts float64) *store.BoxScore {
	return &store.BoxScore{
		GameID: gameID,
		Players: normalize.BoxPlayerRows(&store.Table{
			Headers: []string{"GAME_ID", "TEAM_ID", "PLAYER_ID", "PTS"},
			Rows: [][]interface{}{
				{gameID, dal, luka, 60}, {gameID, dal, 2, 60}, {gameID, sas, 3, 109},
			},
		}),
		Teams: normalize.BoxTeamRows(&store.Table{
			Headers: []string{"GAME_ID", "TEAM_ID", "TEAM_ABBREVIATION", "PTS"},
			Rows:    [][]interface{}{{gameID, dal, "DAL", dalPts}, {gameID, sas, "SAS", sasPts}},
		}),
	}
}

type cliHarness struct {
	t      *testing.T
	dir    string
	source *stubSource
	needs  []Needs
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{
		t:   t,
		dir: t.TempDir(),
		source: &stubSource{
			players: map[int]*store.Dataset{
				luka: gameLog(store.KindPlayerLog, luka,
					[]interface{}{"0022400075", "OCT 26, 2024", "DAL vs. HOU", 32, 10, 10},
					[]interface{}{"0022400061", "OCT 24, 2024", "DAL vs. SAS", 28, 6, 10},
				),
			},
			teams: map[int]*store.Dataset{
				dal: gameLog(store.KindTeamLog, dal,
					[]interface{}{"0022400075", "OCT 26, 2024", "DAL vs. HOU", 102, 40, 25},
					[]interface{}{"0022400061", "OCT 24, 2024", "DAL vs. SAS", 120, 45, 30},
				),
				sas: gameLog(store.KindTeamLog, sas,
					[]interface{}{"0022400061", "OCT 24, 2024", "SAS @ DAL", 109, 41, 22},
				),
			},
			boxes: map[string]*store.BoxScore{
				"0022400061": boxScore("0022400061", 120, 109),
				"0022400099": boxScore("0022400099", 118, 109),
			},
		},
	}
}

func (h *cliHarness) build(_ context.Context, cfg *config.Config, needs Needs) (*App, error) {
	h.needs = append(h.needs, needs)
	players := []store.EntityRef{
		{ID: luka, Kind: store.EntityPlayer, FullName: "Luka Doncic", FirstName: "Luka", LastName: "Doncic"},
	}
	teams := []store.EntityRef{
		{ID: dal, Kind: store.EntityTeam, FullName: "Dallas Mavericks", Abbreviation: "DAL", Nickname: "Mavericks"},
		{ID: sas, Kind: store.EntityTeam, FullName: "San Antonio Spurs", Abbreviation: "SAS", Nickname: "Spurs"},
	}
	logger := logging.Discard()
	return &App{
		Config: cfg,
		Logger: logger,
		Scraper: service.NewScraper(service.Options{
			Resolver:   resolve.New(players, teams, nil),
			Source:     h.source,
			CSV:        export.NewCSVSink(cfg.DataDir, nil),
			Charts:     chart.NewSVGSink(cfg.DataDir, nil),
			Season:     cfg.Season,
			SeasonType: cfg.SeasonType,
			Logger:     logging.Component(logger, "scraper"),
		}),
	}, nil
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCommand(&RootOptions{build: h.build})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data-dir", h.dir, "--season", "2024-25"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlayerCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("player", "luka", "doncic")
	require.NoError(t, err)

	assert.Contains(t, out, "Luka Doncic: 2 games (2024-25 Regular Season)")
	assert.FileExists(t, filepath.Join(h.dir, "players", "Luka_Doncic_games.csv"))
	assert.Equal(t, []Needs{{Players: true}}, h.needs)
}

func TestPlayerCommandNotFound(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("player", "Michael", "Jordan")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTeamCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     string
		saved    bool
		wantJSON bool
	}{
		{name: "saves", args: []string{"team", "mavericks"}, want: "Dallas Mavericks: 2 games", saved: true},
		{name: "no save", args: []string{"team", "DAL", "--no-save"}, want: "Dallas Mavericks: 2 games"},
		{name: "json", args: []string{"--format", "json", "team", "dal"}, saved: true, wantJSON: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCLIHarness(t)
			out, err := h.run(tt.args...)
			require.NoError(t, err)

			if tt.wantJSON {
				var resp CLIResponse
				require.NoError(t, json.Unmarshal([]byte(out), &resp))
				assert.Equal(t, "ok", resp.Status)
			} else {
				assert.Contains(t, out, tt.want)
			}

			path := filepath.Join(h.dir, "teams", "DAL_games.csv")
			if tt.saved {
				assert.FileExists(t, path)
			} else {
				assert.NoFileExists(t, path)
			}
			assert.Equal(t, []Needs{{}}, h.needs)
		})
	}
}

func TestTeamCommandEmptyLog(t *testing.T) {
	h := newCLIHarness(t)
	delete(h.source.teams, sas)

	out, err := h.run("team", "spurs")
	require.NoError(t, err)
	assert.Contains(t, out, "No games found for San Antonio Spurs")
	assert.NoFileExists(t, filepath.Join(h.dir, "teams", "SAS_games.csv"))
}

func TestBoxScoreCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("boxscore", "0022400061")
	require.NoError(t, err)
	assert.Contains(t, out, "Game 0022400061: 3 player rows, 2 team rows")
	assert.FileExists(t, filepath.Join(h.dir, "boxscores", "game_0022400061_player_stats.csv"))
	assert.FileExists(t, filepath.Join(h.dir, "boxscores", "game_0022400061_team_stats.csv"))

	_, err = h.run("boxscore", "0022499999")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransport)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSpotCheckCommand(t *testing.T) {
	tests := []struct {
		name     string
		gameID   string
		wantCode int
		want     string
	}{
		{name: "consistent", gameID: "0022400061", wantCode: ExitSuccess, want: "totals consistent"},
		{name: "inconsistent", gameID: "0022400099", wantCode: ExitFailure, want: "FAILED"},
		{name: "fetch failure", gameID: "0022499999", wantCode: ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCLIHarness(t)
			out, err := h.run("spotcheck", tt.gameID)

			assert.Equal(t, tt.wantCode, GetExitCode(err))
			if tt.want != "" {
				assert.Contains(t, out, tt.want)
			}
			if tt.wantCode == ExitFailure {
				assert.ErrorIs(t, err, store.ErrInconsistentTotals)
				assert.Contains(t, out, "MISMATCH")
			}
		})
	}
}

func TestSpotCheckCommandJSON(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("--format", "json", "spotcheck", "0022400099")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "players sum to 120")
}

func TestCompareCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("compare", "teams", "DAL", "SAS", "--stat", "REB")
	require.NoError(t, err)
	assert.Contains(t, out, "Team REB Comparison: DAL vs SAS")

	svg := filepath.Join(h.dir, "visualizations", "DAL_vs_SAS_REB.svg")
	require.FileExists(t, svg)
	data, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestCompareCommandUnknownStat(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("compare", "teams", "DAL", "SAS", "--stat", "BLK")
	require.Error(t, err)
	assert.ErrorIs(t, err, chart.ErrUnknownStat)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSweepGamesCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("sweep", "games", "0022400061", "0022499999")
	require.NoError(t, err)

	assert.Contains(t, out, "Fetching 2 box scores")
	assert.Contains(t, out, "0022499999   failed")
	assert.Contains(t, out, "Saved 1 box score, 1 failed")
	assert.FileExists(t, filepath.Join(h.dir, "boxscores", "game_0022400061_team_stats.csv"))
}

func TestSweepGamesCommandAllFailed(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("sweep", "games", "0022499998", "0022499999")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "all 2 items failed")
}

func TestSweepTeamsCommand(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("sweep", "teams", "--days-back", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 team logs")
	assert.FileExists(t, filepath.Join(h.dir, "teams", "SAS_games.csv"))
}
