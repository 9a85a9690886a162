package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fortuna/courtside/internal/backfill"
	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/export"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/normalize"
	"github.com/fortuna/courtside/internal/reconciliation"
	"github.com/fortuna/courtside/internal/resolve"
	"github.com/fortuna/courtside/internal/service"
	"github.com/fortuna/courtside/internal/store"
	"github.com/fortuna/courtside/internal/store/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	luka = 1629029
	dal  = 1610612742
	sas  = 1610612759
)

type stubSource struct {
	teamSeason string
}

func (s *stubSource) FetchPlayerLog(_ context.Context, id int, _, _ string) (*store.Dataset, error) {
	if id == luka {
		return normalize.PlayerRows(&store.Table{
			Headers: []string{"Game_ID", "GAME_DATE", "MATCHUP", "PTS"},
			Rows: [][]interface{}{
				{"0022400075", "OCT 26, 2024", "DAL vs. HOU", 32},
				{"0022400061", "OCT 24, 2024", "DAL @ SAS", 28},
			},
		}, id), nil
	}
	return store.NewEmptyDataset(store.KindPlayerLog, id), fmt.Errorf("player %d: %w", id, store.ErrEmptyResult)
}

func (s *stubSource) FetchTeamLog(_ context.Context, id int, season, _ string) (*store.Dataset, error) {
	s.teamSeason = season
	if id == dal || id == sas {
		return normalize.TeamRows(&store.Table{
			Headers: []string{"Game_ID", "GAME_DATE", "MATCHUP", "PTS"},
			Rows: [][]interface{}{
				{"0022400061", "OCT 24, 2024", "DAL @ SAS", 120},
				{"0022400075", "OCT 26, 2024", "DAL vs. HOU", 110},
			},
		}, id), nil
	}
	return nil, fmt.Errorf("team %d: %w", id, store.ErrTransport)
}

func (s *stubSource) FetchBoxScore(_ context.Context, gameID string) (*store.BoxScore, error) {
	if gameID != "0022400061" {
		return store.NewEmptyBoxScore(gameID), fmt.Errorf("box score %s: %w", gameID, store.ErrEmptyResult)
	}
	return &store.BoxScore{
		GameID: gameID,
		Players: normalize.BoxPlayerRows(&store.Table{
			Headers: []string{"GAME_ID", "TEAM_ID", "PLAYER_ID", "PTS"},
			Rows:    [][]interface{}{{gameID, dal, luka, 120}, {gameID, sas, 3, 100}},
		}),
		Teams: normalize.BoxTeamRows(&store.Table{
			Headers: []string{"GAME_ID", "TEAM_ID", "PTS"},
			Rows:    [][]interface{}{{gameID, dal, 120}, {gameID, sas, 109}},
		}),
	}, nil
}

type stubHistory struct{}

func (stubHistory) History(_ context.Context, gameID string, limit int) ([]*reconciliation.Report, error) {
	return []*reconciliation.Report{{GameID: gameID, Passed: true}}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

type sweeperStub struct{}

func (sweeperStub) RecentGamesForAllTeams(context.Context, int, service.ProgressFunc) (map[int]*store.Dataset, error) {
	return map[int]*store.Dataset{}, nil
}

func (sweeperStub) BoxScores(context.Context, []string, service.ProgressFunc) (map[string]*store.BoxScore, error) {
	return map[string]*store.BoxScore{}, nil
}

func newTestServer(t *testing.T, mutate func(*Options)) (http.Handler, *stubSource) {
	t.Helper()
	dir := t.TempDir()
	source := &stubSource{}
	players := []store.EntityRef{{ID: luka, Kind: store.EntityPlayer, FullName: "Luka Doncic", FirstName: "Luka", LastName: "Doncic"}}
	teams := []store.EntityRef{
		{ID: dal, Kind: store.EntityTeam, FullName: "Dallas Mavericks", Abbreviation: "DAL", Nickname: "Mavericks"},
		{ID: sas, Kind: store.EntityTeam, FullName: "San Antonio Spurs", Abbreviation: "SAS", Nickname: "Spurs"},
	}

	scraper := service.NewScraper(service.Options{
		Resolver:   resolve.New(players, teams, nil),
		Source:     source,
		CSV:        export.NewCSVSink(dir, nil),
		Charts:     chart.NewSVGSink(dir, nil),
		Season:     "2024-25",
		SeasonType: "Regular Season",
	})

	opts := Options{
		Scraper:        scraper,
		SpotChecks:     stubHistory{},
		AllowedOrigins: []string{"http://localhost:3000"},
		Sweeps: backfill.NewService(backfill.Options{
			Runner: backfill.NewRunnerWithSweeper(sweeperStub{}),
			Season: "2024-25",
		}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewServer(opts).Handler(), source
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoutes(t *testing.T) {
	h, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "health", method: "GET", path: "/health", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "healthy", body["status"])
				assert.Equal(t, "2024-25", body["season"])
			},
		},
		{
			name: "resolve player", method: "GET", path: "/api/v1/players/resolve?name=luka", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "prefix", body["strategy"])
				assert.Equal(t, float64(luka), body["entity"].(map[string]interface{})["id"])
			},
		},
		{name: "resolve player not found", method: "GET", path: "/api/v1/players/resolve?name=zzz", status: http.StatusNotFound},
		{name: "resolve player missing name", method: "GET", path: "/api/v1/players/resolve", status: http.StatusBadRequest},
		{
			name: "resolve team", method: "GET", path: "/api/v1/teams/resolve?name=spurs", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "SAS", body["entity"].(map[string]interface{})["abbreviation"])
			},
		},
		{
			name: "player game log", method: "GET", path: "/api/v1/players/1629029/gamelog", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["empty"])
				assert.Len(t, body["dataset"].(map[string]interface{})["rows"], 2)
			},
		},
		{
			name: "empty game log is not an error", method: "GET", path: "/api/v1/players/77/gamelog", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["empty"])
				assert.Equal(t, "Unknown_77", body["entity"].(map[string]interface{})["full_name"])
			},
		},
		{name: "bad season type", method: "GET", path: "/api/v1/players/1629029/gamelog?season_type=winter", status: http.StatusBadRequest},
		{name: "transport failure", method: "GET", path: "/api/v1/teams/99/gamelog", status: http.StatusBadGateway},
		{
			name: "box score", method: "GET", path: "/api/v1/games/0022400061/boxscore", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["empty"])
				assert.Empty(t, body["players_path"], "not saved without save=true")
			},
		},
		{
			name: "spot check reports inconsistency", method: "GET", path: "/api/v1/games/0022400061/spotcheck", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["passed"])
				assert.Contains(t, body["reason"], "players sum to 100")
			},
		},
		{
			name: "spot check metrics", method: "GET", path: "/api/v1/spotchecks/metrics", status: http.StatusOK,
		},
		{name: "compare unknown kind", method: "GET", path: "/api/v1/compare/coaches?a=x&b=y", status: http.StatusNotFound},
		{name: "compare missing names", method: "GET", path: "/api/v1/compare/teams?a=DAL", status: http.StatusBadRequest},
		{name: "compare unknown stat", method: "GET", path: "/api/v1/compare/teams?a=DAL&b=SAS&stat=XYZ", status: http.StatusBadRequest},
		{
			name: "enqueue sweep", method: "POST", path: "/api/v1/sweeps", body: `{"type":"teams","days_back":30}`, status: http.StatusAccepted,
			check: func(t *testing.T, body map[string]interface{}) {
				job := body["job"].(map[string]interface{})
				assert.Equal(t, "teams", job["job_type"])
				assert.Equal(t, "queued", job["status"])
				assert.Equal(t, "2024-25", job["season"])
			},
		},
		{name: "invalid sweep", method: "POST", path: "/api/v1/sweeps", body: `{"type":"games"}`, status: http.StatusBadRequest},
		{name: "malformed sweep body", method: "POST", path: "/api/v1/sweeps", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, decode(t, rec))
			}
		})
	}
}

func TestGameLogSeasonOverride(t *testing.T) {
	h, source := newTestServer(t, nil)

	rec := do(t, h, "GET", "/api/v1/teams/1610612742/gamelog?season=2023-24&season_type=playoffs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2023-24", source.teamSeason)

	body := decode(t, rec)
	assert.Equal(t, "Playoffs", body["season_type"])
}

func TestCompareRendersSVG(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, "GET", "/api/v1/compare/teams?a=Mavericks&b=Spurs&stat=PTS", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
	assert.Contains(t, rec.Body.String(), "Team PTS Comparison: Mavericks vs Spurs")

	rec = do(t, h, "GET", "/api/v1/compare/teams?a=Mavericks&b=Spurs&format=json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasSuffix(decode(t, rec)["path"].(string), ".svg"))
}

func TestSweepStatus(t *testing.T) {
	h, _ := newTestServer(t, nil)

	body := decode(t, do(t, h, "GET", "/api/v1/sweeps/status", ""))
	assert.Equal(t, "idle", body["status"])
	assert.Empty(t, body["history"])

	do(t, h, "POST", "/api/v1/sweeps", `{"game_ids":["0022400061"]}`)
	body = decode(t, do(t, h, "GET", "/api/v1/sweeps/status", ""))
	require.Len(t, body["history"], 1)
}

func TestSpotCheckHistory(t *testing.T) {
	h, _ := newTestServer(t, nil)
	rec := do(t, h, "GET", "/api/v1/games/0022400061/spotchecks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "0022400061", reports[0]["game_id"])

	h, _ = newTestServer(t, func(o *Options) { o.SpotChecks = nil })
	rec = do(t, h, "GET", "/api/v1/games/0022400061/spotchecks", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubArchive struct{}

func (stubArchive) RecentRows(_ context.Context, kind store.DatasetKind, entityID, limit int) ([]*repository.ArchivedRow, error) {
	if entityID != luka {
		return nil, nil
	}
	out := []*repository.ArchivedRow{}
	for i, pts := range []int{30, 20, 10} {
		payload, _ := json.Marshal(store.GameRow{GameID: fmt.Sprint(i), Values: map[string]interface{}{"PTS": pts}})
		out = append(out, &repository.ArchivedRow{Kind: string(kind), EntityID: entityID, Payload: payload})
	}
	return out, nil
}

func TestTrend(t *testing.T) {
	h, _ := newTestServer(t, func(o *Options) { o.Trends = service.NewTrendService(stubArchive{}) })

	rec := do(t, h, "GET", fmt.Sprintf("/api/v1/players/%d/trend?limit=3", luka), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PTS", body["stat"])
	assert.Equal(t, float64(3), body["games"])
	assert.Equal(t, float64(20), body["mean"])

	rec = do(t, h, "GET", fmt.Sprintf("/api/v1/teams/%d/trend", dal), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h, _ = newTestServer(t, nil)
	rec = do(t, h, "GET", fmt.Sprintf("/api/v1/players/%d/trend", luka), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	h, _ := newTestServer(t, func(o *Options) {
		o.Health = map[string]HealthChecker{
			"redis":    stubHealth{},
			"database": stubHealth{err: errors.New("connection refused")},
		}
	})

	rec := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "ok", deps["redis"])
	assert.Equal(t, "connection refused", deps["database"])
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sweeps", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, func(o *Options) {
		o.RateLimit = 0.001
		o.Burst = 2
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/v1/teams", "").Code)
	}
	rec := do(t, h, "GET", "/api/v1/teams", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/health", "").Code, "health is not limited")
}

func TestRecovery(t *testing.T) {
	h := RecoveryMiddleware(logging.Component(nil, "rest"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", store.ErrEmptyResult), http.StatusNotFound},
		{fmt.Errorf("x: %w", chart.ErrUnknownStat), http.StatusBadRequest},
		{fmt.Errorf("x: %w", backfill.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("x: %w", store.ErrTransport), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}
