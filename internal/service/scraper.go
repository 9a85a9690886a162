package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/courtside/internal/chart"
	"github.com/fortuna/courtside/internal/export"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/publisher"
	"github.com/fortuna/courtside/internal/reconciliation"
	"github.com/fortuna/courtside/internal/resolve"
	"github.com/fortuna/courtside/internal/store"
	"github.com/sirupsen/logrus"
)

// StatsSource fetches normalized data. statsnba.Fetcher implements it.
type StatsSource interface {
	FetchPlayerLog(ctx context.Context, playerID int, season, seasonType string) (*store.Dataset, error)
	FetchTeamLog(ctx context.Context, teamID int, season, seasonType string) (*store.Dataset, error)
	FetchBoxScore(ctx context.Context, gameID string) (*store.BoxScore, error)
}

// GameLogArchive stores datasets in the database.
type GameLogArchive interface {
	SaveDataset(ctx context.Context, ds *store.Dataset, season, seasonType string) (int, error)
}

// SpotCheckArchive stores consistency reports.
type SpotCheckArchive interface {
	Save(ctx context.Context, report *reconciliation.Report) (int64, error)
}

// EventPublisher announces saved datasets and spot checks.
type EventPublisher interface {
	PublishDatasetSaved(ctx context.Context, event publisher.DatasetSaved) error
	PublishSpotCheck(ctx context.Context, report interface{}) error
}

// Options configures a Scraper. Resolver, Source, CSV and Charts are
// required; the archives and the publisher are optional.
type Options struct {
	Resolver   *resolve.Resolver
	Source     StatsSource
	Checker    *reconciliation.Checker
	CSV        *export.CSVSink
	Charts     *chart.SVGSink
	GameLogs   GameLogArchive
	SpotChecks SpotCheckArchive
	Events     EventPublisher
	Season     string
	SeasonType string
	Now        func() time.Time
	Logger     *logrus.Entry
}

// Scraper ties name resolution, fetching, checking and persistence together.
type Scraper struct {
	resolver   *resolve.Resolver
	source     StatsSource
	checker    *reconciliation.Checker
	csv        *export.CSVSink
	charts     *chart.SVGSink
	gameLogs   GameLogArchive
	spotChecks SpotCheckArchive
	events     EventPublisher
	season     string
	seasonType string
	now        func() time.Time
	log        *logrus.Entry
}

// NewScraper creates a scraper.
func NewScraper(opts Options) *Scraper {
	if opts.Logger == nil {
		opts.Logger = logging.Component(nil, "scraper")
	}
	if opts.Checker == nil {
		opts.Checker = reconciliation.NewChecker(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scraper{
		resolver:   opts.Resolver,
		source:     opts.Source,
		checker:    opts.Checker,
		csv:        opts.CSV,
		charts:     opts.Charts,
		gameLogs:   opts.GameLogs,
		spotChecks: opts.SpotChecks,
		events:     opts.Events,
		season:     opts.Season,
		seasonType: opts.SeasonType,
		now:        opts.Now,
		log:        opts.Logger,
	}
}

// Resolver returns the entity resolver.
func (s *Scraper) Resolver() *resolve.Resolver {
	return s.resolver
}

// Checker returns the consistency checker.
func (s *Scraper) Checker() *reconciliation.Checker {
	return s.checker
}

// Season returns the default season and season type.
func (s *Scraper) Season() (season, seasonType string) {
	return s.season, s.seasonType
}

// WithSeason returns a scraper that shares every component but defaults to
// another season. Empty arguments keep the current values.
func (s *Scraper) WithSeason(season, seasonType string) *Scraper {
	cpy := *s
	cpy.season = s.orSeason(season)
	cpy.seasonType = s.orSeasonType(seasonType)
	return &cpy
}

// GameLogResult is a fetched game log and where it was saved.
type GameLogResult struct {
	Entity  store.EntityRef `json:"entity"`
	Match   *resolve.Match  `json:"match,omitempty"`
	Season  string          `json:"season"`
	Type    string          `json:"season_type"`
	Dataset *store.Dataset  `json:"dataset"`
	Path    string          `json:"path,omitempty"`
	Empty   bool            `json:"empty"`
}

// PlayerGameLog resolves name and fetches the player's log for the default
// season, saving it when save is set. The result is never nil; on error it
// carries an empty dataset.
func (s *Scraper) PlayerGameLog(ctx context.Context, name string, save bool) (*GameLogResult, error) {
	m, err := s.resolver.ResolvePlayer(name)
	if err != nil {
		return emptyLog(store.KindPlayerLog, s.season, s.seasonType), err
	}
	res, err := s.playerLog(ctx, m.Ref, s.season, s.seasonType, save)
	res.Match = &m
	return res, err
}

// PlayerGameLogByID is PlayerGameLog for a known player ID and explicit season.
func (s *Scraper) PlayerGameLogByID(ctx context.Context, playerID int, season, seasonType string, save bool) (*GameLogResult, error) {
	ref, ok := s.resolver.PlayerByID(playerID)
	if !ok {
		ref = store.EntityRef{ID: playerID, Kind: store.EntityPlayer, FullName: export.UnknownName(playerID)}
	}
	return s.playerLog(ctx, ref, s.orSeason(season), s.orSeasonType(seasonType), save)
}

func (s *Scraper) playerLog(ctx context.Context, ref store.EntityRef, season, seasonType string, save bool) (*GameLogResult, error) {
	ds, err := s.source.FetchPlayerLog(ctx, ref.ID, season, seasonType)
	res := s.logResult(ref, ds, season, seasonType)
	if err != nil {
		return res, err
	}
	if save {
		res.Path, err = s.saveLog(ctx, ds, export.PlayerLogPath(ref.FullName), season, seasonType)
	}
	return res, err
}

// TeamGameLog resolves name and fetches the team's log for the default season.
func (s *Scraper) TeamGameLog(ctx context.Context, name string, save bool) (*GameLogResult, error) {
	m, err := s.resolver.ResolveTeam(name)
	if err != nil {
		return emptyLog(store.KindTeamLog, s.season, s.seasonType), err
	}
	res, err := s.teamLog(ctx, m.Ref, s.season, s.seasonType, save)
	res.Match = &m
	return res, err
}

// TeamGameLogByID is TeamGameLog for a known team ID and explicit season.
func (s *Scraper) TeamGameLogByID(ctx context.Context, teamID int, season, seasonType string, save bool) (*GameLogResult, error) {
	ref, ok := s.resolver.TeamByID(teamID)
	if !ok {
		unknown := export.UnknownName(teamID)
		ref = store.EntityRef{ID: teamID, Kind: store.EntityTeam, FullName: unknown, Abbreviation: unknown}
	}
	return s.teamLog(ctx, ref, s.orSeason(season), s.orSeasonType(seasonType), save)
}

func (s *Scraper) teamLog(ctx context.Context, ref store.EntityRef, season, seasonType string, save bool) (*GameLogResult, error) {
	ds, err := s.source.FetchTeamLog(ctx, ref.ID, season, seasonType)
	res := s.logResult(ref, ds, season, seasonType)
	if err != nil {
		return res, err
	}
	if save {
		res.Path, err = s.saveLog(ctx, ds, export.TeamLogPath(ref.Abbreviation), season, seasonType)
	}
	return res, err
}

func (s *Scraper) logResult(ref store.EntityRef, ds *store.Dataset, season, seasonType string) *GameLogResult {
	kind := store.KindPlayerLog
	if ref.Kind == store.EntityTeam {
		kind = store.KindTeamLog
	}
	if ds == nil {
		ds = store.NewEmptyDataset(kind, ref.ID)
	}
	ds.Name = ref.FullName
	return &GameLogResult{
		Entity:  ref,
		Season:  season,
		Type:    seasonType,
		Dataset: ds,
		Empty:   ds.Empty(),
	}
}

func emptyLog(kind store.DatasetKind, season, seasonType string) *GameLogResult {
	return &GameLogResult{
		Season:  season,
		Type:    seasonType,
		Dataset: store.NewEmptyDataset(kind, 0),
		Empty:   true,
	}
}

// saveLog writes the CSV file, then archives and announces it. Only the CSV
// write can fail the call.
func (s *Scraper) saveLog(ctx context.Context, ds *store.Dataset, rel, season, seasonType string) (string, error) {
	path, err := s.csv.WriteDataset(ds, rel)
	if err != nil {
		return "", err
	}

	s.archive(ctx, ds, season, seasonType)
	s.announce(ctx, publisher.DatasetSaved{
		Kind:     string(ds.Kind),
		EntityID: ds.EntityID,
		Name:     ds.Name,
		Rows:     ds.Len(),
		Path:     path,
	})
	return path, nil
}

func (s *Scraper) archive(ctx context.Context, ds *store.Dataset, season, seasonType string) {
	if s.gameLogs == nil {
		return
	}
	if _, err := s.gameLogs.SaveDataset(ctx, ds, season, seasonType); err != nil {
		s.log.WithError(err).WithField("kind", ds.Kind).Error("failed to archive dataset")
	}
}

func (s *Scraper) announce(ctx context.Context, event publisher.DatasetSaved) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDatasetSaved(ctx, event); err != nil {
		s.log.WithError(err).Warn("failed to publish dataset event")
	}
}

// BoxScoreResult is a fetched box score and where it was saved.
type BoxScoreResult struct {
	BoxScore    *store.BoxScore `json:"box_score"`
	PlayersPath string          `json:"players_path,omitempty"`
	TeamsPath   string          `json:"teams_path,omitempty"`
	Empty       bool            `json:"empty"`
}

// BoxScore fetches a game's box score, saving both splits when save is set.
func (s *Scraper) BoxScore(ctx context.Context, gameID string, save bool) (*BoxScoreResult, error) {
	bs, err := s.source.FetchBoxScore(ctx, gameID)
	if bs == nil {
		bs = store.NewEmptyBoxScore(gameID)
	}
	res := &BoxScoreResult{BoxScore: bs, Empty: bs.Empty()}
	if err != nil || !save {
		return res, err
	}

	res.PlayersPath, res.TeamsPath, err = s.csv.SaveBoxScore(bs)
	if err != nil {
		return res, err
	}
	for _, ds := range []*store.Dataset{bs.Players, bs.Teams} {
		ds.Name = gameID
		s.archive(ctx, ds, s.season, s.seasonType)
	}
	s.announce(ctx, publisher.DatasetSaved{
		Kind:   string(store.KindBoxPlayers),
		GameID: gameID,
		Name:   gameID,
		Rows:   bs.Players.Len(),
		Path:   res.PlayersPath,
	})
	return res, nil
}

// SpotCheck fetches a box score without saving it and checks that player
// points add up to team points. A fetch failure yields a failed report
// together with the fetch error.
func (s *Scraper) SpotCheck(ctx context.Context, gameID string) (*reconciliation.Report, error) {
	bs, fetchErr := s.source.FetchBoxScore(ctx, gameID)
	if bs == nil {
		bs = store.NewEmptyBoxScore(gameID)
	}

	report := s.checker.Check(bs)
	if report.GameID == "" {
		report.GameID = gameID
	}

	if s.spotChecks != nil && fetchErr == nil {
		if _, err := s.spotChecks.Save(ctx, report); err != nil {
			s.log.WithError(err).WithField("game_id", gameID).Error("failed to archive spot check")
		}
	}
	if s.events != nil && fetchErr == nil {
		if err := s.events.PublishSpotCheck(ctx, report); err != nil {
			s.log.WithError(err).Warn("failed to publish spot check")
		}
	}
	return report, fetchErr
}

// CompareResult is a saved comparison chart.
type CompareResult struct {
	Path       string           `json:"path"`
	Comparison chart.Comparison `json:"-"`
	A          *GameLogResult   `json:"a"`
	B          *GameLogResult   `json:"b"`
}

// ComparePlayers fetches and saves both players' logs and charts stat.
func (s *Scraper) ComparePlayers(ctx context.Context, a, b, stat string) (*CompareResult, error) {
	return s.compare(ctx, a, b, stat, "%s Comparison: %s vs %s", s.PlayerGameLog)
}

// CompareTeams fetches and saves both teams' logs and charts stat.
func (s *Scraper) CompareTeams(ctx context.Context, a, b, stat string) (*CompareResult, error) {
	return s.compare(ctx, a, b, stat, "Team %s Comparison: %s vs %s", s.TeamGameLog)
}

type logFunc func(ctx context.Context, name string, save bool) (*GameLogResult, error)

func (s *Scraper) compare(ctx context.Context, a, b, stat, titleFormat string, fetch logFunc) (*CompareResult, error) {
	a, b, stat = strings.TrimSpace(a), strings.TrimSpace(b), strings.TrimSpace(stat)
	log := s.log.WithFields(logrus.Fields{"a": a, "b": b, "stat": stat})

	resA, err := fetch(ctx, a, true)
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", a, err)
	}
	resB, err := fetch(ctx, b, true)
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", b, err)
	}

	title := fmt.Sprintf(titleFormat, stat, a, b)
	c, err := chart.Compare(title, stat, a, resA.Dataset, b, resB.Dataset)
	if err != nil {
		log.WithError(err).Warn("cannot compare")
		return nil, err
	}

	path, err := s.charts.Save(c)
	if err != nil {
		return nil, err
	}
	return &CompareResult{Path: path, Comparison: c, A: resA, B: resB}, nil
}

// Progress reports one finished item of a multi-item operation.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Item    string `json:"item"`
	Rows    int    `json:"rows"`
	Err     error  `json:"-"`
}

// ProgressFunc receives progress; it may be nil.
type ProgressFunc func(Progress)

// RecentGamesForAllTeams fetches and saves every team's log for the default
// season. The returned map, keyed by team ID, holds only games from the last
// daysBack days when daysBack is positive. A failing team is logged and
// skipped; only cancellation aborts the sweep.
func (s *Scraper) RecentGamesForAllTeams(ctx context.Context, daysBack int, progress ProgressFunc) (map[int]*store.Dataset, error) {
	teams := s.resolver.Teams()
	out := make(map[int]*store.Dataset, len(teams))

	var cutoff time.Time
	if daysBack > 0 {
		now := s.now().UTC()
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		cutoff = start.AddDate(0, 0, -daysBack)
	}

	for i, team := range teams {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		log := s.log.WithFields(logrus.Fields{"team": team.Abbreviation, "team_id": team.ID})
		res, err := s.teamLog(ctx, team, s.season, s.seasonType, true)

		p := Progress{Current: i + 1, Total: len(teams), Item: team.Abbreviation, Err: err}
		switch {
		case err == nil:
			ds := res.Dataset
			if !cutoff.IsZero() {
				ds = ds.Filter(func(r store.GameRow) bool {
					return !r.GameDate.IsZero() && !r.GameDate.Before(cutoff)
				})
			}
			out[team.ID] = ds
			p.Rows = ds.Len()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return out, err
		default:
			log.WithError(err).Warn("skipping team")
		}

		if progress != nil {
			progress(p)
		}
	}

	s.log.WithFields(logrus.Fields{"teams": len(out), "days_back": daysBack}).Info("team sweep complete")
	return out, nil
}

// BoxScores fetches and saves each game's box score in order. A failing game
// is logged and skipped.
func (s *Scraper) BoxScores(ctx context.Context, gameIDs []string, progress ProgressFunc) (map[string]*store.BoxScore, error) {
	out := make(map[string]*store.BoxScore, len(gameIDs))
	for i, id := range gameIDs {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := s.BoxScore(ctx, id, true)
		p := Progress{Current: i + 1, Total: len(gameIDs), Item: id, Err: err}
		switch {
		case err == nil:
			out[id] = res.BoxScore
			p.Rows = res.BoxScore.Players.Len()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return out, err
		default:
			s.log.WithError(err).WithField("game_id", id).Warn("skipping game")
		}

		if progress != nil {
			progress(p)
		}
	}
	return out, nil
}

func (s *Scraper) orSeason(season string) string {
	if season == "" {
		return s.season
	}
	return season
}

func (s *Scraper) orSeasonType(seasonType string) string {
	if seasonType == "" {
		return s.seasonType
	}
	return seasonType
}
