package statsnba

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fortuna/courtside/internal/normalize"
	"github.com/fortuna/courtside/internal/store"
	"github.com/sirupsen/logrus"
)

// Endpoints and their result set names.
const (
	EndpointPlayerGameLog = "playergamelog"
	EndpointTeamGameLog   = "teamgamelog"
	EndpointBoxScore      = "boxscoretraditionalv2"
	EndpointAllPlayers    = "commonallplayers"

	setPlayerGameLog = "PlayerGameLog"
	setTeamGameLog   = "TeamGameLog"
	setPlayerStats   = "PlayerStats"
	setTeamStats     = "TeamStats"
	setAllPlayers    = "CommonAllPlayers"

	leagueNBA = "00"
)

// Fetcher turns stats API responses into normalized datasets. Every method
// returns a usable, possibly empty, value together with an error that wraps
// store.ErrEmptyResult or store.ErrTransport.
type Fetcher struct {
	client *Client
	log    *logrus.Entry
}

// NewFetcher creates a fetcher over client.
func NewFetcher(client *Client, log *logrus.Entry) *Fetcher {
	if log == nil {
		log = client.log
	}
	return &Fetcher{client: client, log: log}
}

// Client returns the underlying API client.
func (f *Fetcher) Client() *Client {
	return f.client
}

// FetchPlayerLog returns a player's game log for a season.
func (f *Fetcher) FetchPlayerLog(ctx context.Context, playerID int, season, seasonType string) (ds *store.Dataset, err error) {
	ds = store.NewEmptyDataset(store.KindPlayerLog, playerID)
	log := f.log.WithFields(logrus.Fields{"player_id": playerID, "season": season, "season_type": seasonType})
	defer recoverFetch(log, &err, func() { ds = store.NewEmptyDataset(store.KindPlayerLog, playerID) })

	log.Info("fetching player game log")

	params := url.Values{}
	params.Set("PlayerID", strconv.Itoa(playerID))
	params.Set("Season", season)
	params.Set("SeasonType", seasonType)
	params.Set("LeagueID", leagueNBA)
	params.Set("DateFrom", "")
	params.Set("DateTo", "")

	resp, err := f.client.Get(ctx, EndpointPlayerGameLog, params)
	if err != nil {
		log.WithError(err).Error("error fetching player game log")
		return ds, err
	}

	table := resp.TableOrFirst(setPlayerGameLog)
	if table.Empty() {
		log.Warn("no game data found for player")
		return ds, fmt.Errorf("player %d %s %s: %w", playerID, season, seasonType, store.ErrEmptyResult)
	}

	ds = normalize.PlayerRows(table, playerID)
	log.WithField("games", ds.Len()).Info("fetched player game log")
	return ds, nil
}

// FetchTeamLog returns a team's game log for a season.
func (f *Fetcher) FetchTeamLog(ctx context.Context, teamID int, season, seasonType string) (ds *store.Dataset, err error) {
	ds = store.NewEmptyDataset(store.KindTeamLog, teamID)
	log := f.log.WithFields(logrus.Fields{"team_id": teamID, "season": season, "season_type": seasonType})
	defer recoverFetch(log, &err, func() { ds = store.NewEmptyDataset(store.KindTeamLog, teamID) })

	log.Info("fetching team game log")

	params := url.Values{}
	params.Set("TeamID", strconv.Itoa(teamID))
	params.Set("Season", season)
	params.Set("SeasonType", seasonType)
	params.Set("LeagueID", leagueNBA)
	params.Set("DateFrom", "")
	params.Set("DateTo", "")

	resp, err := f.client.Get(ctx, EndpointTeamGameLog, params)
	if err != nil {
		log.WithError(err).Error("error fetching team game log")
		return ds, err
	}

	table := resp.TableOrFirst(setTeamGameLog)
	if table.Empty() {
		log.Warn("no game data found for team")
		return ds, fmt.Errorf("team %d %s %s: %w", teamID, season, seasonType, store.ErrEmptyResult)
	}

	ds = normalize.TeamRows(table, teamID)
	log.WithField("games", ds.Len()).Info("fetched team game log")
	return ds, nil
}

// FetchBoxScore returns the player and team splits of one game. Either both
// are populated or both are empty.
func (f *Fetcher) FetchBoxScore(ctx context.Context, gameID string) (bs *store.BoxScore, err error) {
	bs = store.NewEmptyBoxScore(gameID)
	log := f.log.WithField("game_id", gameID)
	defer recoverFetch(log, &err, func() { bs = store.NewEmptyBoxScore(gameID) })

	log.Info("fetching box score")

	params := url.Values{}
	params.Set("GameID", gameID)
	params.Set("StartPeriod", "0")
	params.Set("EndPeriod", "10")
	params.Set("StartRange", "0")
	params.Set("EndRange", "28800")
	params.Set("RangeType", "0")

	resp, err := f.client.Get(ctx, EndpointBoxScore, params)
	if err != nil {
		log.WithError(err).Error("error fetching box score")
		return bs, err
	}

	players := resp.Table(setPlayerStats)
	teams := resp.Table(setTeamStats)
	if players.Empty() || teams.Empty() {
		log.Warn("no box score data found for game")
		return bs, fmt.Errorf("box score %s: %w", gameID, store.ErrEmptyResult)
	}

	bs = &store.BoxScore{
		GameID:  gameID,
		Players: normalize.BoxPlayerRows(players),
		Teams:   normalize.BoxTeamRows(teams),
	}
	log.WithFields(logrus.Fields{
		"players": bs.Players.Len(),
		"teams":   bs.Teams.Len(),
	}).Info("fetched box score")
	return bs, nil
}

// FetchPlayerIndex returns every player the league lists, active or not.
func (f *Fetcher) FetchPlayerIndex(ctx context.Context, season string) (players []store.EntityRef, err error) {
	defer recoverFetch(f.log, &err, func() { players = nil })

	params := url.Values{}
	params.Set("LeagueID", leagueNBA)
	params.Set("Season", season)
	params.Set("IsOnlyCurrentSeason", "0")

	resp, err := f.client.Get(ctx, EndpointAllPlayers, params)
	if err != nil {
		return nil, err
	}

	table := resp.TableOrFirst(setAllPlayers)
	if table.Empty() {
		return nil, fmt.Errorf("player index %s: %w", season, store.ErrEmptyResult)
	}

	players = PlayersFromTable(table)
	f.log.WithField("players", len(players)).Info("loaded player index")
	return players, nil
}

// PlayersFromTable converts a commonallplayers result set to entity references.
func PlayersFromTable(table *store.Table) []store.EntityRef {
	idCol := table.Index("PERSON_ID")
	lastFirstCol := table.Index("DISPLAY_LAST_COMMA_FIRST")
	firstLastCol := table.Index("DISPLAY_FIRST_LAST")
	statusCol := table.Index("ROSTERSTATUS")
	if idCol < 0 || (lastFirstCol < 0 && firstLastCol < 0) {
		return nil
	}

	cell := func(row []interface{}, i int) interface{} {
		if i < 0 || i >= len(row) {
			return nil
		}
		return row[i]
	}

	out := make([]store.EntityRef, 0, len(table.Rows))
	for _, row := range table.Rows {
		id, ok := store.ToFloat(cell(row, idCol))
		if !ok {
			continue
		}

		lastFirst, _ := cell(row, lastFirstCol).(string)
		firstLast, _ := cell(row, firstLastCol).(string)
		first, last := splitLastCommaFirst(lastFirst)
		if firstLast == "" {
			firstLast = strings.TrimSpace(first + " " + last)
		}
		if first == "" && last == "" {
			first, last = splitFirstLast(firstLast)
		}

		active := false
		if status, ok := store.ToFloat(cell(row, statusCol)); ok {
			active = status == 1
		}

		out = append(out, store.EntityRef{
			ID:        int(id),
			Kind:      store.EntityPlayer,
			FullName:  firstLast,
			FirstName: first,
			LastName:  last,
			IsActive:  active,
		})
	}
	return out
}

func splitLastCommaFirst(s string) (first, last string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.Index(s, ","); i >= 0 {
		return strings.TrimSpace(s[i+1:]), strings.TrimSpace(s[:i])
	}
	return "", s
}

func splitFirstLast(s string) (first, last string) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// recoverFetch converts a panic inside a fetch into a transport error and
// resets the result through reset.
func recoverFetch(log *logrus.Entry, errp *error, reset func()) {
	if r := recover(); r != nil {
		reset()
		*errp = fmt.Errorf("%w: recovered from panic: %v", store.ErrTransport, r)
		log.WithField("panic", r).Error("fetch aborted")
	}
}
