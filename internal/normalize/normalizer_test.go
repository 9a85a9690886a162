package normalize

import (
	"testing"
	"time"

	"github.com/fortuna/courtside/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playerTable(rows ...[]interface{}) *store.Table {
	return &store.Table{
		Name:    "PlayerGameLog",
		Headers: []string{"Player_ID", "Game_ID", "GAME_DATE", "MATCHUP", "FGM", "FGA", "FG3M", "FG3A", "REB", "AST", "STL", "BLK", "PTS"},
		Rows:    rows,
	}
}

func statRow(gameID string, fgm, fga, fg3m, fg3a, reb, ast, stl, blk, pts float64) []interface{} {
	return []interface{}{float64(1629029), gameID, "OCT 22, 2024", "DAL vs. SAS", fgm, fga, fg3m, fg3a, reb, ast, stl, blk, pts}
}

func TestMilestoneFlags(t *testing.T) {
	tests := []struct {
		name         string
		reb, ast     float64
		stl, blk     float64
		pts          float64
		doubleDouble bool
		tripleDouble bool
	}{
		{"points and rebounds", 10, 3, 0, 0, 10, true, false},
		{"three categories", 10, 10, 0, 0, 10, true, true},
		{"single category", 2, 4, 1, 0, 40, false, false},
		{"nine is not enough", 9, 9, 0, 0, 9, false, false},
		{"steals and blocks", 4, 2, 10, 10, 6, true, false},
		{"all five", 10, 10, 10, 10, 10, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := PlayerRows(playerTable(statRow("0022400061", 5, 10, 1, 3, tt.reb, tt.ast, tt.stl, tt.blk, tt.pts)), 1629029)
			require.Equal(t, 1, ds.Len())

			row := ds.Rows[0]
			assert.Equal(t, tt.doubleDouble, row.DoubleDouble)
			assert.Equal(t, tt.tripleDouble, row.TripleDouble)
			if row.TripleDouble {
				assert.True(t, row.DoubleDouble, "triple-double implies double-double")
			}
		})
	}
}

func TestPercentagesDerivedWhenAbsent(t *testing.T) {
	ds := PlayerRows(playerTable(
		statRow("0022400061", 5, 10, 1, 4, 5, 5, 0, 0, 12),
		statRow("0022400075", 5, 0, 0, 0, 5, 5, 0, 0, 10),
	), 1629029)

	require.Equal(t, 2, ds.Len())
	assert.True(t, ds.HasColumn(store.ColFGPct))
	assert.True(t, ds.HasColumn(store.ColFG3Pct))

	first := ds.Rows[0]
	require.True(t, first.FGPct.Valid)
	assert.InDelta(t, 0.5, first.FGPct.Float64, 1e-9)
	require.True(t, first.FG3Pct.Valid)
	assert.InDelta(t, 0.25, first.FG3Pct.Float64, 1e-9)

	second := ds.Rows[1]
	assert.False(t, second.FGPct.Valid, "zero attempts is undefined, not 0%")
	assert.False(t, second.FG3Pct.Valid)
	assert.Nil(t, second.Value(store.ColFGPct))
}

func TestSourcePercentageKept(t *testing.T) {
	table := &store.Table{
		Headers: []string{"Game_ID", "FGM", "FGA", "FG_PCT", "PTS"},
		Rows: [][]interface{}{
			{"0022400061", float64(5), float64(10), 0.512, float64(12)},
			{"0022400075", float64(0), float64(0), nil, float64(0)},
		},
	}

	ds := PlayerRows(table, 1629029)

	assert.InDelta(t, 0.512, ds.Rows[0].FGPct.Float64, 1e-9, "source value wins over makes/attempts")
	assert.False(t, ds.Rows[1].FGPct.Valid)
	assert.False(t, ds.HasColumn(store.ColFG3Pct), "three-point columns absent, nothing derived")
}

func TestColumnOrderAndTagging(t *testing.T) {
	ds := PlayerRows(playerTable(statRow("0022400061", 5, 10, 1, 4, 5, 5, 0, 0, 12)), 1629029)

	want := []string{
		"Player_ID", "Game_ID", "GAME_DATE", "MATCHUP", "FGM", "FGA", "FG3M", "FG3A", "REB", "AST", "STL", "BLK", "PTS",
		"PLAYER_ID", "DOUBLE_DOUBLE", "TRIPLE_DOUBLE", "FG_PCT", "FG3_PCT",
	}
	assert.Equal(t, want, ds.Columns)
	assert.Equal(t, store.KindPlayerLog, ds.Kind)

	row := ds.Rows[0]
	assert.Equal(t, 1629029, row.EntityID)
	assert.Equal(t, "0022400061", row.GameID)
	assert.Equal(t, "DAL vs. SAS", row.Matchup)
	assert.True(t, time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC).Equal(row.GameDate))
	assert.Equal(t, float64(1629029), row.Value(store.ColPlayerID))
}

func TestRawValuesPassThrough(t *testing.T) {
	table := playerTable(statRow("0022400061", 5, 10, 1, 4, 5, 5, 0, 0, 12))
	ds := PlayerRows(table, 1629029)

	record := ds.Record(0)
	assert.Equal(t, "1629029", record[0])
	assert.Equal(t, "0022400061", record[1])
	assert.Equal(t, "OCT 22, 2024", record[2], "dates are not reformatted")
	assert.Equal(t, "12", record[12])
}

func TestIdempotent(t *testing.T) {
	first := PlayerRows(playerTable(
		statRow("0022400061", 11, 20, 3, 7, 12, 10, 1, 0, 31),
		statRow("0022400075", 0, 0, 0, 0, 10, 3, 0, 0, 10),
		statRow("0022400090", 4, 15, 2, 8, 6, 8, 2, 1, 14),
	), 1629029)

	second := PlayerRows(first.Table(), 1629029)

	assert.Equal(t, first.Columns, second.Columns)
	require.Equal(t, first.Len(), second.Len())
	for i := range first.Rows {
		assert.Equal(t, first.Record(i), second.Record(i), "row %d", i)
		assert.Equal(t, first.Rows[i].DoubleDouble, second.Rows[i].DoubleDouble)
		assert.Equal(t, first.Rows[i].TripleDouble, second.Rows[i].TripleDouble)
		assert.Equal(t, first.Rows[i].FGPct, second.Rows[i].FGPct)
	}
}

func TestStaleFlagsRecomputed(t *testing.T) {
	table := &store.Table{
		Headers: []string{"Game_ID", "REB", "AST", "STL", "BLK", "PTS", "DOUBLE_DOUBLE", "TRIPLE_DOUBLE"},
		Rows: [][]interface{}{
			{"0022400061", float64(10), float64(10), float64(10), float64(0), float64(10), float64(0), float64(0)},
		},
	}

	ds := PlayerRows(table, 1)
	assert.True(t, ds.Rows[0].DoubleDouble)
	assert.True(t, ds.Rows[0].TripleDouble)
	assert.Len(t, ds.Columns, 9, "flag columns are not duplicated")
}

func TestTeamRows(t *testing.T) {
	table := &store.Table{
		Name:    "TeamGameLog",
		Headers: []string{"Team_ID", "Game_ID", "GAME_DATE", "MATCHUP", "FGM", "FGA", "FG_PCT", "FG3M", "FG3A", "PTS"},
		Rows: [][]interface{}{
			{float64(1610612742), "0022400061", "OCT 24, 2024", "DAL vs. SAS", float64(44), float64(88), 0.5, float64(12), float64(30), float64(120)},
		},
	}

	ds := TeamRows(table, 1610612742)

	assert.Equal(t, store.KindTeamLog, ds.Kind)
	assert.Equal(t, "TEAM_ID", ds.Columns[len(ds.Columns)-1])
	assert.False(t, ds.HasColumn(store.ColDoubleDouble))
	assert.False(t, ds.HasColumn(store.ColFG3Pct), "team percentages are never derived")
	assert.False(t, ds.Rows[0].FG3Pct.Valid)
	assert.InDelta(t, 0.5, ds.Rows[0].FGPct.Float64, 1e-9)
	assert.Equal(t, 1610612742, ds.Rows[0].EntityID)
}

func TestEmptyTables(t *testing.T) {
	assert.True(t, PlayerRows(nil, 1).Empty())
	assert.True(t, TeamRows(&store.Table{Headers: []string{"PTS"}}, 2).Empty())
	assert.True(t, BoxPlayerRows(nil).Empty())
	assert.True(t, BoxTeamRows(nil).Empty())
}

func TestBoxRowsTyped(t *testing.T) {
	players := BoxPlayerRows(&store.Table{
		Headers: []string{"GAME_ID", "TEAM_ID", "PLAYER_ID", "PLAYER_NAME", "PTS"},
		Rows: [][]interface{}{
			{"0022400061", float64(1610612742), float64(1629029), "Luka Doncic", float64(28)},
			{"0022400061", float64(1610612742), float64(1628467), "Maxi Kleber", nil},
		},
	})

	require.Equal(t, 2, players.Len())
	assert.Equal(t, []string{"GAME_ID", "TEAM_ID", "PLAYER_ID", "PLAYER_NAME", "PTS"}, players.Columns)
	assert.Equal(t, 1629029, players.Rows[0].EntityID)
	assert.Equal(t, 1610612742, players.Rows[0].TeamID)
	_, ok := players.Rows[1].Float("PTS")
	assert.False(t, ok, "DNP rows keep null points")
}

func TestParseGameDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"OCT 22, 2024", time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC), true},
		{"Jan 05, 2025", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-05", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-01-05T00:00:00", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseGameDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got))
		})
	}
}
