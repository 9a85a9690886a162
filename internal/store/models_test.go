package store

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableIndex(t *testing.T) {
	table := &Table{Headers: []string{"Player_ID", "PLAYER_ID", "PTS"}}

	assert.Equal(t, 1, table.Index("PLAYER_ID"), "exact match wins")
	assert.Equal(t, 0, table.Index("player_id"))
	assert.Equal(t, 2, table.Index("pts"))
	assert.Equal(t, -1, table.Index("REB"))
	assert.True(t, table.HasExact("PLAYER_ID"))
	assert.False(t, table.HasExact("pts"))

	var nilTable *Table
	assert.Equal(t, -1, nilTable.Index("PTS"))
	assert.True(t, nilTable.Empty())
}

func TestGameRowFloat(t *testing.T) {
	row := GameRow{Values: map[string]interface{}{
		"PTS":     float64(31),
		"MIN":     "34",
		"FG3_PCT": nil,
		"WL":      "W",
	}}

	tests := []struct {
		column string
		want   float64
		ok     bool
	}{
		{"PTS", 31, true},
		{"pts", 31, true},
		{"MIN", 34, true},
		{"FG3_PCT", 0, false},
		{"WL", 0, false},
		{"REB", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, ok := row.Float(tt.column)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordServesDerivedColumns(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"GAME_ID", "PTS", "FG_PCT", "DOUBLE_DOUBLE", "TRIPLE_DOUBLE"},
		Rows: []GameRow{{
			GameID:       "0022400061",
			FGPct:        sql.NullFloat64{},
			DoubleDouble: true,
			Values: map[string]interface{}{
				"GAME_ID": "0022400061",
				"PTS":     float64(28),
				"FG_PCT":  0.5,
			},
		}},
	}

	assert.Equal(t, []string{"0022400061", "28", "", "1", "0"}, ds.Record(0))

	table := ds.Table()
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0][2], "undefined percentage stays null")
	assert.Equal(t, float64(1), table.Rows[0][3])
}

func TestFilter(t *testing.T) {
	ds := &Dataset{
		Kind:    KindTeamLog,
		Columns: []string{"PTS"},
		Rows: []GameRow{
			{Values: map[string]interface{}{"PTS": float64(101)}},
			{Values: map[string]interface{}{"PTS": float64(120)}},
		},
	}

	out := ds.Filter(func(r GameRow) bool {
		pts, _ := r.Float("PTS")
		return pts > 110
	})

	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 2, ds.Len(), "source untouched")
	assert.Equal(t, KindTeamLog, out.Kind)
}

func TestGameRowJSONNullPercentages(t *testing.T) {
	row := GameRow{
		GameID: "0022400061",
		FGPct:  sql.NullFloat64{Float64: 0.5, Valid: true},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 0.5, decoded["fg_pct"])
	assert.Nil(t, decoded["fg3_pct"])
	assert.Equal(t, "0022400061", decoded["game_id"])
}

func TestGameRowJSONRestoresDerived(t *testing.T) {
	row := GameRow{
		GameID:       "0022400061",
		FGPct:        sql.NullFloat64{Float64: 0.5, Valid: true},
		DoubleDouble: true,
		Values:       map[string]interface{}{ColFGM: 5.0, ColFGA: 10.0},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded GameRow
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row.FGPct, decoded.FGPct)
	assert.False(t, decoded.FG3Pct.Valid)
	assert.Equal(t, 0.5, decoded.Value(ColFGPct))
	assert.Nil(t, decoded.Value(ColFG3Pct))
	assert.Equal(t, 1.0, decoded.Value(ColDoubleDouble))
	assert.Equal(t, 10.0, decoded.Value(ColFGA))
}

func TestEmptyBoxScore(t *testing.T) {
	bs := NewEmptyBoxScore("0022400061")
	assert.True(t, bs.Empty())
	assert.NotNil(t, bs.Players)
	assert.NotNil(t, bs.Teams)

	var nilBox *BoxScore
	assert.True(t, nilBox.Empty())
}

func TestMigrationsOrdered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.Equal(t, "migrations/001_create_datasets.sql", names[0])
	assert.Equal(t, "migrations/003_create_sweep_jobs.sql", names[2])
}
