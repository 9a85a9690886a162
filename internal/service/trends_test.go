package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fortuna/courtside/internal/normalize"
	"github.com/fortuna/courtside/internal/store"
	"github.com/fortuna/courtside/internal/store/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRows struct {
	rows  []*repository.ArchivedRow
	err   error
	limit int
}

func (f *fakeRows) RecentRows(_ context.Context, _ store.DatasetKind, _ int, limit int) ([]*repository.ArchivedRow, error) {
	f.limit = limit
	return f.rows, f.err
}

func archived(t *testing.T, row store.GameRow) *repository.ArchivedRow {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	return &repository.ArchivedRow{
		GameID:       row.GameID,
		DoubleDouble: row.DoubleDouble,
		TripleDouble: row.TripleDouble,
		Payload:      payload,
	}
}

func TestTrend(t *testing.T) {
	rows := &fakeRows{rows: []*repository.ArchivedRow{
		archived(t, store.GameRow{GameID: "3", DoubleDouble: true, Values: map[string]interface{}{"PTS": 30, "REB": 10}}),
		archived(t, store.GameRow{GameID: "2", Values: map[string]interface{}{"PTS": 20}}),
		archived(t, store.GameRow{GameID: "1", Values: map[string]interface{}{"PTS": nil}}),
		archived(t, store.GameRow{GameID: "0", DoubleDouble: true, TripleDouble: true, Values: map[string]interface{}{"PTS": "10"}}),
	}}

	trend, err := NewTrendService(rows).Trend(context.Background(), store.KindPlayerLog, luka, "pts", 5)
	require.NoError(t, err)

	assert.Equal(t, 5, rows.limit)
	assert.Equal(t, "PTS", trend.Stat)
	assert.Equal(t, 3, trend.Games, "null values are skipped")
	assert.Equal(t, []float64{30, 20, 10}, trend.Values)
	assert.InDelta(t, 20, trend.Mean, 1e-9)
	assert.InDelta(t, 8.1650, trend.StdDev, 1e-4)
	assert.Equal(t, 10.0, trend.Min)
	assert.Equal(t, 30.0, trend.Max)
	assert.Equal(t, 2, trend.DoubleDoubles)
	assert.Equal(t, 1, trend.TripleDoubles)
}

func TestTrendErrors(t *testing.T) {
	_, err := NewTrendService(&fakeRows{}).Trend(context.Background(), store.KindTeamLog, dal, "PTS", 10)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = NewTrendService(&fakeRows{err: errors.New("db down")}).Trend(context.Background(), store.KindTeamLog, dal, "PTS", 10)
	assert.EqualError(t, err, "fetching archived rows: db down")

	trend, err := NewTrendService(&fakeRows{rows: []*repository.ArchivedRow{
		archived(t, store.GameRow{GameID: "1", Values: map[string]interface{}{"PTS": 99}}),
	}}).Trend(context.Background(), store.KindTeamLog, dal, "BLK", 10)
	require.NoError(t, err)
	assert.Zero(t, trend.Games)
	assert.Empty(t, trend.Values)
}

func TestTrendDerivedColumns(t *testing.T) {
	table := &store.Table{
		Name:    "PlayerGameLog",
		Headers: []string{"GAME_ID", "GAME_DATE", "PTS", "REB", "AST", "FGM", "FGA", "FG3M", "FG3A"},
		Rows: [][]interface{}{
			{"0022400002", "OCT 24, 2024", 30.0, 10.0, 10.0, 12.0, 20.0, 0.0, 0.0},
			{"0022400001", "OCT 22, 2024", 20.0, 4.0, 5.0, 5.0, 20.0, 2.0, 4.0},
		},
	}
	ds := normalize.PlayerRows(table, luka)
	require.Equal(t, 2, ds.Len())

	archive := &fakeRows{}
	for _, row := range ds.Rows {
		archive.rows = append(archive.rows, archived(t, row))
	}
	svc := NewTrendService(archive)

	tests := []struct {
		stat   string
		games  int
		values []float64
	}{
		{"FG_PCT", 2, []float64{0.6, 0.25}},
		{"fg3_pct", 1, []float64{0.5}},
		{"DOUBLE_DOUBLE", 2, []float64{1, 0}},
		{"TRIPLE_DOUBLE", 2, []float64{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.stat, func(t *testing.T) {
			trend, err := svc.Trend(context.Background(), store.KindPlayerLog, luka, tt.stat, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.games, trend.Games)
			assert.InDeltaSlice(t, tt.values, trend.Values, 1e-9)
		})
	}
}
