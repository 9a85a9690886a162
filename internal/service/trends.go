package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/fortuna/courtside/internal/store"
	"github.com/fortuna/courtside/internal/store/repository"
)

// ArchivedRows lists stored game rows. repository.GameLogRepository
// implements it.
type ArchivedRows interface {
	RecentRows(ctx context.Context, kind store.DatasetKind, entityID, limit int) ([]*repository.ArchivedRow, error)
}

// TrendService summarizes recent archived games.
type TrendService struct {
	rows ArchivedRows
}

// NewTrendService creates a trend service over the archive.
func NewTrendService(rows ArchivedRows) *TrendService {
	return &TrendService{rows: rows}
}

// Trend is one stat over an entity's most recent archived games.
type Trend struct {
	Kind          store.DatasetKind `json:"kind"`
	EntityID      int               `json:"entity_id"`
	Stat          string            `json:"stat"`
	Games         int               `json:"games"`
	Mean          float64           `json:"mean"`
	StdDev        float64           `json:"std_dev"`
	Min           float64           `json:"min"`
	Max           float64           `json:"max"`
	DoubleDoubles int               `json:"double_doubles"`
	TripleDoubles int               `json:"triple_doubles"`
	Values        []float64         `json:"values"`
}

// Trend computes stat over the last limit archived games, newest first.
// Derived columns such as FG_PCT are read from the typed fields. Games
// without a value for stat are skipped. No archived games at all is
// store.ErrNotFound.
func (s *TrendService) Trend(ctx context.Context, kind store.DatasetKind, entityID int, stat string, limit int) (*Trend, error) {
	stat = strings.ToUpper(strings.TrimSpace(stat))
	archived, err := s.rows.RecentRows(ctx, kind, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching archived rows: %w", err)
	}
	if len(archived) == 0 {
		return nil, fmt.Errorf("no archived %s rows for %d: %w", kind, entityID, store.ErrNotFound)
	}

	trend := &Trend{Kind: kind, EntityID: entityID, Stat: stat, Values: []float64{}}
	for _, a := range archived {
		if a.DoubleDouble {
			trend.DoubleDoubles++
		}
		if a.TripleDouble {
			trend.TripleDoubles++
		}

		var row store.GameRow
		if err := json.Unmarshal(a.Payload, &row); err != nil {
			return nil, fmt.Errorf("decoding archived game %s: %w", a.GameID, err)
		}
		if v, ok := store.ToFloat(row.Value(stat)); ok {
			trend.Values = append(trend.Values, v)
		}
	}

	trend.Games = len(trend.Values)
	if trend.Games == 0 {
		return trend, nil
	}

	trend.Min, trend.Max = trend.Values[0], trend.Values[0]
	sum := 0.0
	for _, v := range trend.Values {
		sum += v
		trend.Min = math.Min(trend.Min, v)
		trend.Max = math.Max(trend.Max, v)
	}
	trend.Mean = sum / float64(trend.Games)

	variance := 0.0
	for _, v := range trend.Values {
		d := v - trend.Mean
		variance += d * d
	}
	trend.StdDev = math.Sqrt(variance / float64(trend.Games))
	return trend, nil
}
