package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna/courtside/internal/store"
)

// GameLogRepository archives normalized game rows.
type GameLogRepository struct {
	db *store.Database
}

// NewGameLogRepository creates a new game log repository
func NewGameLogRepository(db *store.Database) *GameLogRepository {
	return &GameLogRepository{db: db}
}

const upsertGameRow = `
	INSERT INTO game_rows (
		dataset_kind, entity_id, game_id, season, season_type, game_date, matchup,
		fg_pct, fg3_pct, double_double, triple_double, payload, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	ON CONFLICT (dataset_kind, entity_id, game_id) DO UPDATE SET
		season = EXCLUDED.season,
		season_type = EXCLUDED.season_type,
		game_date = EXCLUDED.game_date,
		matchup = EXCLUDED.matchup,
		fg_pct = EXCLUDED.fg_pct,
		fg3_pct = EXCLUDED.fg3_pct,
		double_double = EXCLUDED.double_double,
		triple_double = EXCLUDED.triple_double,
		payload = EXCLUDED.payload,
		updated_at = NOW()
`

// SaveDataset upserts every row of ds in one transaction and returns the
// number of rows written.
func (r *GameLogRepository) SaveDataset(ctx context.Context, ds *store.Dataset, season, seasonType string) (int, error) {
	if ds.Empty() {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertGameRow)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range ds.Rows {
		args, err := gameRowArgs(ds.Kind, season, seasonType, row)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("upserting game %s: %w", row.GameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return ds.Len(), nil
}

func gameRowArgs(kind store.DatasetKind, season, seasonType string, row store.GameRow) ([]interface{}, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encoding game %s: %w", row.GameID, err)
	}

	var gameDate sql.NullTime
	if !row.GameDate.IsZero() {
		gameDate = sql.NullTime{Time: row.GameDate, Valid: true}
	}

	return []interface{}{
		string(kind), row.EntityID, row.GameID, season, seasonType, gameDate,
		sql.NullString{String: row.Matchup, Valid: row.Matchup != ""},
		row.FGPct, row.FG3Pct, row.DoubleDouble, row.TripleDouble, string(payload),
	}, nil
}

// ArchivedRow is a stored game row.
type ArchivedRow struct {
	Kind         string          `json:"kind"`
	EntityID     int             `json:"entity_id"`
	GameID       string          `json:"game_id"`
	Season       string          `json:"season"`
	SeasonType   string          `json:"season_type"`
	GameDate     *time.Time      `json:"game_date,omitempty"`
	Matchup      string          `json:"matchup,omitempty"`
	DoubleDouble bool            `json:"double_double"`
	TripleDouble bool            `json:"triple_double"`
	Payload      json.RawMessage `json:"payload"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RecentRows returns an entity's latest archived rows of one kind, newest first.
func (r *GameLogRepository) RecentRows(ctx context.Context, kind store.DatasetKind, entityID, limit int) ([]*ArchivedRow, error) {
	query := `
		SELECT dataset_kind, entity_id, game_id, season, season_type, game_date,
			COALESCE(matchup, ''), double_double, triple_double, payload, updated_at
		FROM game_rows
		WHERE dataset_kind = $1 AND entity_id = $2
		ORDER BY game_date DESC NULLS LAST, game_id DESC
		LIMIT $3
	`

	rows, err := r.db.DB().QueryContext(ctx, query, string(kind), entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying game rows: %w", err)
	}
	defer rows.Close()

	out := []*ArchivedRow{}
	for rows.Next() {
		var (
			a        ArchivedRow
			gameDate sql.NullTime
			payload  []byte
		)
		if err := rows.Scan(&a.Kind, &a.EntityID, &a.GameID, &a.Season, &a.SeasonType, &gameDate,
			&a.Matchup, &a.DoubleDouble, &a.TripleDouble, &payload, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning game row: %w", err)
		}
		if gameDate.Valid {
			d := gameDate.Time
			a.GameDate = &d
		}
		a.Payload = json.RawMessage(payload)
		out = append(out, &a)
	}
	return out, rows.Err()
}
