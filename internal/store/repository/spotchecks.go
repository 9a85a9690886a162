package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna/courtside/internal/reconciliation"
	"github.com/fortuna/courtside/internal/store"
)

// SpotCheckRepository records box score consistency reports.
type SpotCheckRepository struct {
	db *store.Database
}

// NewSpotCheckRepository creates a new spot check repository
func NewSpotCheckRepository(db *store.Database) *SpotCheckRepository {
	return &SpotCheckRepository{db: db}
}

// Save inserts a report and returns its row ID.
func (r *SpotCheckRepository) Save(ctx context.Context, report *reconciliation.Report) (int64, error) {
	sides, err := json.Marshal(report.Sides)
	if err != nil {
		return 0, fmt.Errorf("encoding sides: %w", err)
	}

	var id int64
	err = r.db.DB().QueryRowContext(ctx, `
		INSERT INTO spot_checks (game_id, passed, reason, sides, checked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, report.GameID, report.Passed, report.Reason, string(sides), report.CheckedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting spot check: %w", err)
	}
	return id, nil
}

// History returns the reports recorded for a game, newest first.
func (r *SpotCheckRepository) History(ctx context.Context, gameID string, limit int) ([]*reconciliation.Report, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT game_id, passed, reason, sides, checked_at
		FROM spot_checks
		WHERE game_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying spot checks: %w", err)
	}
	defer rows.Close()

	out := []*reconciliation.Report{}
	for rows.Next() {
		var (
			report    reconciliation.Report
			sides     []byte
			checkedAt time.Time
		)
		if err := rows.Scan(&report.GameID, &report.Passed, &report.Reason, &sides, &checkedAt); err != nil {
			return nil, fmt.Errorf("scanning spot check: %w", err)
		}
		if err := json.Unmarshal(sides, &report.Sides); err != nil {
			return nil, fmt.Errorf("decoding sides: %w", err)
		}
		report.CheckedAt = checkedAt
		out = append(out, &report)
	}
	return out, rows.Err()
}
