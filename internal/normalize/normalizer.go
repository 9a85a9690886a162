// Package normalize turns raw stats tables into datasets with derived columns.
package normalize

import (
	"database/sql"
	"strings"
	"time"

	"github.com/fortuna/courtside/internal/store"
)

// milestoneColumns are the categories counted toward double- and triple-doubles.
var milestoneColumns = []string{
	store.ColPoints,
	store.ColRebounds,
	store.ColAssists,
	store.ColSteals,
	store.ColBlocks,
}

const milestone = 10.0

var dateLayouts = []string{
	"Jan 02, 2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseGameDate parses the date formats the stats API uses. Month names are
// matched case-insensitively, so "OCT 22, 2024" works.
func ParseGameDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Milestones counts the categories in which the row reached ten.
func Milestones(row store.GameRow) int {
	n := 0
	for _, col := range milestoneColumns {
		if v, ok := row.Float(col); ok && v >= milestone {
			n++
		}
	}
	return n
}

// Ratio returns makes/attempts, or an invalid value when either count is
// missing or attempts is zero.
func Ratio(makes, attempts float64, ok bool) sql.NullFloat64 {
	if !ok || attempts == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: makes / attempts, Valid: true}
}

// PlayerRows normalizes a player game log. Raw columns pass through in
// order; PLAYER_ID, DOUBLE_DOUBLE and TRIPLE_DOUBLE are appended when absent,
// followed by FG_PCT and FG3_PCT when the source did not supply them.
// The flags are recomputed for every row, so normalizing a dataset's own
// Table() yields the same values.
func PlayerRows(table *store.Table, playerID int) *store.Dataset {
	if table.Empty() {
		return store.NewEmptyDataset(store.KindPlayerLog, playerID)
	}
	b := newBuilder(table, store.KindPlayerLog, playerID, store.ColPlayerID)
	b.flags = true
	return b.build()
}

// TeamRows normalizes a team game log: TEAM_ID is appended when absent.
// Percentages are carried from the source but never derived.
func TeamRows(table *store.Table, teamID int) *store.Dataset {
	if table.Empty() {
		return store.NewEmptyDataset(store.KindTeamLog, teamID)
	}
	b := newBuilder(table, store.KindTeamLog, teamID, store.ColTeamID)
	b.derivePct = false
	return b.build()
}

// BoxPlayerRows types the per-player split of a box score without adding columns.
func BoxPlayerRows(table *store.Table) *store.Dataset {
	if table.Empty() {
		return store.NewEmptyDataset(store.KindBoxPlayers, 0)
	}
	b := newBuilder(table, store.KindBoxPlayers, 0, "")
	b.entityColumn = store.ColPlayerID
	b.derivePct = false
	return b.build()
}

// BoxTeamRows types the per-team split of a box score without adding columns.
func BoxTeamRows(table *store.Table) *store.Dataset {
	if table.Empty() {
		return store.NewEmptyDataset(store.KindBoxTeams, 0)
	}
	b := newBuilder(table, store.KindBoxTeams, 0, "")
	b.entityColumn = store.ColTeamID
	b.derivePct = false
	return b.build()
}

type builder struct {
	table        *store.Table
	kind         store.DatasetKind
	entityID     int
	tagColumn    string
	entityColumn string
	flags        bool
	derivePct    bool
}

func newBuilder(table *store.Table, kind store.DatasetKind, entityID int, tag string) *builder {
	return &builder{
		table:        table,
		kind:         kind,
		entityID:     entityID,
		tagColumn:    tag,
		entityColumn: tag,
		derivePct:    true,
	}
}

func (b *builder) build() *store.Dataset {
	columns := append([]string(nil), b.table.Headers...)
	addColumn := func(name string) {
		for _, c := range columns {
			if c == name {
				return
			}
		}
		columns = append(columns, name)
	}

	if b.tagColumn != "" {
		addColumn(b.tagColumn)
	}
	if b.flags {
		addColumn(store.ColDoubleDouble)
		addColumn(store.ColTripleDouble)
	}

	// Percentages come from the source when it has them.
	hasFG := b.table.Index(store.ColFGPct) >= 0
	hasFG3 := b.table.Index(store.ColFG3Pct) >= 0
	canFG := b.table.Index(store.ColFGM) >= 0 && b.table.Index(store.ColFGA) >= 0
	canFG3 := b.table.Index(store.ColFG3M) >= 0 && b.table.Index(store.ColFG3A) >= 0
	if b.derivePct && !hasFG && canFG {
		addColumn(store.ColFGPct)
	}
	if b.derivePct && !hasFG3 && canFG3 {
		addColumn(store.ColFG3Pct)
	}

	ds := &store.Dataset{
		Kind:     b.kind,
		EntityID: b.entityID,
		Columns:  columns,
		Rows:     make([]store.GameRow, 0, len(b.table.Rows)),
	}

	for _, raw := range b.table.Rows {
		row := store.GameRow{Values: make(map[string]interface{}, len(columns))}
		for i, h := range b.table.Headers {
			if i < len(raw) {
				row.Values[h] = raw[i]
			} else {
				row.Values[h] = nil
			}
		}

		if b.tagColumn != "" && !b.table.HasExact(b.tagColumn) {
			row.Values[b.tagColumn] = float64(b.entityID)
		}

		b.fillTyped(&row)

		if hasFG {
			row.FGPct = sourcePct(row, store.ColFGPct)
		} else if b.derivePct && canFG {
			row.FGPct = derivedPct(row, store.ColFGM, store.ColFGA)
		}
		if hasFG3 {
			row.FG3Pct = sourcePct(row, store.ColFG3Pct)
		} else if b.derivePct && canFG3 {
			row.FG3Pct = derivedPct(row, store.ColFG3M, store.ColFG3A)
		}

		if b.flags {
			n := Milestones(row)
			row.DoubleDouble = n >= 2
			row.TripleDouble = n >= 3
		}

		ds.Rows = append(ds.Rows, row)
	}

	return ds
}

func (b *builder) fillTyped(row *store.GameRow) {
	row.EntityID = b.entityID
	if b.entityColumn != "" {
		if v, ok := row.Float(b.entityColumn); ok {
			row.EntityID = int(v)
		}
	}
	if v, ok := row.Float(store.ColTeamID); ok {
		row.TeamID = int(v)
	}
	row.GameID = row.String(store.ColGameID)
	row.Matchup = row.String(store.ColMatchup)
	if d, ok := ParseGameDate(row.String(store.ColGameDate)); ok {
		row.GameDate = d
	}
}

func sourcePct(row store.GameRow, column string) sql.NullFloat64 {
	v, ok := row.Float(column)
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func derivedPct(row store.GameRow, makesCol, attemptsCol string) sql.NullFloat64 {
	makes, okM := row.Float(makesCol)
	attempts, okA := row.Float(attemptsCol)
	return Ratio(makes, attempts, okM && okA)
}
