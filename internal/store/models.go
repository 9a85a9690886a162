package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Sentinel errors shared by every component. Match them with errors.Is.
var (
	// ErrNotFound means a name resolved to no entity.
	ErrNotFound = errors.New("entity not found")
	// ErrEmptyResult means the stats source returned no rows for a valid request.
	ErrEmptyResult = errors.New("empty result")
	// ErrTransport means the stats source could not be reached or sent malformed data.
	ErrTransport = errors.New("transport failure")
	// ErrInconsistentTotals means player points do not add up to the team total.
	ErrInconsistentTotals = errors.New("inconsistent totals")
)

// EntityKind distinguishes players from teams.
type EntityKind string

const (
	EntityPlayer EntityKind = "player"
	EntityTeam   EntityKind = "team"
)

// EntityRef is a resolved player or team.
type EntityRef struct {
	ID       int        `json:"id"`
	Kind     EntityKind `json:"kind"`
	FullName string     `json:"full_name"`

	// Player fields
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`

	// Team fields
	Abbreviation string `json:"abbreviation,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	City         string `json:"city,omitempty"`
}

// DatasetKind names what a Dataset holds.
type DatasetKind string

const (
	KindPlayerLog  DatasetKind = "player_log"
	KindTeamLog    DatasetKind = "team_log"
	KindBoxPlayers DatasetKind = "box_players"
	KindBoxTeams   DatasetKind = "box_teams"
)

// Table is a raw result set as delivered by the stats API.
type Table struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"rowSet"`
}

// Index returns the position of a column, matching exactly first and then
// case-insensitively. It returns -1 when the column is absent.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, h := range t.Headers {
		if h == column {
			return i
		}
	}
	for i, h := range t.Headers {
		if strings.EqualFold(h, column) {
			return i
		}
	}
	return -1
}

// HasExact reports whether the column exists with exactly this spelling.
func (t *Table) HasExact(column string) bool {
	if t == nil {
		return false
	}
	for _, h := range t.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// GameRow is one game's statistics for one player or one team.
type GameRow struct {
	EntityID int       `json:"entity_id"`
	TeamID   int       `json:"team_id,omitempty"`
	GameID   string    `json:"game_id"`
	GameDate time.Time `json:"game_date,omitempty"`
	Matchup  string    `json:"matchup,omitempty"`

	// Derived
	FGPct        sql.NullFloat64 `json:"-"`
	FG3Pct       sql.NullFloat64 `json:"-"`
	DoubleDouble bool            `json:"double_double"`
	TripleDouble bool            `json:"triple_double"`

	// Values holds every raw column keyed by header.
	Values map[string]interface{} `json:"values"`
}

// Float returns a numeric column value. Strings holding numbers are parsed;
// nil and missing values report false.
func (r GameRow) Float(column string) (float64, bool) {
	v, ok := r.lookup(column)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// String returns a column rendered as text.
func (r GameRow) String(column string) string {
	v, ok := r.lookup(column)
	if !ok || v == nil {
		return ""
	}
	return formatValue(v)
}

func (r GameRow) lookup(column string) (interface{}, bool) {
	if v, ok := r.Values[column]; ok {
		return v, true
	}
	for k, v := range r.Values {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

// Value returns the cell for column, serving derived columns from the typed
// fields so they always agree with them.
func (r GameRow) Value(column string) interface{} {
	switch column {
	case ColDoubleDouble:
		return boolToFlag(r.DoubleDouble)
	case ColTripleDouble:
		return boolToFlag(r.TripleDouble)
	case ColFGPct:
		return nullableFloat(r.FGPct)
	case ColFG3Pct:
		return nullableFloat(r.FG3Pct)
	}
	v, _ := r.lookup(column)
	return v
}

// MarshalJSON exposes the undefined percentages as null.
func (r GameRow) MarshalJSON() ([]byte, error) {
	type alias GameRow
	return json.Marshal(struct {
		alias
		FGPct  interface{} `json:"fg_pct"`
		FG3Pct interface{} `json:"fg3_pct"`
	}{
		alias:  alias(r),
		FGPct:  nullableFloat(r.FGPct),
		FG3Pct: nullableFloat(r.FG3Pct),
	})
}

// UnmarshalJSON restores the percentages written by MarshalJSON.
func (r *GameRow) UnmarshalJSON(data []byte) error {
	type alias GameRow
	aux := struct {
		*alias
		FGPct  *float64 `json:"fg_pct"`
		FG3Pct *float64 `json:"fg3_pct"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.FGPct = toNullFloat(aux.FGPct)
	r.FG3Pct = toNullFloat(aux.FG3Pct)
	return nil
}

// Column names the stats API uses and the ones derived locally.
const (
	ColGameID       = "GAME_ID"
	ColGameDate     = "GAME_DATE"
	ColMatchup      = "MATCHUP"
	ColPlayerID     = "PLAYER_ID"
	ColTeamID       = "TEAM_ID"
	ColPoints       = "PTS"
	ColRebounds     = "REB"
	ColAssists      = "AST"
	ColSteals       = "STL"
	ColBlocks       = "BLK"
	ColFGM          = "FGM"
	ColFGA          = "FGA"
	ColFG3M         = "FG3M"
	ColFG3A         = "FG3A"
	ColFGPct        = "FG_PCT"
	ColFG3Pct       = "FG3_PCT"
	ColDoubleDouble = "DOUBLE_DOUBLE"
	ColTripleDouble = "TRIPLE_DOUBLE"
)

// Dataset is a normalized, ordered collection of rows with its column layout.
type Dataset struct {
	Kind     DatasetKind `json:"kind"`
	EntityID int         `json:"entity_id,omitempty"`
	Name     string      `json:"name"`
	Columns  []string    `json:"columns"`
	Rows     []GameRow   `json:"rows"`
}

// NewEmptyDataset returns a dataset with no rows.
func NewEmptyDataset(kind DatasetKind, entityID int) *Dataset {
	return &Dataset{Kind: kind, EntityID: entityID, Columns: []string{}, Rows: []GameRow{}}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// HasColumn reports whether the dataset carries a column.
func (d *Dataset) HasColumn(column string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Record renders row i in column order.
func (d *Dataset) Record(i int) []string {
	row := d.Rows[i]
	out := make([]string, len(d.Columns))
	for j, col := range d.Columns {
		out[j] = formatValue(row.Value(col))
	}
	return out
}

// Table converts the dataset back into raw tabular form, derived columns
// included.
func (d *Dataset) Table() *Table {
	t := &Table{Name: string(d.Kind), Headers: append([]string(nil), d.Columns...)}
	for _, row := range d.Rows {
		cells := make([]interface{}, len(d.Columns))
		for j, col := range d.Columns {
			cells[j] = row.Value(col)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// Filter returns a copy holding only the rows keep accepts.
func (d *Dataset) Filter(keep func(GameRow) bool) *Dataset {
	out := &Dataset{
		Kind:     d.Kind,
		EntityID: d.EntityID,
		Name:     d.Name,
		Columns:  append([]string(nil), d.Columns...),
		Rows:     []GameRow{},
	}
	for _, row := range d.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// BoxScore holds the player and team splits for one game. Both datasets are
// populated or both are empty.
type BoxScore struct {
	GameID  string   `json:"game_id"`
	Players *Dataset `json:"players"`
	Teams   *Dataset `json:"teams"`
}

// NewEmptyBoxScore returns a box score with no rows on either side.
func NewEmptyBoxScore(gameID string) *BoxScore {
	return &BoxScore{
		GameID:  gameID,
		Players: NewEmptyDataset(KindBoxPlayers, 0),
		Teams:   NewEmptyDataset(KindBoxTeams, 0),
	}
}

// Empty reports whether the box score has no data.
func (b *BoxScore) Empty() bool {
	return b == nil || b.Players.Empty() || b.Teams.Empty()
}
