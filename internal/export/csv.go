// Package export writes datasets to the data directory as CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/store"
	"github.com/sirupsen/logrus"
)

// Subdirectories of the data directory.
const (
	PlayersDir        = "players"
	TeamsDir          = "teams"
	BoxScoresDir      = "boxscores"
	VisualizationsDir = "visualizations"
)

// FileName makes a display name safe for use in a file name.
func FileName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// UnknownName is the placeholder for an ID with no known entity.
func UnknownName(id int) string {
	return fmt.Sprintf("Unknown_%d", id)
}

// PlayerLogPath is the relative path of a player's game log.
func PlayerLogPath(fullName string) string {
	return filepath.Join(PlayersDir, FileName(fullName)+"_games.csv")
}

// TeamLogPath is the relative path of a team's game log.
func TeamLogPath(abbreviation string) string {
	return filepath.Join(TeamsDir, FileName(abbreviation)+"_games.csv")
}

// BoxScorePaths are the relative paths of a game's player and team splits.
func BoxScorePaths(gameID string) (players, teams string) {
	return filepath.Join(BoxScoresDir, "game_"+gameID+"_player_stats.csv"),
		filepath.Join(BoxScoresDir, "game_"+gameID+"_team_stats.csv")
}

// ChartPath is the relative path of a comparison chart.
func ChartPath(a, b, stat string) string {
	return filepath.Join(VisualizationsDir, fmt.Sprintf("%s_vs_%s_%s.svg", FileName(a), FileName(b), stat))
}

// WriteCSV writes the header row and every record of ds.
func WriteCSV(w io.Writer, ds *store.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range ds.Rows {
		if err := cw.Write(ds.Record(i)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSink persists datasets under a root directory.
type CSVSink struct {
	dir string
	log *logrus.Entry
}

// NewCSVSink creates a sink rooted at dir. Nothing is created until the
// first write.
func NewCSVSink(dir string, log *logrus.Entry) *CSVSink {
	if log == nil {
		log = logging.Component(nil, "csv")
	}
	return &CSVSink{dir: dir, log: log}
}

// Dir returns the root directory.
func (s *CSVSink) Dir() string {
	return s.dir
}

// WriteDataset writes ds to rel under the root and returns the full path.
// Empty datasets are not written.
func (s *CSVSink) WriteDataset(ds *store.Dataset, rel string) (string, error) {
	if ds.Empty() {
		s.log.WithField("file", rel).Warn("no data to save")
		return "", fmt.Errorf("save %s: %w", rel, store.ErrEmptyResult)
	}

	path := filepath.Join(s.dir, rel)
	if err := WriteFile(path, func(w io.Writer) error { return WriteCSV(w, ds) }); err != nil {
		return "", fmt.Errorf("save %s: %w", rel, err)
	}

	s.log.WithFields(logrus.Fields{"file": path, "rows": ds.Len()}).Info("saved dataset")
	return path, nil
}

// SavePlayerLog writes a player game log under players/.
func (s *CSVSink) SavePlayerLog(ds *store.Dataset, fullName string) (string, error) {
	return s.WriteDataset(ds, PlayerLogPath(fullName))
}

// SaveTeamLog writes a team game log under teams/.
func (s *CSVSink) SaveTeamLog(ds *store.Dataset, abbreviation string) (string, error) {
	return s.WriteDataset(ds, TeamLogPath(abbreviation))
}

// SaveBoxScore writes both splits of a box score.
func (s *CSVSink) SaveBoxScore(bs *store.BoxScore) (players, teams string, err error) {
	if bs.Empty() {
		return "", "", fmt.Errorf("save box score: %w", store.ErrEmptyResult)
	}
	playersRel, teamsRel := BoxScorePaths(bs.GameID)
	if players, err = s.WriteDataset(bs.Players, playersRel); err != nil {
		return "", "", err
	}
	if teams, err = s.WriteDataset(bs.Teams, teamsRel); err != nil {
		return players, "", err
	}
	return players, teams, nil
}

// WriteFile creates the parent directories of path and writes through a
// temporary file that is renamed into place.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
