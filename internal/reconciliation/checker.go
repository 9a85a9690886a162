// Package reconciliation cross-checks the two halves of a box score.
package reconciliation

import (
	"fmt"
	"sync"
	"time"

	"github.com/fortuna/courtside/internal/logging"
	"github.com/fortuna/courtside/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultTolerance is the largest difference (exclusive) allowed between a
// team's reported points and the sum of its players' points.
var DefaultTolerance = decimal.RequireFromString("0.1")

// SideTotals is the comparison for one team.
type SideTotals struct {
	TeamID       int             `json:"team_id"`
	Abbreviation string          `json:"abbreviation,omitempty"`
	Reported     decimal.Decimal `json:"reported"`
	Computed     decimal.Decimal `json:"computed"`
	Diff         decimal.Decimal `json:"diff"`
	Players      int             `json:"players"`
	Consistent   bool            `json:"consistent"`
	Note         string          `json:"note,omitempty"`
}

// Report is the outcome of checking one game.
type Report struct {
	GameID    string       `json:"game_id"`
	Passed    bool         `json:"passed"`
	Reason    string       `json:"reason,omitempty"`
	Sides     []SideTotals `json:"sides"`
	CheckedAt time.Time    `json:"checked_at"`
}

// Err returns nil for a passing report and an error wrapping
// store.ErrInconsistentTotals otherwise.
func (r *Report) Err() error {
	if r == nil || r.Passed {
		return nil
	}
	return fmt.Errorf("game %s: %s: %w", r.GameID, r.Reason, store.ErrInconsistentTotals)
}

// Metrics tracks checker outcomes since start.
type Metrics struct {
	Checks    int       `json:"checks"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	LastCheck time.Time `json:"last_check"`
}

// Checker verifies that player points add up to the team totals.
type Checker struct {
	tolerance decimal.Decimal
	now       func() time.Time
	log       *logrus.Entry

	mu      sync.Mutex
	metrics Metrics
}

// NewChecker creates a checker with the default tolerance.
func NewChecker(log *logrus.Entry) *Checker {
	if log == nil {
		log = logging.Component(nil, "checker")
	}
	return &Checker{tolerance: DefaultTolerance, now: time.Now, log: log}
}

// Check compares the first two team rows against the summed player rows of
// the same team. Missing player points count as zero.
func (c *Checker) Check(bs *store.BoxScore) *Report {
	report := &Report{Sides: []SideTotals{}, CheckedAt: c.now().UTC()}
	if bs != nil {
		report.GameID = bs.GameID
	}
	log := c.log.WithField("game_id", report.GameID)

	switch {
	case bs.Empty():
		report.Reason = "box score has no data"
	case bs.Teams.Len() < 2:
		report.Reason = fmt.Sprintf("expected two team rows, got %d", bs.Teams.Len())
	default:
		report.Passed = true
		for _, team := range bs.Teams.Rows[:2] {
			side := c.side(team, bs.Players)
			report.Sides = append(report.Sides, side)
			if !side.Consistent && report.Passed {
				report.Passed = false
				report.Reason = side.Note
				if report.Reason == "" {
					report.Reason = fmt.Sprintf("team %d reported %s but players sum to %s",
						side.TeamID, side.Reported, side.Computed)
				}
			}
		}
	}

	c.record(report.Passed)

	if report.Passed {
		log.Info("box score totals consistent")
	} else {
		log.WithField("reason", report.Reason).Warn("box score totals inconsistent")
	}
	return report
}

func (c *Checker) side(team store.GameRow, players *store.Dataset) SideTotals {
	side := SideTotals{
		TeamID:       team.EntityID,
		Abbreviation: team.String("TEAM_ABBREVIATION"),
		Computed:     decimal.Zero,
	}

	reported, ok := team.Float(store.ColPoints)
	if !ok {
		side.Note = fmt.Sprintf("team %d has no reported points", side.TeamID)
		return side
	}
	side.Reported = decimal.NewFromFloat(reported)

	for _, p := range players.Rows {
		if p.TeamID != team.EntityID {
			continue
		}
		side.Players++
		if pts, ok := p.Float(store.ColPoints); ok {
			side.Computed = side.Computed.Add(decimal.NewFromFloat(pts))
		}
	}

	side.Diff = side.Reported.Sub(side.Computed).Abs()
	side.Consistent = side.Diff.LessThan(c.tolerance)
	return side
}

func (c *Checker) record(passed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.Checks++
	if passed {
		c.metrics.Passed++
	} else {
		c.metrics.Failed++
	}
	c.metrics.LastCheck = c.now()
}

// GetMetrics returns a snapshot of the counters.
func (c *Checker) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ResetMetrics clears all counters.
func (c *Checker) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}
