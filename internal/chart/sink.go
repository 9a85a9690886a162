package chart

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fortuna/courtside/internal/export"
	"github.com/fortuna/courtside/internal/logging"
	"github.com/sirupsen/logrus"
)

// SVGSink writes comparison charts under <dir>/visualizations.
type SVGSink struct {
	dir string
	log *logrus.Entry
}

// NewSVGSink creates a sink rooted at the data directory.
func NewSVGSink(dir string, log *logrus.Entry) *SVGSink {
	if log == nil {
		log = logging.Component(nil, "chart")
	}
	return &SVGSink{dir: dir, log: log}
}

// Save renders c to visualizations/<A>_vs_<B>_<STAT>.svg and returns the path.
func (s *SVGSink) Save(c Comparison) (string, error) {
	path := filepath.Join(s.dir, export.ChartPath(c.A.Label, c.B.Label, c.Stat))
	err := export.WriteFile(path, func(w io.Writer) error { return Render(w, c) })
	if err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"file":   path,
		"stat":   c.Stat,
		"window": c.Window(),
	}).Info("saved comparison chart")
	return path, nil
}
