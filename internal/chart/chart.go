// Package chart draws two-entity stat comparisons as SVG.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/fortuna/courtside/internal/normalize"
	"github.com/fortuna/courtside/internal/store"
)

// ErrUnknownStat means the requested column is missing from one of the datasets.
var ErrUnknownStat = errors.New("unknown stat")

// MaxWindow caps the rolling mean window.
const MaxWindow = 5

// Point is one game on the chart.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is one entity's games in date order.
type Series struct {
	Label  string
	Points []Point
}

// Values returns the y values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Comparison is everything Render needs.
type Comparison struct {
	Title string
	Stat  string
	A     Series
	B     Series
}

// Window is the rolling mean window for this comparison.
func (c Comparison) Window() int {
	return RollingWindow(len(c.A.Points), len(c.B.Points))
}

// Compare builds a comparison of stat between two datasets. The error lists
// the columns both datasets share when stat is missing from either.
func Compare(title, stat, labelA string, a *store.Dataset, labelB string, b *store.Dataset) (Comparison, error) {
	if !a.HasColumn(stat) || !b.HasColumn(stat) {
		return Comparison{}, fmt.Errorf("%w %q, available: %s", ErrUnknownStat, stat, strings.Join(SharedColumns(a, b), ", "))
	}
	return Comparison{
		Title: title,
		Stat:  stat,
		A:     SeriesFrom(labelA, a, stat),
		B:     SeriesFrom(labelB, b, stat),
	}, nil
}

// SharedColumns lists the columns present in both datasets, in a's order.
func SharedColumns(a, b *store.Dataset) []string {
	out := []string{}
	if a == nil || b == nil {
		return out
	}
	for _, c := range a.Columns {
		if b.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// SeriesFrom extracts stat from ds sorted by game date. Rows without a date
// or a numeric value are skipped.
func SeriesFrom(label string, ds *store.Dataset, stat string) Series {
	s := Series{Label: label, Points: []Point{}}
	if ds == nil {
		return s
	}
	for _, row := range ds.Rows {
		date := row.GameDate
		if date.IsZero() {
			d, ok := normalize.ParseGameDate(row.String(store.ColGameDate))
			if !ok {
				continue
			}
			date = d
		}
		v, ok := store.ToFloat(row.Value(stat))
		if !ok {
			continue
		}
		s.Points = append(s.Points, Point{Date: date, Value: v})
	}
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Date.Before(s.Points[j].Date)
	})
	return s
}

// RollingWindow is min(MaxWindow, lenA, lenB).
func RollingWindow(lenA, lenB int) int {
	w := MaxWindow
	if lenA < w {
		w = lenA
	}
	if lenB < w {
		w = lenB
	}
	return w
}

// RollingMean returns the trailing mean for every index from window-1 on.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// Mean is the arithmetic mean, zero for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

const (
	width        = 1120
	height       = 480
	marginLeft   = 70
	marginRight  = 40
	marginTop    = 50
	marginBottom = 60
	yTicks       = 5
)

var palette = [2]string{"#1f77b4", "#d62728"}

type frame struct {
	start, end time.Time
	lo, hi     float64
}

func (f frame) x(t time.Time) int {
	plot := float64(width - marginLeft - marginRight)
	span := f.end.Sub(f.start)
	if span <= 0 {
		return marginLeft + int(plot/2)
	}
	return marginLeft + int(math.Round(plot*float64(t.Sub(f.start))/float64(span)))
}

func (f frame) y(v float64) int {
	plot := float64(height - marginTop - marginBottom)
	return height - marginBottom - int(math.Round(plot*(v-f.lo)/(f.hi-f.lo)))
}

func newFrame(series ...Series) frame {
	var f frame
	first := true
	for _, s := range series {
		for _, p := range s.Points {
			if first {
				f.start, f.end, f.lo, f.hi = p.Date, p.Date, p.Value, p.Value
				first = false
				continue
			}
			if p.Date.Before(f.start) {
				f.start = p.Date
			}
			if p.Date.After(f.end) {
				f.end = p.Date
			}
			f.lo = math.Min(f.lo, p.Value)
			f.hi = math.Max(f.hi, p.Value)
		}
	}
	if f.lo > 0 {
		f.lo = 0
	}
	if f.hi <= f.lo {
		f.hi = f.lo + 1
	}
	f.hi += (f.hi - f.lo) * 0.05
	return f
}

// Render writes the comparison chart: one line with markers per entity, a
// dashed rolling mean when the window exceeds one game, a dotted season mean
// per entity and month labels along the x axis.
func Render(w io.Writer, c Comparison) error {
	if len(c.A.Points) == 0 && len(c.B.Points) == 0 {
		return fmt.Errorf("render %s: %w", c.Stat, store.ErrEmptyResult)
	}

	f := newFrame(c.A, c.B)
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")
	canvas.Gstyle("font-family:Helvetica,Arial,sans-serif;font-size:12px")

	canvas.Text(width/2, marginTop/2, c.Title, "text-anchor:middle;font-size:16px")
	drawAxes(canvas, f, c.Stat)

	window := c.Window()
	legend := []legendEntry{}
	for i, s := range []Series{c.A, c.B} {
		color := palette[i]
		drawSeries(canvas, f, s, color)
		legend = append(legend, legendEntry{s.Label, color, ""})

		if window > 1 {
			drawRolling(canvas, f, s, window, color)
			legend = append(legend, legendEntry{fmt.Sprintf("%s (%d-game avg)", s.Label, window), color, "6,4"})
		}

		if len(s.Points) > 0 {
			mean := Mean(s.Values())
			y := f.y(mean)
			canvas.Line(marginLeft, y, width-marginRight, y,
				"stroke:"+color+";stroke-opacity:0.5;stroke-dasharray:2,3")
			label := fmt.Sprintf("Avg: %.1f", mean)
			canvas.Text(width-marginRight-4, y-4, label, "text-anchor:end;fill:"+color)
			legend = append(legend, legendEntry{s.Label + " " + label, color, "2,3"})
		}
	}

	drawLegend(canvas, legend)
	canvas.Gend()
	canvas.End()
	return nil
}

func drawAxes(canvas *svg.SVG, f frame, stat string) {
	bottom := height - marginBottom
	right := width - marginRight

	for i := 0; i <= yTicks; i++ {
		v := f.lo + (f.hi-f.lo)*float64(i)/yTicks
		y := f.y(v)
		canvas.Line(marginLeft, y, right, y, "stroke:#e5e5e5")
		canvas.Text(marginLeft-8, y+4, fmt.Sprintf("%.0f", v), "text-anchor:end;fill:#555")
	}

	for _, m := range MonthStarts(f.start, f.end) {
		x := f.x(m)
		canvas.Line(x, bottom, x, bottom+5, "stroke:#333")
		canvas.Text(x, bottom+20, m.Format("January"), "text-anchor:middle;fill:#555")
	}

	canvas.Line(marginLeft, bottom, right, bottom, "stroke:#333")
	canvas.Line(marginLeft, marginTop, marginLeft, bottom, "stroke:#333")
	canvas.Text((marginLeft+right)/2, height-15, "Game Date", "text-anchor:middle")
	canvas.TranslateRotate(20, (marginTop+bottom)/2, -90)
	canvas.Text(0, 0, stat, "text-anchor:middle")
	canvas.Gend()
}

func drawSeries(canvas *svg.SVG, f frame, s Series, color string) {
	if len(s.Points) == 0 {
		return
	}
	xs := make([]int, len(s.Points))
	ys := make([]int, len(s.Points))
	for i, p := range s.Points {
		xs[i], ys[i] = f.x(p.Date), f.y(p.Value)
	}
	canvas.Polyline(xs, ys, "fill:none;stroke-width:2;stroke:"+color)
	for i := range xs {
		canvas.Circle(xs[i], ys[i], 3, "fill:"+color)
	}
}

func drawRolling(canvas *svg.SVG, f frame, s Series, window int, color string) {
	means := RollingMean(s.Values(), window)
	if len(means) == 0 {
		return
	}
	xs := make([]int, len(means))
	ys := make([]int, len(means))
	for i, m := range means {
		xs[i], ys[i] = f.x(s.Points[i+window-1].Date), f.y(m)
	}
	canvas.Polyline(xs, ys, "fill:none;stroke-opacity:0.7;stroke-dasharray:6,4;stroke:"+color)
}

type legendEntry struct {
	label string
	color string
	dash  string
}

func drawLegend(canvas *svg.SVG, entries []legendEntry) {
	x, y := marginLeft+12, marginTop+8
	for i, e := range entries {
		ly := y + i*16
		style := "stroke-width:2;stroke:" + e.color
		if e.dash != "" {
			style += ";stroke-dasharray:" + e.dash
		}
		canvas.Line(x, ly, x+24, ly, style)
		canvas.Text(x+30, ly+4, e.label)
	}
}

// MonthStarts returns the first day of every month in [start, end].
func MonthStarts(start, end time.Time) []time.Time {
	out := []time.Time{}
	if end.Before(start) {
		return out
	}
	m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	if m.Before(start) {
		m = m.AddDate(0, 1, 0)
	}
	for !m.After(end) {
		out = append(out, m)
		m = m.AddDate(0, 1, 0)
	}
	return out
}
