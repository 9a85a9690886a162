package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the minimum spacing between stats API requests.
const DefaultInterval = time.Second

// Clock abstracts time so the governor can be driven by tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Governor enforces a minimum interval between outbound requests.
//
// The lock is held while waiting, so concurrent callers queue up and the
// spacing holds globally rather than per goroutine.
type Governor struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
	clock       Clock
	log         *logrus.Entry
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(g *Governor) { g.clock = c }
}

// WithLogger sets the logger used for wait diagnostics.
func WithLogger(entry *logrus.Entry) Option {
	return func(g *Governor) { g.log = entry }
}

// NewGovernor creates a governor. A non-positive interval uses DefaultInterval.
func NewGovernor(interval time.Duration, opts ...Option) *Governor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	g := &Governor{
		interval: interval,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		g.log = logrus.NewEntry(discard)
	}
	return g
}

// Interval returns the configured minimum spacing.
func (g *Governor) Interval() time.Duration {
	return g.interval
}

// Wait blocks until at least Interval has passed since the previous call,
// then records now as the last request time. It returns early only when ctx
// is cancelled, in which case the recorded time is left unchanged.
func (g *Governor) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastRequest.IsZero() {
		elapsed := g.clock.Now().Sub(g.lastRequest)
		if elapsed < g.interval {
			wait := g.interval - elapsed
			g.log.WithField("wait", wait).Debug("rate limiting: waiting before next request")
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.lastRequest = g.clock.Now()
	return nil
}

// LastRequest returns the time recorded by the most recent Wait.
func (g *Governor) LastRequest() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRequest
}
