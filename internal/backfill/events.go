package backfill

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// EventPublisher receives sweep lifecycle events. publisher.RedisStreamPublisher
// implements it.
type EventPublisher interface {
	PublishSweepEvent(ctx context.Context, event interface{}) error
}

// SweepEvent is one lifecycle event as written to the sweep stream.
type SweepEvent struct {
	Kind       string    `json:"kind"`
	JobID      string    `json:"job_id"`
	JobType    JobType   `json:"job_type,omitempty"`
	Item       string    `json:"item,omitempty"`
	Rows       int       `json:"rows,omitempty"`
	Current    int       `json:"current,omitempty"`
	Total      int       `json:"total,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventReporter forwards runner callbacks to an EventPublisher. Publish
// failures are logged and otherwise ignored.
type EventReporter struct {
	pub     EventPublisher
	timeout time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

var _ Reporter = (*EventReporter)(nil)

// NewEventReporter creates a reporter publishing to pub.
func NewEventReporter(pub EventPublisher, log *logrus.Entry) *EventReporter {
	return &EventReporter{pub: pub, timeout: 2 * time.Second, now: time.Now, log: log}
}

func (r *EventReporter) OnJobStart(jobID string, spec JobSpec, total int) {
	r.publish(SweepEvent{Kind: "start", JobID: jobID, JobType: spec.Type, Total: total})
}

func (r *EventReporter) OnItem(jobID string, item string, rows int, err error) {
	ev := SweepEvent{Kind: "item", JobID: jobID, Item: item, Rows: rows}
	if err != nil {
		ev.Error = err.Error()
	}
	r.publish(ev)
}

func (r *EventReporter) OnProgress(jobID string, message string, current int, total int) {
	r.publish(SweepEvent{Kind: "progress", JobID: jobID, Message: message, Current: current, Total: total})
}

func (r *EventReporter) OnJobComplete(jobID string, message string) {
	r.publish(SweepEvent{Kind: "complete", JobID: jobID, Message: message})
}

func (r *EventReporter) OnJobError(jobID string, err error) {
	r.publish(SweepEvent{Kind: "error", JobID: jobID, Error: err.Error()})
}

func (r *EventReporter) publish(ev SweepEvent) {
	ev.OccurredAt = r.now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.pub.PublishSweepEvent(ctx, ev); err != nil && r.log != nil {
		r.log.WithError(err).WithField("job_id", ev.JobID).Warn("publish sweep event")
	}
}
