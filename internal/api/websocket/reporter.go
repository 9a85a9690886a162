package websocket

import (
	"github.com/fortuna/courtside/internal/backfill"
)

// ProgressReporter broadcasts sweep job lifecycle events to WebSocket
// clients.
type ProgressReporter struct {
	hub *Hub
}

var _ backfill.Reporter = (*ProgressReporter)(nil)

// NewProgressReporter creates a reporter on hub.
func NewProgressReporter(hub *Hub) *ProgressReporter {
	return &ProgressReporter{hub: hub}
}

func (r *ProgressReporter) OnJobStart(jobID string, spec backfill.JobSpec, total int) {
	r.hub.Broadcast(ServerMessage{
		Type:  MessageTypeJobStart,
		JobID: jobID,
		Payload: JobStartPayload{
			JobType:    string(spec.Type),
			Season:     spec.Season,
			SeasonType: spec.SeasonType,
			DaysBack:   spec.DaysBack,
			GameIDs:    spec.GameIDs,
			Total:      total,
		},
	})
}

func (r *ProgressReporter) OnItem(jobID string, item string, rows int, err error) {
	payload := JobItemPayload{Item: item, Rows: rows}
	if err != nil {
		payload.Error = err.Error()
	}
	r.hub.Broadcast(ServerMessage{Type: MessageTypeJobItem, JobID: jobID, Payload: payload})
}

func (r *ProgressReporter) OnProgress(jobID string, message string, current int, total int) {
	r.hub.Broadcast(ServerMessage{
		Type:    MessageTypeJobProgress,
		JobID:   jobID,
		Payload: JobProgressPayload{Message: message, Current: current, Total: total},
	})
}

func (r *ProgressReporter) OnJobComplete(jobID string, message string) {
	r.hub.Broadcast(ServerMessage{
		Type:    MessageTypeJobComplete,
		JobID:   jobID,
		Payload: JobProgressPayload{Message: message},
	})
}

func (r *ProgressReporter) OnJobError(jobID string, err error) {
	r.hub.Broadcast(ServerMessage{
		Type:    MessageTypeJobError,
		JobID:   jobID,
		Payload: ErrorMessage{Message: err.Error()},
	})
}
