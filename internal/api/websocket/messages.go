package websocket

import "time"

// Message types for WebSocket communication
const (
	MessageTypeJobStart    = "job_start"
	MessageTypeJobItem     = "job_item"
	MessageTypeJobProgress = "job_progress"
	MessageTypeJobComplete = "job_complete"
	MessageTypeJobError    = "job_error"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriptionFilter limits which jobs a client hears about. An empty
// filter receives everything.
type SubscriptionFilter struct {
	Jobs []string `json:"jobs,omitempty"`
}

// JobStartPayload accompanies job_start.
type JobStartPayload struct {
	JobType    string   `json:"job_type"`
	Season     string   `json:"season,omitempty"`
	SeasonType string   `json:"season_type,omitempty"`
	DaysBack   int      `json:"days_back,omitempty"`
	GameIDs    []string `json:"game_ids,omitempty"`
	Total      int      `json:"total"`
}

// JobItemPayload accompanies job_item.
type JobItemPayload struct {
	Item  string `json:"item"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// JobProgressPayload accompanies job_progress.
type JobProgressPayload struct {
	Message string `json:"message"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ConnectionStats is sent in reply to a heartbeat.
type ConnectionStats struct {
	ClientID          string    `json:"client_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastMessageAt     time.Time `json:"last_message_at"`
	BufferSize        int       `json:"buffer_size"`
	BufferUtilization float64   `json:"buffer_utilization"`
}

// ErrorMessage carries job_error and error details.
type ErrorMessage struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
