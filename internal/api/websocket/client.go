package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBufferSize = 256
)

// Registry is the part of the hub a client talks back to.
type Registry interface {
	Unregister(client *Client)
}

// Client is one WebSocket connection listening for sweep progress.
type Client struct {
	ID   string
	conn *websocket.Conn
	// Send is never closed. The hub calls Close, which closes done.
	Send      chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
	hub       Registry
	log       *logrus.Entry

	filter   SubscriptionFilter
	filterMu sync.RWMutex

	connectedAt      time.Time
	messagesSent     int64
	messagesReceived int64
	lastMessageAt    time.Time
	mu               sync.Mutex
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, conn *websocket.Conn, hub Registry, log *logrus.Entry) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		Send:        make(chan ServerMessage, sendBufferSize),
		done:        make(chan struct{}),
		hub:         hub,
		log:         log.WithField("client_id", id),
		connectedAt: time.Now(),
	}
}

// ReadPump handles subscription messages until the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("unexpected close")
			}
			return
		}

		c.updateReceived()
		c.handleClientMessage(msg)
	}
}

// WritePump forwards hub messages to the connection and keeps it alive.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.WithError(err).Debug("write error")
				return
			}
			c.updateSent()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking and reports whether it fit.
// It always fails once the client is closed.
func (c *Client) TrySend(msg ServerMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// SetFilter replaces the subscription filter.
func (c *Client) SetFilter(filter SubscriptionFilter) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filter = filter
}

// Matches reports whether the client wants messages for jobID.
func (c *Client) Matches(jobID string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()

	if len(c.filter.Jobs) == 0 {
		return true
	}
	for _, id := range c.filter.Jobs {
		if id == jobID {
			return true
		}
	}
	return false
}

// Stats returns connection statistics.
func (c *Client) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ConnectionStats{
		ClientID:          c.ID,
		ConnectedAt:       c.connectedAt,
		MessagesSent:      c.messagesSent,
		MessagesReceived:  c.messagesReceived,
		LastMessageAt:     c.lastMessageAt,
		BufferSize:        sendBufferSize,
		BufferUtilization: float64(len(c.Send)) / float64(sendBufferSize) * 100.0,
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg.Payload)
	case MessageTypeUnsubscribe:
		c.SetFilter(SubscriptionFilter{})
	case MessageTypeHeartbeat:
		c.TrySend(ServerMessage{Type: MessageTypeHeartbeat, Payload: c.Stats(), Timestamp: time.Now()})
	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleSubscribe(payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.sendError("invalid_filter", "failed to parse filter")
		return
	}

	var filter SubscriptionFilter
	if err := json.Unmarshal(raw, &filter); err != nil {
		c.sendError("invalid_filter", "failed to parse filter")
		return
	}

	c.SetFilter(filter)
	c.log.WithField("jobs", filter.Jobs).Debug("subscribed")
}

func (c *Client) sendError(code, message string) {
	c.TrySend(ServerMessage{
		Type:      MessageTypeError,
		Payload:   ErrorMessage{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

func (c *Client) updateSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesSent++
	c.lastMessageAt = time.Now()
}

func (c *Client) updateReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messagesReceived++
	c.lastMessageAt = time.Now()
}
