package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	replayMax  = 100
)

// StreamEvent represents an event from streams
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// StreamsProvider interface for event replay
type StreamsProvider interface {
	GetLastSequence(ctx context.Context, channel, connectionID string) (int64, error)
	AcknowledgeSequence(ctx context.Context, channel, connectionID string, sequence int64) error
	ReplayEvents(ctx context.Context, channel string, sinceSeq int64, limit int64) ([]StreamEvent, error)
}

// Hub manages WebSocket connections and channel subscriptions
type Hub struct {
	mu         sync.RWMutex
	conns      map[*Conn]bool
	subs       map[string]map[*Conn]bool // channel -> connections
	publish    chan Event
	log        *zap.Logger
	cmdHandler *CommandHandler
	ctx        context.Context
	streams    StreamsProvider // For sequence numbers and replay
}

// Conn represents a WebSocket connection
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	hub      *Hub
	editorID string
	subs     map[string]bool // subscribed channels
	ctx      context.Context
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// inbound is any client frame
type inbound struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Seq     int64           `json:"seq"`
	Since   *int64          `json:"since"`
	ID      string          `json:"id"`
	Op      string          `json:"op"`
	Data    json.RawMessage `json:"data"`
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context, log *zap.Logger) *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		subs:    make(map[string]map[*Conn]bool),
		publish: make(chan Event, 256),
		log:     log,
		ctx:     ctx,
	}
}

// SetCommandHandler sets the command handler for processing WebSocket commands
func (h *Hub) SetCommandHandler(handler *CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmdHandler = handler
}

// SetStreamsProvider sets the streams provider for event replay
func (h *Hub) SetStreamsProvider(provider StreamsProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams = provider
}

// Run delivers published events until the hub context ends
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case event := <-h.publish:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event Event) {
	msg, err := json.Marshal(map[string]interface{}{
		"type":    "event",
		"channel": event.Channel,
		"seq":     event.Message["seq"],
		"data":    event.Message,
	})
	if err != nil {
		h.log.Error("Failed to encode event", zap.String("channel", event.Channel), zap.Error(err))
		return
	}

	// Sends happen under the read lock so unregister cannot close a send
	// channel mid-delivery
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.subs[event.Channel] {
		select {
		case conn.send <- msg:
		default:
			h.log.Warn("Connection buffer full, dropping event",
				zap.String("channel", event.Channel),
				zap.String("editor", conn.editorID),
			)
		}
	}
}

// Register adds a new connection to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

// unregister removes a connection and closes its send channel once
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(conn.send)
		for channel := range conn.subs {
			if subs := h.subs[channel]; subs != nil {
				delete(subs, conn)
				if len(subs) == 0 {
					delete(h.subs, channel)
				}
			}
		}
	}
}

// Subscribe adds a connection to a channel
func (h *Hub) Subscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]bool)
	}
	h.subs[channel][conn] = true
	conn.subs[channel] = true
}

// Unsubscribe removes a connection from a channel
func (h *Hub) Unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	delete(conn.subs, channel)
}

// Publish sends an event to all subscribers of a channel
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Hub publish channel full, dropping event", zap.String("channel", channel))
	}
}

// NewConn creates a new connection
func NewConn(ws *websocket.Conn, hub *Hub, editorID string) *Conn {
	return &Conn{
		ws:       ws,
		send:     make(chan []byte, 256),
		hub:      hub,
		editorID: editorID,
		subs:     make(map[string]bool),
		ctx:      hub.ctx,
	}
}

// EditorID returns the editor the connection belongs to
func (c *Conn) EditorID() string { return c.editorID }

// ReadPump handles reading from the WebSocket connection
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(4 << 20)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("Failed to parse message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump handles writing to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message so clients can parse each as JSON
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) handleMessage(msg inbound) {
	switch msg.Type {
	case "subscribe":
		if msg.Channel != "" {
			c.hub.Subscribe(c, msg.Channel)
			c.sendAck("subscribed", msg.Channel)
		}
	case "unsubscribe":
		if msg.Channel != "" {
			c.hub.Unsubscribe(c, msg.Channel)
			c.sendAck("unsubscribed", msg.Channel)
		}
	case "ack":
		if msg.Channel != "" && msg.Seq > 0 {
			c.hub.Acknowledge(c, msg.Channel, msg.Seq)
		}
	case "resume":
		if msg.Channel != "" {
			c.hub.Resume(c, msg.Channel, msg.Since)
		}
	case "cmd":
		c.hub.mu.RLock()
		handler := c.hub.cmdHandler
		c.hub.mu.RUnlock()
		if handler != nil {
			handler.HandleCommand(c.ctx, c, msg)
		} else {
			c.hub.log.Warn("Command handler not set")
		}
	case "ping":
		c.sendAck("pong", "")
	default:
		c.hub.log.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

func (c *Conn) sendAck(msgType, channel string) {
	ack := map[string]interface{}{
		"type": "ack",
		"ack":  msgType,
	}
	if channel != "" {
		ack["channel"] = channel
	}
	c.sendJSON(ack)
}

// sendJSON queues a message; a full buffer drops it
func (c *Conn) sendJSON(v interface{}) bool {
	msg, err := json.Marshal(v)
	if err != nil {
		c.hub.log.Error("Failed to encode message", zap.Error(err))
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Acknowledge records an acknowledgment for a sequence number
func (h *Hub) Acknowledge(conn *Conn, channel string, sequence int64) {
	if h.streams == nil {
		return
	}
	if err := h.streams.AcknowledgeSequence(conn.ctx, channel, conn.editorID, sequence); err != nil {
		h.log.Warn("Failed to acknowledge sequence",
			zap.String("channel", channel),
			zap.Int64("sequence", sequence),
			zap.Error(err),
		)
	}
}

// Resume replays events after since, or after the editor's last
// acknowledged sequence when since is nil
func (h *Hub) Resume(conn *Conn, channel string, since *int64) {
	if h.streams == nil {
		h.log.Warn("Streams provider not set, cannot resume")
		return
	}

	var sinceSeq int64
	if since != nil {
		sinceSeq = *since
	} else {
		last, err := h.streams.GetLastSequence(conn.ctx, channel, conn.editorID)
		if err != nil {
			h.log.Error("Failed to read last sequence", zap.String("channel", channel), zap.Error(err))
			return
		}
		sinceSeq = last
	}

	events, err := h.streams.ReplayEvents(conn.ctx, channel, sinceSeq, replayMax)
	if err != nil {
		h.log.Error("Failed to replay events",
			zap.String("channel", channel),
			zap.Int64("since", sinceSeq),
			zap.Error(err),
		)
		return
	}

	for _, event := range events {
		ok := conn.sendJSON(map[string]interface{}{
			"type":    "event",
			"channel": event.Channel,
			"seq":     event.Sequence,
			"data":    event.Event,
		})
		if !ok {
			h.log.Warn("Failed to send replayed event, connection buffer full")
			return
		}
	}

	h.log.Info("Resumed events",
		zap.String("channel", channel),
		zap.String("editor", conn.editorID),
		zap.Int64("since", sinceSeq),
		zap.Int("count", len(events)),
	)
}
