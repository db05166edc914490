package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EditorChannel carries editor state changes
const EditorChannel = "editor"

// Bus fans events out to Redis pub/sub, the channel history and the
// websocket hub. Each sink is optional.
type Bus struct {
	rdb     *redis.Client
	prefix  string
	log     *zap.Logger
	wsHub   WSHub
	streams *Streams
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

// New creates a bus. rdb may be nil, in which case events only reach the hub.
func New(rdb *redis.Client, prefix string, log *zap.Logger) *Bus {
	b := &Bus{
		rdb:    rdb,
		prefix: prefix,
		log:    log,
	}
	if rdb != nil {
		b.streams = NewStreams(rdb, prefix, 1000, log)
	}
	return b
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the history provider, or nil without Redis
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// PublishEditor publishes an event to the editor channel
func (b *Bus) PublishEditor(ctx context.Context, event map[string]interface{}) error {
	return b.Publish(ctx, EditorChannel, event)
}

// Publish publishes an event to a channel. The hub always receives the
// event; a Redis failure is returned after local delivery.
func (b *Bus) Publish(ctx context.Context, channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var (
		seq        int64
		publishErr error
	)
	if b.rdb != nil {
		if err := b.rdb.Publish(ctx, b.prefix+channel, data).Err(); err != nil {
			b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
			publishErr = fmt.Errorf("failed to publish event: %w", err)
		} else if seq, err = b.streams.PublishEvent(ctx, channel, event); err != nil {
			// Live subscribers still get the event
			b.log.Warn("Failed to publish to stream", zap.String("channel", channel), zap.Error(err))
		}
	}

	if b.wsHub != nil {
		eventWithSeq := make(map[string]interface{}, len(event)+1)
		for k, v := range event {
			eventWithSeq[k] = v
		}
		if seq > 0 {
			eventWithSeq["seq"] = seq
		}
		b.wsHub.Publish(channel, eventWithSeq)
	}

	if publishErr != nil {
		return publishErr
	}
	b.log.Debug("Published event", zap.String("channel", channel), zap.Int64("seq", seq), zap.ByteString("event", data))
	return nil
}
