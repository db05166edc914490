package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamEvent is one event kept in a channel's history
type StreamEvent struct {
	Channel   string
	Sequence  int64
	Event     map[string]interface{}
	Timestamp time.Time
}

// Streams keeps a bounded, sequenced history of each channel in Redis
// Streams so reconnecting editors can catch up.
type Streams struct {
	rdb    *redis.Client
	log    *zap.Logger
	prefix string
	maxLen int64
}

// NewStreams creates a history keeping roughly maxLen events per channel
func NewStreams(rdb *redis.Client, prefix string, maxLen int64, log *zap.Logger) *Streams {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Streams{
		rdb:    rdb,
		log:    log,
		prefix: prefix,
		maxLen: maxLen,
	}
}

func (s *Streams) streamKey(channel string) string { return s.prefix + "stream:" + channel }
func (s *Streams) seqKey(channel string) string    { return s.prefix + "seq:" + channel }
func (s *Streams) ackKey(channel, connectionID string) string {
	return s.prefix + "ack:" + channel + ":" + connectionID
}

// PublishEvent appends an event to the channel history and returns its
// sequence number
func (s *Streams) PublishEvent(ctx context.Context, channel string, event map[string]interface{}) (int64, error) {
	seq, err := s.rdb.Incr(ctx, s.seqKey(channel)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey(channel),
		MaxLen: s.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"seq":       seq,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"data":      string(eventData),
		},
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add to stream: %w", err)
	}

	s.log.Debug("Published event to stream",
		zap.String("channel", channel),
		zap.Int64("sequence", seq),
		zap.String("stream_id", id),
	)
	return seq, nil
}

// GetLastSequence returns the last sequence a connection acknowledged on a
// channel, or 0
func (s *Streams) GetLastSequence(ctx context.Context, channel, connectionID string) (int64, error) {
	seq, err := s.rdb.Get(ctx, s.ackKey(channel, connectionID)).Int64()
	if err == redis.Nil {
		return 0, nil // No acknowledgment yet
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last sequence: %w", err)
	}
	return seq, nil
}

// AcknowledgeSequence records the last sequence a connection processed
func (s *Streams) AcknowledgeSequence(ctx context.Context, channel, connectionID string, sequence int64) error {
	if err := s.rdb.Set(ctx, s.ackKey(channel, connectionID), sequence, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge sequence: %w", err)
	}
	return nil
}

// ReplayEvents returns up to limit events with a sequence above sinceSeq, in
// order
func (s *Streams) ReplayEvents(ctx context.Context, channel string, sinceSeq, limit int64) ([]StreamEvent, error) {
	msgs, err := s.rdb.XRange(ctx, s.streamKey(channel), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	events := []StreamEvent{}
	for _, msg := range msgs {
		event, ok := s.decode(channel, msg)
		if !ok || event.Sequence <= sinceSeq {
			continue
		}
		events = append(events, event)
		if limit > 0 && int64(len(events)) >= limit {
			break
		}
	}
	return events, nil
}

func (s *Streams) decode(channel string, msg redis.XMessage) (StreamEvent, bool) {
	data, _ := msg.Values["data"].(string)
	seqStr, _ := msg.Values["seq"].(string)
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if data == "" || err != nil {
		return StreamEvent{}, false
	}

	var event map[string]interface{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		s.log.Warn("Failed to unmarshal event", zap.String("stream_id", msg.ID), zap.Error(err))
		return StreamEvent{}, false
	}

	timestampStr, _ := msg.Values["timestamp"].(string)
	timestamp, err := time.Parse(time.RFC3339Nano, timestampStr)
	if err != nil {
		timestamp = time.Time{}
	}

	return StreamEvent{
		Channel:   channel,
		Sequence:  seq,
		Event:     event,
		Timestamp: timestamp,
	}, true
}
