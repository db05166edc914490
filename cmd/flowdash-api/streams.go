package main

import (
	"context"

	"flowdash/internal/pubsub"
	"flowdash/internal/ws"
)

// wsStreamsAdapter adapts pubsub.Streams to ws.StreamsProvider
type wsStreamsAdapter struct {
	streams *pubsub.Streams
}

func (a *wsStreamsAdapter) GetLastSequence(ctx context.Context, channel, connectionID string) (int64, error) {
	return a.streams.GetLastSequence(ctx, channel, connectionID)
}

func (a *wsStreamsAdapter) AcknowledgeSequence(ctx context.Context, channel, connectionID string, sequence int64) error {
	return a.streams.AcknowledgeSequence(ctx, channel, connectionID, sequence)
}

func (a *wsStreamsAdapter) ReplayEvents(ctx context.Context, channel string, sinceSeq int64, limit int64) ([]ws.StreamEvent, error) {
	events, err := a.streams.ReplayEvents(ctx, channel, sinceSeq, limit)
	if err != nil {
		return nil, err
	}

	wsEvents := make([]ws.StreamEvent, len(events))
	for i, e := range events {
		wsEvents[i] = ws.StreamEvent{
			Channel:   e.Channel,
			Sequence:  e.Sequence,
			Event:     e.Event,
			Timestamp: e.Timestamp,
		}
	}
	return wsEvents, nil
}
