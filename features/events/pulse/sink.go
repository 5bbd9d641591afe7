package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parcelops/resolve/runtime/events"
)

type (
	// SinkOptions configures the Pulse-backed event sink.
	SinkOptions struct {
		// Client is the Pulse client used to publish events. Required.
		Client Client
		// StreamID derives the target Pulse stream from an event. Defaults
		// to "context/<ContextID>".
		StreamID func(events.ConversationEvent) (string, error)
		// MarshalEvent overrides event serialization (primarily for tests).
		MarshalEvent func(events.ConversationEvent) ([]byte, error)
	}

	// Sink publishes conversation events into Pulse streams, one stream per
	// resolution context. Thread-safe for concurrent Send operations.
	Sink struct {
		client   Client
		streamID func(events.ConversationEvent) (string, error)
		marshal  func(events.ConversationEvent) ([]byte, error)
	}
)

// NewSink constructs a Pulse-backed conversation event sink.
func NewSink(opts SinkOptions) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	s := &Sink{
		client:   opts.Client,
		streamID: defaultStreamID,
		marshal:  defaultMarshal,
	}
	if opts.StreamID != nil {
		s.streamID = opts.StreamID
	}
	if opts.MarshalEvent != nil {
		s.marshal = opts.MarshalEvent
	}
	return s, nil
}

// Send publishes the event to the context's Pulse stream.
func (s *Sink) Send(ctx context.Context, event events.ConversationEvent) error {
	streamID, err := s.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	payload, err := s.marshal(event)
	if err != nil {
		return err
	}
	if _, err := handle.Add(ctx, event.Kind, payload); err != nil {
		return err
	}
	return nil
}

// Close delegates to the underlying Pulse client.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// defaultStreamID derives the Pulse stream name from the event's context ID.
func defaultStreamID(event events.ConversationEvent) (string, error) {
	if event.ContextID == "" {
		return "", errors.New("conversation event missing context id")
	}
	return fmt.Sprintf("context/%s", event.ContextID), nil
}

func defaultMarshal(event events.ConversationEvent) ([]byte, error) {
	return json.Marshal(event)
}
