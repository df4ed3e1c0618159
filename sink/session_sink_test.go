package sink

import (
	"chat-relay/domain/chat"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionSink_Consume(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)
	ctx := context.Background()

	// Given an empty buffer of one
	req.NoError(s.Consume(ctx, chat.DeliveryEvent{Message: "first"}))

	// When the buffer is full the event is dropped without blocking
	req.ErrorIs(s.Consume(ctx, chat.DeliveryEvent{Message: "second"}), ErrSinkFull)

	// Then only the first event is queued
	req.Len(s.Events, 1)
	req.Equal("first", (<-s.Events).Message)
}

func TestSessionSink_Close(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)

	s.Close()
	s.Close()

	// A released sink silently ignores new events
	req.NoError(s.Consume(context.Background(), chat.DeliveryEvent{Message: "late"}))
	req.Empty(s.Events)
	_, open := <-s.Done()
	req.False(open)
}

func TestSessionSink_UniqueIDs(t *testing.T) {
	require.NotEqual(t, NewSessionSink(1).ID(), NewSessionSink(1).ID())
}
