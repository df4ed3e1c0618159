package sink

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var _ contract.EventSink = (*SessionSink)(nil)

var ErrSinkFull = fmt.Errorf("session sink is full")

// SessionSink is the delivery address of one session.
// Consume is called by the broadcast group and never blocks:
// when the buffer is full the event is dropped for this session only.
type SessionSink struct {
	id     string
	Events chan chat.DeliveryEvent
	done   chan struct{}
	once   sync.Once
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{
		id:     uuid.NewString(),
		Events: make(chan chat.DeliveryEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *SessionSink) ID() string { return s.id }

// Consume redirects the event to the owning session.
// The session writer will take it from now.
func (s *SessionSink) Consume(ctx context.Context, e chat.DeliveryEvent) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSinkFull
	}
}

// Done is closed once the sink is released.
func (s *SessionSink) Done() <-chan struct{} {
	return s.done
}

func (s *SessionSink) Close() {
	s.once.Do(func() { close(s.done) })
}
