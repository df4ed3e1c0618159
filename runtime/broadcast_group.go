package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Ensure *BroadcastGroup implements the contract.IBroadcastGroup interface at compile time.
var _ contract.IBroadcastGroup = (*BroadcastGroup)(nil)

// BroadcastGroup holds the channel handles of every live session.
// A handle is present if and only if its session is admitted and not yet closed.
//
// BroadcastGroup is safe for concurrent use by multiple goroutines.
type BroadcastGroup struct {
	mu      sync.RWMutex
	log     *slog.Logger
	sinks   map[string]contract.EventSink // map handle ID -> Sink
	drained bool
}

func NewBroadcastGroup(log *slog.Logger) *BroadcastGroup {
	return &BroadcastGroup{
		log:   log,
		sinks: make(map[string]contract.EventSink),
	}
}

// Join registers a session handle.
// It fails only once the group has been drained for shutdown.
func (g *BroadcastGroup) Join(sink contract.EventSink) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.drained {
		return errors.ErrGroupClosed
	}
	g.sinks[sink.ID()] = sink
	return nil
}

// Leave removes a session handle. Unknown handles are ignored.
func (g *BroadcastGroup) Leave(sink contract.EventSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sinks, sink.ID())
}

func (g *BroadcastGroup) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sinks)
}

// SendAll delivers the event to every registered handle.
// Delivery is best-effort: a failing or panicking handle is logged and skipped,
// the remaining handles are still served and nothing is reported to the caller.
func (g *BroadcastGroup) SendAll(ctx context.Context, e chat.DeliveryEvent) {
	for _, sink := range g.snapshot() {
		g.deliver(ctx, sink, e)
	}
}

// Drain closes every handle and refuses further joins.
func (g *BroadcastGroup) Drain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drained = true
	for id, sink := range g.sinks {
		sink.Close()
		delete(g.sinks, id)
	}
	g.log.Info("Broadcast group drained")
}

// snapshot copies the handles so that slow consumers never run under the lock.
func (g *BroadcastGroup) snapshot() []contract.EventSink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(g.sinks))
	for _, sink := range g.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (g *BroadcastGroup) deliver(ctx context.Context, sink contract.EventSink, e chat.DeliveryEvent) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Sink panicked during delivery", "sink_id", sink.ID(), "panic", fmt.Sprint(r))
		}
	}()
	if err := sink.Consume(ctx, e); err != nil {
		g.log.Warn("Delivery dropped", "sink_id", sink.ID(), "error", err)
	}
}
