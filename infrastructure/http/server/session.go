package server

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type State int32

const (
	Connecting State = iota
	Admitted
	Rejected
	Closed
)

func (s State) String() string {
	return [...]string{"connecting", "admitted", "rejected", "closed"}[s]
}

type SessionOptions struct {
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	MaxFrameSize int64
}

// pingPeriod must stay below PongTimeout so a healthy peer never hits the read deadline.
func (o SessionOptions) pingPeriod() time.Duration {
	return o.PongTimeout * 9 / 10
}

// Session owns one client connection from admission to close.
// Inbound frames are processed one at a time by the read loop; deliveries
// coming from other sessions are written by a separate writer goroutine,
// which is the only one writing data frames to the connection.
type Session struct {
	log         *slog.Logger
	conn        *websocket.Conn
	identity    chat.Identity
	chatService services.IChatService
	sink        *sink.SessionSink
	replies     chan chat.ErrorFrame
	options     SessionOptions
	now         func() time.Time
	state       atomic.Int32
}

func NewSession(log *slog.Logger, conn *websocket.Conn, identity chat.Identity,
	chatService services.IChatService, sink *sink.SessionSink, options SessionOptions) *Session {
	return &Session{
		log:         log.With("user_id", identity.ID, "sink_id", sink.ID()),
		conn:        conn,
		identity:    identity,
		chatService: chatService,
		sink:        sink,
		replies:     make(chan chat.ErrorFrame, cap(sink.Events)+1),
		options:     options,
		now:         time.Now,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run joins the broadcast group and blocks until the client goes away,
// the transport fails or the group is drained.
// The handle always leaves the group before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if err := s.chatService.Join(s.sink); err != nil {
		s.state.Store(int32(Rejected))
		s.closeWith(websocket.CloseTryAgainLater, "server is shutting down")
		_ = s.conn.Close()
		return err
	}
	s.state.Store(int32(Admitted))
	defer func() {
		s.chatService.Leave(s.sink)
		s.sink.Close()
		_ = s.conn.Close()
		s.state.Store(int32(Closed))
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	err := s.readLoop(ctx)
	cancel()
	<-writerDone
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	if s.options.MaxFrameSize > 0 {
		s.conn.SetReadLimit(s.options.MaxFrameSize)
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("%w: %v", errors.ErrTransport, err)
		}
		s.handle(ctx, raw)
	}
}

// handle runs the send pipeline and applies the failure policy.
// It never ends the session.
func (s *Session) handle(ctx context.Context, raw []byte) {
	// A failing pipeline must not end the session
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Message pipeline panicked", "panic", fmt.Sprint(r))
		}
	}()
	err := s.chatService.Send(ctx, s.identity, raw)
	if err == nil {
		return
	}
	switch Classify(err) {
	case ReplyError:
		var notFound errors.ReceiverNotFoundError
		if stderrors.As(err, &notFound) {
			s.reply(chat.NewReceiverNotFoundFrame(notFound.ReceiverID))
			return
		}
		s.log.Error("Error frame without receiver", "error", err)
	default:
		s.log.Error("Message dropped", "error", err)
	}
}

func (s *Session) reply(frame chat.ErrorFrame) {
	select {
	case s.replies <- frame:
	default:
		s.log.Warn("Reply queue full, error frame dropped", "error", frame.Error)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	var pings <-chan time.Time
	if period := s.options.pingPeriod(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.closeWith(websocket.CloseNormalClosure, "")
			_ = s.conn.Close()
			return
		case <-s.sink.Done():
			s.closeWith(websocket.CloseGoingAway, "server is shutting down")
			_ = s.conn.Close()
			return
		case evt := <-s.sink.Events:
			// The date is the delivery time seen by this session
			frame := chat.NewDeliveryFrame(evt, s.identity.ID, s.now())
			if err := s.write(frame); err != nil {
				s.abort(err)
				return
			}
		case frame := <-s.replies:
			if err := s.write(frame); err != nil {
				s.abort(err)
				return
			}
		case <-pings:
			_ = s.conn.SetWriteDeadline(s.writeDeadline())
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.abort(err)
				return
			}
		}
	}
}

func (s *Session) write(v any) error {
	_ = s.conn.SetWriteDeadline(s.writeDeadline())
	return s.conn.WriteJSON(v)
}

// abort closes the connection so that the blocked read loop returns.
func (s *Session) abort(err error) {
	s.log.Warn("Failed to push frame, closing session", "error", err)
	_ = s.conn.Close()
}

func (s *Session) closeWith(code int, text string) {
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), s.writeDeadline())
}

// writeDeadline returns the zero time, meaning no deadline, when no write timeout is configured.
func (s *Session) writeDeadline() time.Time {
	if s.options.WriteTimeout <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.options.WriteTimeout)
}

func (s *Session) extendReadDeadline() {
	if s.options.PongTimeout > 0 {
		_ = s.conn.SetReadDeadline(s.now().Add(s.options.PongTimeout))
	}
}
