package server

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/services"
	"chat-relay/sink"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// ChatServer upgrades admitted HTTP requests into chat sessions.
type ChatServer struct {
	log                  *slog.Logger
	chatService          services.IChatService
	tokens               *auth.Tokens
	upgrader             websocket.Upgrader
	connectionBufferSize int
	options              SessionOptions
	sessions             sync.WaitGroup
}

func NewChatServer(log *slog.Logger, chatService services.IChatService, tokens *auth.Tokens,
	allowedOrigins []string, connectionBufferSize int, options SessionOptions) *ChatServer {
	return &ChatServer{
		log:         log,
		chatService: chatService,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		connectionBufferSize: connectionBufferSize,
		options:              options,
	}
}

// ServeHTTP admits the caller, then blocks for the whole session lifetime.
// A request without a valid identity is rejected before the upgrade
// and never reaches the broadcast group.
func (s *ChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.Admit(r, s.tokens)
	if err != nil {
		s.log.Warn("Session rejected", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		s.log.Warn("Upgrade failed", "user_id", identity.ID, "error", err)
		return
	}

	s.sessions.Add(1)
	defer s.sessions.Done()

	session := NewSession(s.log, conn, identity, s.chatService,
		sink.NewSessionSink(s.connectionBufferSize), s.options)
	s.log.Info("User connected", "user_id", identity.ID)
	err = session.Run(r.Context())
	switch {
	case err == nil:
		s.log.Info("User disconnected", "user_id", identity.ID)
	case stderrors.Is(err, errors.ErrTransport):
		s.log.Warn("User connection lost", "user_id", identity.ID, "error", err)
	default:
		s.log.Error("Session ended with error", "user_id", identity.ID, "state", session.State(), "error", err)
	}
}

// Wait blocks until every running session has returned from Run.
// Call it after the broadcast group is drained and before closing storage.
func (s *ChatServer) Wait() {
	s.sessions.Wait()
}

// checkOrigin allows same-host requests, the configured origins, or anything with "*".
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || lo.Contains(allowed, "*") || lo.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
