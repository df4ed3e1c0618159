package server

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const testMediaURL = "/media/"

type relayFixture struct {
	server    *httptest.Server
	chat      *ChatServer
	group     *runtime.BroadcastGroup
	users     *storage.UserRepository
	tokens    *auth.Tokens
	mediaRoot string
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	messages storage.IMessageRepository
}

// withMessageRepository replaces the badger backed message store.
func withMessageRepository(repo storage.IMessageRepository) fixtureOption {
	return func(c *fixtureConfig) { c.messages = repo }
}

func newRelayFixture(t *testing.T, opts ...fixtureOption) relayFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)

	mediaRoot := t.TempDir()
	blobs, err := storage.NewBlobStore(mediaRoot, log)
	require.NoError(t, err)

	cfg := fixtureConfig{messages: storage.NewMessageRepository(db, blobs, log)}
	for _, opt := range opts {
		opt(&cfg)
	}

	users := storage.NewUserRepository(db)
	group := runtime.NewBroadcastGroup(log)
	tokens := auth.NewTokens("test-secret", time.Hour)
	chatService := services.NewChatService(log, users, cfg.messages, group, testMediaURL)
	authService := services.NewAuthService(users, tokens)

	chatServer := NewChatServer(log, chatService, tokens, []string{"*"}, 16, SessionOptions{
		WriteTimeout: 2 * time.Second,
		MaxFrameSize: 1 << 20,
	})
	server := httptest.NewServer(NewRouter(chatServer, NewAuthServer(log, authService), testMediaURL, mediaRoot))

	// Close order matters: sessions first, then the store they write to
	t.Cleanup(func() {
		group.Drain()
		server.Close()
		chatServer.Wait()
		_ = db.Close()
	})

	return relayFixture{server: server, chat: chatServer, group: group, users: users, tokens: tokens, mediaRoot: mediaRoot}
}

func (f relayFixture) createUser(t *testing.T, email string) string {
	t.Helper()
	id, err := f.users.CreateUser(email, "not-a-real-hash")
	require.NoError(t, err)
	return id
}

func (f relayFixture) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
}

// connect opens a session for userID and waits until it has joined the group.
func (f relayFixture) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	before := f.group.Len()
	token, err := f.tokens.GenerateToken(userID, []string{"user"})
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return f.group.Len() == before+1 },
		2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// requireSilent asserts nothing arrives within a short window.
// The connection is unusable for reads afterwards.
func requireSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var frame map[string]any
	err := conn.ReadJSON(&frame)
	require.Error(t, err, "unexpected frame %v", frame)
}
