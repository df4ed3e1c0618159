package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const e2ePassword = "E2ePassw0rd!Strong"

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// Account is a registered user able to open a chat session.
type Account struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping end-to-end suite")
	}
}

// Step prints a colorized header for a scenario step
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Register creates a fresh account with a unique email
func (s *BaseRelaySuite) Register(name string) Account {
	body, err := json.Marshal(map[string]string{
		"email":    fmt.Sprintf("%s-%s@e2e.test", name, uuid.NewString()[:8]),
		"password": e2ePassword,
	})
	s.Require().NoError(err)

	resp, err := http.Post(fmt.Sprintf("http://%s/auth/register", s.Config.RelayAddr),
		"application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var account Account
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&account))
	return account
}

// Dial opens a chat session for the account
func (s *BaseRelaySuite) Dial(account Account) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws", s.Config.RelayAddr)
	header := http.Header{"Authorization": {"Bearer " + account.Token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err, "Failed to open session on "+url)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *BaseRelaySuite) Send(conn *websocket.Conn, frame any) {
	s.debug("SEND", frame)
	s.Require().NoError(conn.WriteJSON(frame))
}

func (s *BaseRelaySuite) Receive(conn *websocket.Conn) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var frame map[string]any
	s.Require().NoError(conn.ReadJSON(&frame))
	s.debug("RECEIVE", frame)
	return frame
}

// Health queries the gRPC health service, skipped when HEALTH_ADDR is unset
func (s *BaseRelaySuite) Health() healthpb.HealthCheckResponse_ServingStatus {
	if s.Config.HealthAddr == "" {
		s.T().Skip("HEALTH_ADDR not set")
	}
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)
	return resp.GetStatus()
}

func (s *BaseRelaySuite) debug(direction string, frame any) {
	if !s.Config.DebugJSON {
		return
	}
	raw, _ := json.MarshalIndent(frame, "", "  ")
	s.T().Logf("%s:\n%s", direction, raw)
}
