package e2e

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testChatSuite struct {
	BaseRelaySuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestHealth() {
	s.Equal(healthpb.HealthCheckResponse_SERVING, s.Health())
}

func (s *testChatSuite) TestFullChatFlow() {
	alice := s.Register("alice")
	bob := s.Register("bob")
	aliceConn := s.Dial(alice)
	bobConn := s.Dial(bob)

	s.Run("Step 1: text message framed per recipient", func() {
		s.Step("alice writes to bob")
		s.Send(aliceConn, map[string]any{"message": "hello bob", "receiver_id": bob.UserID})

		sent := s.Receive(aliceConn)
		received := s.Receive(bobConn)
		s.Equal("hello bob", sent["message"])
		s.Equal(true, sent["sent"])
		s.Equal(false, received["sent"])
	})

	s.Run("Step 2: unknown receiver only answers the sender", func() {
		s.Step("alice writes to nobody")
		s.Send(aliceConn, map[string]any{"message": "anyone?", "receiver_id": 9999})

		s.Equal(map[string]any{"error": "User with id 9999 does not exist."}, s.Receive(aliceConn))
	})

	s.Run("Step 3: image attachment", func() {
		s.Step("bob sends an image")
		s.Send(bobConn, map[string]any{
			"message":     "",
			"receiver_id": alice.UserID,
			"image": map[string]string{
				"name": fmt.Sprintf("e2e-%s.png", alice.UserID[:8]),
				"data": base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n")),
			},
		})

		received := s.Receive(aliceConn)
		sent := s.Receive(bobConn)
		s.NotNil(received["image_url"])
		s.Equal(received["image_url"], sent["image_url"])
		s.Nil(received["file_url"])
	})
}
