package workers

import (
	"bytes"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// freeAddress reserves a local port and releases it for the worker under test.
func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func runWorker(t *testing.T, run func(ctx context.Context) error) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestHTTPServerWorker_Serves_Until_Canceled(t *testing.T) {
	req := require.New(t)
	addr := freeAddress(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	worker := NewHTTPServerWorker(slog.Default(), addr, handler)

	cancel, done := runWorker(t, worker.Run)

	// The server answers once it is listening
	req.Eventually(func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("HTTP worker did not stop")
	}
}

func TestHTTPServerWorker_Fails_On_Busy_Port(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	worker := NewHTTPServerWorker(slog.Default(), l.Addr().String(), http.NotFoundHandler())
	require.Error(t, worker.Run(context.Background()))
}

func TestHealthWorker_Reports_Serving(t *testing.T) {
	req := require.New(t)
	addr := freeAddress(t)
	worker := NewHealthWorker(slog.Default(), addr)
	cancel, done := runWorker(t, worker.Run)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	req.Eventually(func() bool {
		ctx, cancelCall := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancelCall()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("health worker did not stop")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTelemetryWorker_Logs_Sessions(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	group := mocks.NewMockIBroadcastGroup(ctrl)
	group.EXPECT().Len().Return(3).MinTimes(1)

	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, nil))
	worker := NewTelemetryWorker(log, group, 20*time.Millisecond)
	cancel, done := runWorker(t, worker.Run)

	req.Eventually(func() bool {
		return bytes.Contains([]byte(out.String()), []byte("sessions=3"))
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
