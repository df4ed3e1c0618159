package main

import (
	"bufio"
	"bytes"
	"chat-relay/domain/chat"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Email         string `env:"CHAT_EMAIL,required=true"`
	Password      string `env:"CHAT_PASSWORD,required=true"`
	ReceiverID    string `env:"CHAT_RECEIVER_ID,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in, opens a chat session and relays stdin lines to the configured receiver.
// Every frame pushed by the relay is printed, including our own messages.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := login(config.ServerAddress, config.Email, config.Password)
	if err != nil {
		return exitRuntime, err
	}

	u := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(),
		http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()
	log.Info(fmt.Sprintf(">>> Connected to %s! Writing to %s (Ctrl+C to quit)...",
		config.ServerAddress, config.ReceiverID))

	go sendLines(ctx, conn, os.Stdin, config.ReceiverID, log)

	errChan := make(chan error, 1)
	go func() { errChan <- receive(conn, os.Stdout) }()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return exitOK, nil
	case err := <-errChan:
		if err != nil {
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		}
		return exitOK, nil
	}
}

func login(address, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(fmt.Sprintf("http://%s/auth/login", address), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login refused with status %d", resp.StatusCode)
	}
	var account struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return "", err
	}
	return account.Token, nil
}

func sendLines(ctx context.Context, conn *websocket.Conn, in io.Reader, receiverID string, log *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() && ctx.Err() == nil {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := conn.WriteJSON(outgoing(line, receiverID)); err != nil {
			log.Error("Failed to send message", "error", err)
			return
		}
	}
}

// outgoing builds the envelope for a typed line.
func outgoing(line, receiverID string) map[string]any {
	return map[string]any{"message": line, "receiver_id": receiverID}
}

// receive prints frames until the relay closes the session.
func receive(conn *websocket.Conn, out io.Writer) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, format(raw))
	}
}

// format renders a relay frame as a single terminal line.
func format(raw []byte) string {
	var failure chat.ErrorFrame
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Error != "" {
		return "!! " + failure.Error
	}
	var frame chat.DeliveryFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return string(raw)
	}
	direction := "<-"
	if frame.Sent {
		direction = "->"
	}
	at := frame.Date
	if t, err := time.Parse(time.RFC3339Nano, frame.Date); err == nil {
		at = t.Local().Format(time.TimeOnly)
	}
	line := fmt.Sprintf("[%s] %s %s", at, direction, frame.Message)
	if frame.FileURL != nil {
		line += " (file: " + *frame.FileURL + ")"
	}
	if frame.ImageURL != nil {
		line += " (image: " + *frame.ImageURL + ")"
	}
	return line
}
