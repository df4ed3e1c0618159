package chat

import (
	"bytes"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"strconv"
)

// MissingReceiverID is the receiver reported when receiver_id is absent or null.
const MissingReceiverID = "null"

// Envelope is one inbound client message.
// Only the receiver is interpreted at parse time; message and attachments
// are checked once the receiver is known to exist.
type Envelope struct {
	Message    json.RawMessage `json:"message"`
	ReceiverID json.RawMessage `json:"receiver_id"`
	File       json.RawMessage `json:"file"`
	Image      json.RawMessage `json:"image"`
}

// ParseEnvelope decodes a raw client frame.
// It fails, wrapping errors.ErrParse, when the frame is not a JSON object
// or when receiver_id is neither a string, a number nor null.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errors.ErrParse, err)
	}
	if _, err := envelope.Receiver(); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}

// Receiver normalizes the opaque receiver_id into the lookup key.
// JSON strings are unquoted, JSON numbers keep their literal text,
// an absent or null id gives MissingReceiverID.
func (e Envelope) Receiver() (string, error) {
	raw := bytes.TrimSpace(e.ReceiverID)
	if isNull(raw) {
		return MissingReceiverID, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrParse, err)
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrParse, err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: receiver_id must be a string or a number, got %s", errors.ErrParse, raw)
	}
}

// Content returns the message text, empty when absent or null.
func (e Envelope) Content() (string, error) {
	if isNull(bytes.TrimSpace(e.Message)) {
		return "", nil
	}
	var content string
	if err := json.Unmarshal(e.Message, &content); err != nil {
		return "", fmt.Errorf("%w: message: %v", errors.ErrParse, err)
	}
	return content, nil
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
