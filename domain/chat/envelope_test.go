package chat

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantErr      bool
		wantReceiver string
	}{
		{"String receiver", `{"message":"hi","receiver_id":"b-42"}`, false, "b-42"},
		{"Numeric receiver", `{"message":"hi","receiver_id":9999}`, false, "9999"},
		{"Missing receiver", `{"message":"hi"}`, false, MissingReceiverID},
		{"Null receiver", `{"message":"hi","receiver_id":null}`, false, MissingReceiverID},
		{"Attachments are not checked yet", `{"receiver_id":9999,"file":{"name":"a"},"image":{"data":1}}`, false, "9999"},
		{"Non string message is not checked yet", `{"message":12,"receiver_id":"b"}`, false, "b"},
		{"Not JSON", `hello`, true, ""},
		{"Not an object", `[1,2]`, true, ""},
		{"Object receiver", `{"message":"hi","receiver_id":{"id":1}}`, true, ""},
		{"Boolean receiver", `{"message":"hi","receiver_id":true}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			envelope, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrParse)
				return
			}
			req.NoError(err)
			receiver, err := envelope.Receiver()
			req.NoError(err)
			req.Equal(tt.wantReceiver, receiver)
		})
	}
}

func TestEnvelope_Content(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"Text", `{"message":"hi","receiver_id":"b"}`, "hi", false},
		{"Missing message defaults to empty", `{"receiver_id":"b"}`, "", false},
		{"Null message defaults to empty", `{"message":null,"receiver_id":"b"}`, "", false},
		{"Number", `{"message":12,"receiver_id":"b"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			envelope, err := ParseEnvelope([]byte(tt.raw))
			req.NoError(err)
			content, err := envelope.Content()
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrParse)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, content)
		})
	}
}

func TestNewDeliveryFrame_SentOnlyForSender(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	url := "/media/chat_images/i.png"
	evt := DeliveryEvent{Message: "hi", SenderID: "alice", ImageURL: &url}

	own := NewDeliveryFrame(evt, "alice", at)
	other := NewDeliveryFrame(evt, "bob", at)

	req.True(own.Sent)
	req.False(other.Sent)
	req.Equal("hi", other.Message)
	req.Equal("2026-03-01T10:00:00Z", own.Date)
	req.Nil(own.FileURL)
	req.Equal(&url, other.ImageURL)
}

func TestNewReceiverNotFoundFrame(t *testing.T) {
	require.Equal(t, "User with id 9999 does not exist.", NewReceiverNotFoundFrame("9999").Error)
}
