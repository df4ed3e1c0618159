package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const mediaURL = "/media/"

type chatServiceFixture struct {
	service  *ChatService
	users    *mocks.MockIUserRepository
	messages *mocks.MockIMessageRepository
	group    *mocks.MockIBroadcastGroup
}

func newChatServiceFixture(t *testing.T) chatServiceFixture {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	group := mocks.NewMockIBroadcastGroup(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return chatServiceFixture{
		service:  NewChatService(log, users, messages, group, mediaURL),
		users:    users,
		messages: messages,
		group:    group,
	}
}

var (
	alice = chat.Identity{ID: "alice", Email: "alice@example.com"}
	bob   = chat.Identity{ID: "bob", Email: "bob@example.com"}
)

func storedFrom(cmd chat.SaveMessageCommand) chat.Message {
	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   cmd.Sender.ID,
		ReceiverID: cmd.Receiver.ID,
		Content:    cmd.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if cmd.File != nil {
		message.File = &chat.StoredBlob{Name: "chat_files/" + cmd.File.Name}
	}
	if cmd.Image != nil {
		message.Image = &chat.StoredBlob{Name: "chat_images/" + cmd.Image.Name}
	}
	return message
}

func TestChatService_Send_Persists_Once_And_Broadcasts_Once(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)
	ctx := context.Background()

	// Given bob exists
	f.users.EXPECT().Resolve("bob").Return(bob, true, nil).Times(1)
	// Then exactly one message is stored
	f.messages.EXPECT().StoreMessage(gomock.Any()).
		DoAndReturn(func(cmd chat.SaveMessageCommand) (chat.Message, error) {
			req.Equal(alice, cmd.Sender)
			req.Equal(bob, cmd.Receiver)
			req.Equal("hi", cmd.Content)
			req.Nil(cmd.File)
			req.Nil(cmd.Image)
			return storedFrom(cmd), nil
		}).Times(1)
	// And exactly one broadcast happens
	f.group.EXPECT().SendAll(ctx, chat.DeliveryEvent{Message: "hi", SenderID: "alice"}).Times(1)

	// When alice sends a message to bob
	err := f.service.Send(ctx, alice, []byte(`{"message":"hi","receiver_id":"bob"}`))

	req.NoError(err)
}

func TestChatService_Send_Unknown_Receiver(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	// Given 9999 does not exist
	f.users.EXPECT().Resolve("9999").Return(chat.Identity{}, false, nil).Times(1)
	// Then nothing is stored nor broadcast
	f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)
	f.group.EXPECT().SendAll(gomock.Any(), gomock.Any()).Times(0)

	err := f.service.Send(context.Background(), alice, []byte(`{"message":"hi","receiver_id":9999}`))

	req.ErrorIs(err, errors.ErrReceiverNotFound)
	var notFound errors.ReceiverNotFoundError
	req.ErrorAs(err, &notFound)
	req.Equal("9999", notFound.ReceiverID)
}

func TestChatService_Send_Unknown_Receiver_Wins_Over_Bad_Content(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"File without data", `{"receiver_id":9999,"file":{"name":"a.txt"}}`},
		{"Image without name", `{"receiver_id":9999,"image":{"data":"YQ=="}}`},
		{"Name of the wrong type", `{"receiver_id":9999,"file":{"name":1,"data":"YQ=="}}`},
		{"Invalid base64", `{"receiver_id":9999,"file":{"name":"a.txt","data":"%%%"}}`},
		{"Non string message", `{"message":12,"receiver_id":9999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newChatServiceFixture(t)

			// Given 9999 does not exist
			f.users.EXPECT().Resolve("9999").Return(chat.Identity{}, false, nil).Times(1)
			f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)
			f.group.EXPECT().SendAll(gomock.Any(), gomock.Any()).Times(0)

			// When the rest of the envelope is also broken
			err := f.service.Send(context.Background(), alice, []byte(tt.raw))

			// Then the missing receiver is what gets reported
			var notFound errors.ReceiverNotFoundError
			req.ErrorAs(err, &notFound)
			req.Equal("9999", notFound.ReceiverID)
		})
	}
}

func TestChatService_Send_Missing_Receiver(t *testing.T) {
	for _, raw := range []string{`{"message":"hi"}`, `{"message":"hi","receiver_id":null}`} {
		req := require.New(t)
		f := newChatServiceFixture(t)

		// Then the directory is not even queried
		f.users.EXPECT().Resolve(gomock.Any()).Times(0)
		f.group.EXPECT().SendAll(gomock.Any(), gomock.Any()).Times(0)

		err := f.service.Send(context.Background(), alice, []byte(raw))

		var notFound errors.ReceiverNotFoundError
		req.ErrorAs(err, &notFound)
		req.Equal(chat.MissingReceiverID, notFound.ReceiverID)
	}
}

func TestChatService_Send_With_Attachments(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)
	ctx := context.Background()
	imageBytes := []byte("GIF89a-image")
	raw := fmt.Sprintf(`{"message":"look","receiver_id":"bob","image":{"name":"cat.gif","data":%q},"file":{"name":"a.txt","data":%q}}`,
		base64.StdEncoding.EncodeToString(imageBytes), base64.StdEncoding.EncodeToString([]byte("text")))

	f.users.EXPECT().Resolve("bob").Return(bob, true, nil)
	f.messages.EXPECT().StoreMessage(gomock.Any()).
		DoAndReturn(func(cmd chat.SaveMessageCommand) (chat.Message, error) {
			req.Equal(&chat.Blob{Name: "cat.gif", Data: imageBytes}, cmd.Image)
			req.Equal(&chat.Blob{Name: "a.txt", Data: []byte("text")}, cmd.File)
			return storedFrom(cmd), nil
		})
	// Then URLs are derived from the stored blob names
	f.group.EXPECT().SendAll(ctx, chat.DeliveryEvent{
		Message:  "look",
		SenderID: "alice",
		FileURL:  lo.ToPtr("/media/chat_files/a.txt"),
		ImageURL: lo.ToPtr("/media/chat_images/cat.gif"),
	}).Times(1)

	req.NoError(f.service.Send(ctx, alice, []byte(raw)))
}

func TestChatService_Send_Failures_Stop_The_Pipeline(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		setup   func(f chatServiceFixture)
		wantErr error
	}{
		{
			name:    "Malformed envelope",
			raw:     `not json`,
			setup:   func(f chatServiceFixture) {},
			wantErr: errors.ErrParse,
		},
		{
			name: "Malformed attachment",
			raw:  `{"message":"hi","receiver_id":"bob","file":{"name":"a","data":"%%%"}}`,
			setup: func(f chatServiceFixture) {
				f.users.EXPECT().Resolve("bob").Return(bob, true, nil)
			},
			wantErr: errors.ErrDecode,
		},
		{
			name: "Attachment without data",
			raw:  `{"message":"hi","receiver_id":"bob","image":{"name":"i.png"}}`,
			setup: func(f chatServiceFixture) {
				f.users.EXPECT().Resolve("bob").Return(bob, true, nil)
			},
			wantErr: errors.ErrDecode,
		},
		{
			name: "Non string message",
			raw:  `{"message":["hi"],"receiver_id":"bob"}`,
			setup: func(f chatServiceFixture) {
				f.users.EXPECT().Resolve("bob").Return(bob, true, nil)
			},
			wantErr: errors.ErrParse,
		},
		{
			name: "Directory unavailable",
			raw:  `{"message":"hi","receiver_id":"bob"}`,
			setup: func(f chatServiceFixture) {
				f.users.EXPECT().Resolve("bob").Return(chat.Identity{}, false, fmt.Errorf("db closed"))
			},
			wantErr: errors.ErrPersistence,
		},
		{
			name: "Store unavailable",
			raw:  `{"message":"hi","receiver_id":"bob"}`,
			setup: func(f chatServiceFixture) {
				f.users.EXPECT().Resolve("bob").Return(bob, true, nil)
				f.messages.EXPECT().StoreMessage(gomock.Any()).Return(chat.Message{}, fmt.Errorf("disk full"))
			},
			wantErr: errors.ErrPersistence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newChatServiceFixture(t)
			tt.setup(f)
			f.group.EXPECT().SendAll(gomock.Any(), gomock.Any()).Times(0)

			err := f.service.Send(context.Background(), alice, []byte(tt.raw))

			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestChatService_Join_Leave_Delegate_To_Group(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockEventSink(ctrl)

	f.group.EXPECT().Join(handle).Return(nil).Times(1)
	f.group.EXPECT().Leave(handle).Times(1)

	req.NoError(f.service.Join(handle))
	f.service.Leave(handle)
}
