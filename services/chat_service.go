//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/contract"
	"chat-relay/domain/attachment"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

type IChatService interface {
	Join(sink contract.EventSink) error
	Leave(sink contract.EventSink)
	Send(ctx context.Context, sender chat.Identity, raw []byte) error
}

type ChatService struct {
	log      *slog.Logger
	users    storage.IUserRepository
	messages storage.IMessageRepository
	group    contract.IBroadcastGroup
	mediaURL string
}

func NewChatService(log *slog.Logger, users storage.IUserRepository,
	messages storage.IMessageRepository, group contract.IBroadcastGroup, mediaURL string) *ChatService {
	return &ChatService{log: log, users: users, messages: messages, group: group, mediaURL: mediaURL}
}

func (s *ChatService) Join(sink contract.EventSink) error {
	return s.group.Join(sink)
}

func (s *ChatService) Leave(sink contract.EventSink) {
	s.group.Leave(sink)
}

// Send runs the send pipeline for one inbound frame.
// It persists the message and broadcasts it to every live session, in that order.
// Any failure stops the pipeline before the broadcast and is returned
// wrapping one of errors.ErrParse, errors.ErrReceiverNotFound,
// errors.ErrDecode or errors.ErrPersistence.
func (s *ChatService) Send(ctx context.Context, sender chat.Identity, raw []byte) error {
	// 1. Envelope
	envelope, err := chat.ParseEnvelope(raw)
	if err != nil {
		return err
	}
	receiverID, err := envelope.Receiver()
	if err != nil {
		return err
	}

	// 2. Receiver, checked before anything else in the envelope
	if receiverID == chat.MissingReceiverID {
		return errors.ReceiverNotFoundError{ReceiverID: receiverID}
	}
	receiver, found, err := s.users.Resolve(receiverID)
	if err != nil {
		return fmt.Errorf("%w: resolve receiver: %v", errors.ErrPersistence, err)
	}
	if !found {
		return errors.ReceiverNotFoundError{ReceiverID: receiverID}
	}

	// 3. Content and attachments
	content, err := envelope.Content()
	if err != nil {
		return err
	}
	file, err := attachment.DecodeOptional(envelope.File)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}
	image, err := attachment.DecodeOptional(envelope.Image)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}

	// 4. Persistence
	message, err := s.messages.StoreMessage(chat.SaveMessageCommand{
		Sender:   sender,
		Receiver: receiver,
		Content:  content,
		File:     file,
		Image:    image,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	// 5 & 6. Public URLs then broadcast
	s.group.SendAll(ctx, chat.DeliveryEvent{
		Message:  content,
		SenderID: sender.ID,
		FileURL:  s.publicURL(message.File),
		ImageURL: s.publicURL(message.Image),
	})
	s.log.Debug("Message relayed", "message_id", message.ID, "sender_id", sender.ID, "receiver_id", receiver.ID)
	return nil
}

func (s *ChatService) publicURL(blob *chat.StoredBlob) *string {
	if blob == nil {
		return nil
	}
	return lo.ToPtr(s.mediaURL + blob.Name)
}
