//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(cmd chat.SaveMessageCommand) (chat.Message, error)
	GetMessage(id uuid.UUID, at time.Time) (chat.Message, error)
	ListMessages(limit int) ([]chat.Message, error)
}

type MessageRepository struct {
	db    *badger.DB
	blobs IBlobStore
	log   *slog.Logger
	now   func() time.Time
}

func NewMessageRepository(db *badger.DB, blobs IBlobStore, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, blobs: blobs, log: log, now: time.Now}
}

type diskBlob struct {
	Name     string `cbor:"name"`
	Location string `cbor:"location"`
	MimeType string `cbor:"mime_type"`
	Size     int    `cbor:"size"`
}

type diskMessage struct {
	ID         string    `cbor:"id"`
	SenderID   string    `cbor:"sender_id"`
	ReceiverID string    `cbor:"receiver_id"`
	Content    string    `cbor:"content"`
	File       *diskBlob `cbor:"file,omitempty"`
	Image      *diskBlob `cbor:"image,omitempty"`
	IsRead     bool      `cbor:"is_read"`
	CreatedAt  int64     `cbor:"created_at"`
}

// StoreMessage hands attachments to blob storage then persists the record in BadgerDB.
// The key is formatted as "msg:{timestamp_padded}:{uuid}" so that a prefix scan
// returns messages in chronological order.
// Sender and receiver must both exist; otherwise errors.ErrUnknownUser is returned
// and any blob already written is removed.
func (m *MessageRepository) StoreMessage(cmd chat.SaveMessageCommand) (chat.Message, error) {
	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   cmd.Sender.ID,
		ReceiverID: cmd.Receiver.ID,
		Content:    cmd.Content,
		IsRead:     false,
		CreatedAt:  m.now().UTC(),
	}

	var stored []chat.StoredBlob
	rollback := func() {
		for _, blob := range stored {
			if err := m.blobs.Delete(blob); err != nil {
				m.log.Warn("Orphan blob left on disk", "location", blob.Location, "error", err)
			}
		}
	}

	if cmd.File != nil {
		blob, err := m.blobs.Store(FilesFolder, *cmd.File)
		if err != nil {
			return chat.Message{}, fmt.Errorf("store file: %w", err)
		}
		stored = append(stored, blob)
		message.File = &blob
	}
	if cmd.Image != nil {
		blob, err := m.blobs.Store(ImagesFolder, *cmd.Image)
		if err != nil {
			rollback()
			return chat.Message{}, fmt.Errorf("store image: %w", err)
		}
		stored = append(stored, blob)
		message.Image = &blob
	}

	bytes, err := marshal(fromMessage(message))
	if err != nil {
		rollback()
		return chat.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		for _, id := range []chat.UserID{message.SenderID, message.ReceiverID} {
			exists, err := userExists(txn, id)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", errors.ErrUnknownUser, id)
			}
		}
		return txn.Set(messageKey(message.ID, message.CreatedAt), bytes)
	})
	if err != nil {
		rollback()
		return chat.Message{}, err
	}
	return message, nil
}

func (m *MessageRepository) GetMessage(id uuid.UUID, at time.Time) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id, at))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			message, err = decodeMessage(val)
			return err
		})
	})
	return message, err
}

// ListMessages returns up to limit messages, most recent first.
// A limit of zero or less returns everything.
func (m *MessageRepository) ListMessages(limit int) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func messageKey(id uuid.UUID, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, at.UnixNano(), id))
}

func decodeMessage(val []byte) (chat.Message, error) {
	var dm diskMessage
	if err := unmarshal(val, &dm); err != nil {
		return chat.Message{}, err
	}
	return toMessage(dm)
}

func fromMessage(message chat.Message) diskMessage {
	return diskMessage{
		ID:         message.ID.String(),
		SenderID:   string(message.SenderID),
		ReceiverID: string(message.ReceiverID),
		Content:    message.Content,
		File:       fromBlob(message.File),
		Image:      fromBlob(message.Image),
		IsRead:     message.IsRead,
		CreatedAt:  message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) (chat.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:         parsedID,
		SenderID:   chat.UserID(dm.SenderID),
		ReceiverID: chat.UserID(dm.ReceiverID),
		Content:    dm.Content,
		File:       toBlob(dm.File),
		Image:      toBlob(dm.Image),
		IsRead:     dm.IsRead,
		CreatedAt:  time.Unix(0, dm.CreatedAt).UTC(),
	}, nil
}

func fromBlob(blob *chat.StoredBlob) *diskBlob {
	if blob == nil {
		return nil
	}
	return lo.ToPtr(diskBlob{
		Name:     blob.Name,
		Location: blob.Location,
		MimeType: blob.MimeType,
		Size:     blob.Size,
	})
}

func toBlob(blob *diskBlob) *chat.StoredBlob {
	if blob == nil {
		return nil
	}
	return lo.ToPtr(chat.StoredBlob{
		Name:     blob.Name,
		Location: blob.Location,
		MimeType: blob.MimeType,
		Size:     blob.Size,
	})
}
