// Package chat contains core concepts of the one-to-one relay.
// Messages are immutable once persisted; no runtime or transport logic lives here.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// UserID is the opaque identity of an authenticated principal.
type UserID string

type Identity struct {
	ID    UserID
	Email string
}

// StoredBlob references a blob handed to blob storage.
// Name is relative to the media root and is what public URLs are built from.
type StoredBlob struct {
	Name     string
	Location string
	MimeType string
	Size     int
}

// Message represents one persisted chat message.
type Message struct {
	ID         uuid.UUID
	SenderID   UserID
	ReceiverID UserID
	Content    string
	File       *StoredBlob
	Image      *StoredBlob
	IsRead     bool
	CreatedAt  time.Time
}

// SaveMessageCommand carries what the message store needs to create a record.
type SaveMessageCommand struct {
	Sender   Identity
	Receiver Identity
	Content  string
	File     *Blob
	Image    *Blob
}

// Blob is a decoded attachment ready for storage.
type Blob struct {
	Name string
	Data []byte
}
