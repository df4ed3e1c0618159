//go:generate go run go.uber.org/mock/mockgen -source=blob_store.go -destination=../../mocks/mock_blob_store.go -package=mocks
package storage

import (
	"chat-relay/domain/chat"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	FilesFolder  = "chat_files"
	ImagesFolder = "chat_images"
)

type IBlobStore interface {
	Store(folder string, blob chat.Blob) (chat.StoredBlob, error)
	Delete(blob chat.StoredBlob) error
}

// BlobStore writes attachments under a media root directory.
// The returned StoredBlob.Name is slash separated and relative to the root,
// ready to be appended to the public media URL.
type BlobStore struct {
	root string
	log  *slog.Logger
}

func NewBlobStore(root string, log *slog.Logger) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("media root %s: %w", root, err)
	}
	return &BlobStore{root: root, log: log}, nil
}

// Store writes the blob in folder without ever overwriting an existing file.
// Only the base name of the client supplied name is kept on disk.
func (s *BlobStore) Store(folder string, blob chat.Blob) (chat.StoredBlob, error) {
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return chat.StoredBlob{}, err
	}

	name := validName(blob.Name)
	for {
		location := filepath.Join(dir, name)
		f, err := os.OpenFile(location, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			name = alternativeName(name)
			continue
		}
		if err != nil {
			return chat.StoredBlob{}, err
		}
		if _, err = f.Write(blob.Data); err != nil {
			_ = f.Close()
			_ = os.Remove(location)
			return chat.StoredBlob{}, err
		}
		if err = f.Close(); err != nil {
			return chat.StoredBlob{}, err
		}

		mime := mimetype.Detect(blob.Data).String()
		s.log.Debug("Blob stored", "location", location, "mime", mime, "size", len(blob.Data))
		return chat.StoredBlob{
			Name:     path.Join(folder, name),
			Location: location,
			MimeType: mime,
			Size:     len(blob.Data),
		}, nil
	}
}

func (s *BlobStore) Delete(blob chat.StoredBlob) error {
	err := os.Remove(blob.Location)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func validName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "unnamed"
	}
	return name
}

// alternativeName keeps the extension and adds a short random suffix.
func alternativeName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:7], ext)
}
