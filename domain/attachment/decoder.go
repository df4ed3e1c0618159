// Package attachment turns inline attachment payloads into storable blobs.
package attachment

import (
	"bytes"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Payload is an inline attachment as sent by a client.
// Both keys must be present; their values are not otherwise checked.
type Payload struct {
	Name *string `json:"name" validate:"required"`
	Data *string `json:"data" validate:"required"`
}

// Decode converts a base64 payload into a named blob.
// The name is passed through untouched and no size or content check is made.
func Decode(payload Payload) (chat.Blob, error) {
	if err := validate.Struct(payload); err != nil {
		return chat.Blob{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	data, err := base64.StdEncoding.DecodeString(lo.FromPtr(payload.Data))
	if err != nil {
		return chat.Blob{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return chat.Blob{Name: lo.FromPtr(payload.Name), Data: data}, nil
}

// DecodeOptional decodes a raw attachment object when present and returns nil
// when the key is absent or null. A wrong shape wraps errors.ErrDecode.
func DecodeOptional(raw json.RawMessage) (*chat.Blob, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	blob, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return &blob, nil
}
