package storage

import (
	"fmt"
	"strings"
)

// MessagePrefix is the key prefix of every stored chat message.
const MessagePrefix = messagePrefix

// Describe summarizes a raw BadgerDB entry for operator tools.
// Unknown or undecodable entries are reported as RAW.
func Describe(key string, val []byte) (kind, detail string) {
	switch {
	case strings.HasPrefix(key, messagePrefix):
		message, err := decodeMessage(val)
		if err != nil {
			return "RAW", "Error: unmarshal failed"
		}
		detail = fmt.Sprintf("%s -> %s: %q", message.SenderID, message.ReceiverID, message.Content)
		if message.File != nil {
			detail += " file=" + message.File.Name
		}
		if message.Image != nil {
			detail += " image=" + message.Image.Name
		}
		return "MESSAGE", detail
	case strings.HasPrefix(key, userIDPrefix):
		var du diskUser
		if err := unmarshal(val, &du); err != nil {
			return "RAW", "Error: unmarshal failed"
		}
		return "USER", du.Email
	case strings.HasPrefix(key, userEmailPrefix):
		return "EMAIL_INDEX", string(val)
	default:
		return "RAW", fmt.Sprintf("Size: %d bytes", len(val))
	}
}
