package chat

import (
	"fmt"
	"time"
)

// DeliveryEvent is what the broadcast group fans out after a message is persisted.
type DeliveryEvent struct {
	Message  string
	SenderID UserID
	FileURL  *string
	ImageURL *string
}

// DeliveryFrame is pushed by a session to its own client.
type DeliveryFrame struct {
	Message  string  `json:"message"`
	Sent     bool    `json:"sent"`
	Date     string  `json:"date"`
	FileURL  *string `json:"file_url"`
	ImageURL *string `json:"image_url"`
}

type ErrorFrame struct {
	Error string `json:"error"`
}

// NewDeliveryFrame frames an event relative to the identity owning the session.
// at is the delivery time on the receiving side, not the persisted creation time.
func NewDeliveryFrame(evt DeliveryEvent, self UserID, at time.Time) DeliveryFrame {
	return DeliveryFrame{
		Message:  evt.Message,
		Sent:     evt.SenderID == self,
		Date:     at.UTC().Format(time.RFC3339Nano),
		FileURL:  evt.FileURL,
		ImageURL: evt.ImageURL,
	}
}

func NewReceiverNotFoundFrame(receiverID string) ErrorFrame {
	return ErrorFrame{Error: fmt.Sprintf("User with id %s does not exist.", receiverID)}
}
