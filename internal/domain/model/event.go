package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatEvent is the record appended to the ordered log. Immutable once
// appended; events sharing a RoomID land in one partition in send order.
type ChatEvent struct {
	// TempID is the client-correlatable id echoed in the `queued` ack.
	// It is assigned by the publisher, never by the client.
	TempID    string `json:"tempId"`
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
	CreatedAt string `json:"createdAt"` // RFC 3339
}

// NewChatEvent stamps the event with a fresh temp id and, unless the caller
// supplied one, a server-side creation time.
func NewChatEvent(roomID, content, senderID, createdAt string) *ChatEvent {
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return &ChatEvent{
		TempID:    uuid.NewString(),
		RoomID:    roomID,
		Content:   content,
		SenderID:  senderID,
		CreatedAt: createdAt,
	}
}
