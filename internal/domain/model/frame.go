package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ------------------- INBOUND (C -> S) -------------------

// InboundType enumerates the client frame variants. Anything else is
// rejected explicitly instead of being silently ignored.
type InboundType string

const (
	InAuth      InboundType = "auth"
	InJoinRoom  InboundType = "join_room"
	InLeaveRoom InboundType = "leave_room"
	InMessage   InboundType = "message"
)

// InboundFrame is the tagged union of all client frames. Field presence is
// validated per variant by Validate, not by the decoder.
type InboundFrame struct {
	Type   InboundType `json:"type"`
	Token  string      `json:"token,omitempty"`
	RoomID string      `json:"roomId,omitempty"`
	Text   string      `json:"text,omitempty"`
}

// ParseInbound decodes a raw client frame and rejects unknown variants.
func ParseInbound(raw []byte) (*InboundFrame, error) {
	var fr InboundFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch fr.Type {
	case InAuth, InJoinRoom, InLeaveRoom, InMessage:
		return &fr, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", fr.Type)
	}
}

// Validate checks variant-specific required fields.
func (f *InboundFrame) Validate() error {
	switch f.Type {
	case InAuth:
		if f.Token == "" {
			return fmt.Errorf("auth: token is required")
		}
	case InJoinRoom, InLeaveRoom:
		if f.RoomID == "" {
			return fmt.Errorf("%s: roomId is required", f.Type)
		}
	case InMessage:
		if f.RoomID == "" {
			return fmt.Errorf("message: roomId is required")
		}
		if strings.TrimSpace(f.Text) == "" {
			return fmt.Errorf("message: text must not be empty")
		}
	}
	return nil
}

// ------------------- OUTBOUND (S -> C) -------------------

type FramePriority int32

const (
	PriorityLow    FramePriority = 10 // presence notices, droppable
	PriorityNormal FramePriority = 20 // acks, errors
	PriorityHigh   FramePriority = 30 // chat content
)

const (
	OutAuthSuccess      = "auth_success"
	OutRoomJoined       = "room_joined"
	OutQueued           = "queued"
	OutChatNew          = "chat:new"
	OutUserJoined       = "user_joined"
	OutUserLeft         = "user_left"
	OutUserDisconnected = "user_disconnected"
	OutError            = "error"
)

// OutboundFrame is a single server-to-client frame. The priority steers
// backpressure handling in the connector mailbox and is never serialized.
type OutboundFrame struct {
	Type      string            `json:"type"`
	RoomID    string            `json:"roomId,omitempty"`
	Message   string            `json:"message,omitempty"`
	User      *Identity         `json:"user,omitempty"`
	TempID    string            `json:"tempId,omitempty"`
	CreatedAt string            `json:"createdAt,omitempty"`
	Payload   *CanonicalMessage `json:"payload,omitempty"`

	priority FramePriority
}

func (f *OutboundFrame) Priority() FramePriority {
	if f.priority == 0 {
		return PriorityNormal
	}
	return f.priority
}

func NewAuthSuccessFrame(user *Identity) *OutboundFrame {
	return &OutboundFrame{Type: OutAuthSuccess, User: user, priority: PriorityNormal}
}

func NewRoomJoinedFrame(roomID string) *OutboundFrame {
	return &OutboundFrame{Type: OutRoomJoined, RoomID: roomID, priority: PriorityNormal}
}

// NewQueuedFrame acknowledges that the message was handed to the log. It is
// not a delivery receipt; the sender sees the content again as `chat:new`
// once it has travelled through the consumer.
func NewQueuedFrame(ev *ChatEvent) *OutboundFrame {
	return &OutboundFrame{
		Type:      OutQueued,
		RoomID:    ev.RoomID,
		TempID:    ev.TempID,
		CreatedAt: ev.CreatedAt,
		priority:  PriorityNormal,
	}
}

func NewChatFrame(msg *CanonicalMessage) *OutboundFrame {
	return &OutboundFrame{Type: OutChatNew, RoomID: msg.RoomID, Payload: msg, priority: PriorityHigh}
}

// NewPresenceFrame covers user_joined / user_left / user_disconnected.
func NewPresenceFrame(kind, roomID string) *OutboundFrame {
	return &OutboundFrame{Type: kind, RoomID: roomID, priority: PriorityLow}
}

func NewErrorFrame(msg string) *OutboundFrame {
	return &OutboundFrame{Type: OutError, Message: msg, priority: PriorityNormal}
}
