package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		description string
		raw         string
		wantType    InboundType
		wantErr     bool
	}{
		{"Should parse an auth frame", `{"type":"auth","token":"abc"}`, InAuth, false},
		{"Should parse a join frame", `{"type":"join_room","roomId":"r1"}`, InJoinRoom, false},
		{"Should parse a leave frame", `{"type":"leave_room","roomId":"r1"}`, InLeaveRoom, false},
		{"Should parse a message frame", `{"type":"message","roomId":"r1","text":"hi"}`, InMessage, false},
		{"Should reject an unknown type", `{"type":"subscribe","roomId":"r1"}`, "", true},
		{"Should reject an empty type", `{"roomId":"r1"}`, "", true},
		{"Should reject malformed json", `{"type":"auth"`, "", true},
		{"Should reject a non-object payload", `"auth"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			fr, err := ParseInbound([]byte(tt.raw))
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.wantType, fr.Type)
		})
	}
}

func TestInboundFrameValidate(t *testing.T) {
	tests := []struct {
		description string
		frame       InboundFrame
		wantErr     bool
	}{
		{"Should accept auth with token", InboundFrame{Type: InAuth, Token: "t"}, false},
		{"Should fail auth without token", InboundFrame{Type: InAuth}, true},
		{"Should fail join without roomId", InboundFrame{Type: InJoinRoom}, true},
		{"Should fail leave without roomId", InboundFrame{Type: InLeaveRoom}, true},
		{"Should accept a message", InboundFrame{Type: InMessage, RoomID: "r1", Text: "hello"}, false},
		{"Should fail message without roomId", InboundFrame{Type: InMessage, Text: "hello"}, true},
		{"Should fail message with empty text", InboundFrame{Type: InMessage, RoomID: "r1", Text: ""}, true},
		{"Should fail message with whitespace text", InboundFrame{Type: InMessage, RoomID: "r1", Text: "   \n\t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOutboundFramePriorities(t *testing.T) {
	req := require.New(t)

	req.Equal(PriorityHigh, NewChatFrame(&CanonicalMessage{RoomID: "r1"}).Priority())
	req.Equal(PriorityLow, NewPresenceFrame(OutUserJoined, "r1").Priority())
	req.Equal(PriorityNormal, NewErrorFrame("boom").Priority())
	req.Equal(PriorityNormal, NewQueuedFrame(NewChatEvent("r1", "hi", "u1", "")).Priority())
}

func TestQueuedFrameEchoesEvent(t *testing.T) {
	req := require.New(t)

	ev := NewChatEvent("r1", "hello", "u1", "")
	fr := NewQueuedFrame(ev)

	req.Equal(OutQueued, fr.Type)
	req.Equal("r1", fr.RoomID)
	req.Equal(ev.TempID, fr.TempID)
	req.Equal(ev.CreatedAt, fr.CreatedAt)

	// The internal priority must never leak onto the wire.
	raw, err := json.Marshal(fr)
	req.NoError(err)
	req.NotContains(string(raw), "priority")
}
