package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewChatEventStampsIdentityAndTime(t *testing.T) {
	req := require.New(t)

	ev := NewChatEvent("r1", "hello", "u1", "")

	req.Equal("r1", ev.RoomID)
	req.Equal("hello", ev.Content)
	req.Equal("u1", ev.SenderID)

	_, err := uuid.Parse(ev.TempID)
	req.NoError(err, "tempId must be a generated uuid")

	created, err := time.Parse(time.RFC3339Nano, ev.CreatedAt)
	req.NoError(err)
	req.WithinDuration(time.Now(), created, time.Minute)
}

func TestNewChatEventKeepsProvidedTimestamp(t *testing.T) {
	ev := NewChatEvent("r1", "hello", "u1", "2026-01-02T15:04:05.000000000Z")
	require.Equal(t, "2026-01-02T15:04:05.000000000Z", ev.CreatedAt)
}

func TestChatEventTempIDsAreUnique(t *testing.T) {
	a := NewChatEvent("r1", "x", "u1", "")
	b := NewChatEvent("r1", "x", "u1", "")
	require.NotEqual(t, a.TempID, b.TempID)
}
