package ws

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/chatwire/chat-gateway/internal/domain/registry"
	"github.com/chatwire/chat-gateway/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// transportFixture runs the full stack below the broker: a real hub, the real
// delivery service, and the websocket handler behind an httptest server. Only
// the log append is faked; broadcasts are injected through the hub exactly
// the way the consumer does it.
type transportFixture struct {
	hub      *registry.Hub
	appender *fakeAppender
	server   *httptest.Server
}

func newTransportFixture(t *testing.T) *transportFixture {
	t.Helper()

	hub := registry.NewHub(
		registry.WithMailboxSize(64),
		registry.WithSendTimeout(100*time.Millisecond),
	)
	appender := &fakeAppender{}
	handler := NewWSHandler(slog.Default(), service.NewDeliveryService(hub), appender, fakeVerifier{})

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})

	return &transportFixture{hub: hub, appender: appender, server: srv}
}

func (fx *transportFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(fx.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// readUntilType skips intervening frames (presence notices have no ordering
// guarantee relative to acks) until one of the wanted type arrives.
func readUntilType(t *testing.T, conn *websocket.Conn, frameType string) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "connection ended while waiting for frame type %q", frameType)

		var frame map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &frame))

		var got string
		require.NoError(t, json.Unmarshal(frame["type"], &got))
		if got == frameType {
			return frame
		}
	}
}

func fieldString(t *testing.T, frame map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(frame[key], &s))
	return s
}

func TestTransportAuthJoinSendDeliver(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)
	conn := fx.dial(t)

	sendFrame(t, conn, `{"type":"auth","token":"good-token"}`)
	authed := readUntilType(t, conn, model.OutAuthSuccess)
	var user model.Identity
	req.NoError(json.Unmarshal(authed["user"], &user))
	req.Equal("u1", user.ID)

	sendFrame(t, conn, `{"type":"join_room","roomId":"r1"}`)
	joined := readUntilType(t, conn, model.OutRoomJoined)
	req.Equal("r1", fieldString(t, joined, "roomId"))

	sendFrame(t, conn, `{"type":"message","roomId":"r1","text":"hello"}`)
	queued := readUntilType(t, conn, model.OutQueued)
	req.Equal("r1", fieldString(t, queued, "roomId"))
	req.NotEmpty(fieldString(t, queued, "tempId"))
	req.NotEmpty(fieldString(t, queued, "createdAt"))

	// The consumer's side of the round trip: broadcast the canonical form.
	req.Equal([]appendCall{{roomID: "r1", text: "hello", senderID: "u1"}}, fx.appender.snapshot())
	req.True(fx.hub.Broadcast("r1", model.NewChatFrame(&model.CanonicalMessage{
		ID:      "m1",
		RoomID:  "r1",
		Content: "hello",
		Sender:  model.Sender{ID: "u1", Email: "u1@example.com"},
	})))

	delivered := readUntilType(t, conn, model.OutChatNew)
	var payload model.CanonicalMessage
	req.NoError(json.Unmarshal(delivered["payload"], &payload))
	req.Equal("hello", payload.Content)
	req.Equal("r1", payload.RoomID)
	req.Equal("u1", payload.Sender.ID)
}

func TestTransportAuthFailureSendsErrorThenCloses(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)
	conn := fx.dial(t)

	sendFrame(t, conn, `{"type":"auth","token":"forged"}`)

	// The error frame must be flushed before the close handshake.
	errFrame := readUntilType(t, conn, model.OutError)
	req.Equal("Invalid token", fieldString(t, errFrame, "message"))

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.Error(err)
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		"expected a clean close after the auth error, got: %v", err)
}

func TestTransportBroadcastReachesBothMembers(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)

	conns := []*websocket.Conn{fx.dial(t), fx.dial(t)}
	for _, conn := range conns {
		sendFrame(t, conn, `{"type":"auth","token":"good-token"}`)
		readUntilType(t, conn, model.OutAuthSuccess)
		sendFrame(t, conn, `{"type":"join_room","roomId":"r1"}`)
		readUntilType(t, conn, model.OutRoomJoined)
	}

	require.Eventually(t, func() bool { return fx.hub.RoomSize("r1") == 2 },
		2*time.Second, 10*time.Millisecond)

	req.True(fx.hub.Broadcast("r1", model.NewChatFrame(&model.CanonicalMessage{
		ID: "m1", RoomID: "r1", Content: "hello",
	})))

	// The sender included: both sockets observe exactly one chat:new.
	for _, conn := range conns {
		delivered := readUntilType(t, conn, model.OutChatNew)
		var payload model.CanonicalMessage
		req.NoError(json.Unmarshal(delivered["payload"], &payload))
		req.Equal("hello", payload.Content)
	}
}

func TestTransportDisconnectCleansMembership(t *testing.T) {
	fx := newTransportFixture(t)
	conn := fx.dial(t)

	sendFrame(t, conn, `{"type":"auth","token":"good-token"}`)
	readUntilType(t, conn, model.OutAuthSuccess)
	sendFrame(t, conn, `{"type":"join_room","roomId":"r1"}`)
	readUntilType(t, conn, model.OutRoomJoined)

	require.Eventually(t, func() bool { return fx.hub.RoomSize("r1") == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return fx.hub.RoomSize("r1") == 0 },
		2*time.Second, 10*time.Millisecond,
		"closing the transport must remove the connection from every room")
}

func TestTransportRejectsOversizedFrames(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)
	conn := fx.dial(t)

	sendFrame(t, conn, `{"type":"auth","token":"good-token"}`)
	readUntilType(t, conn, model.OutAuthSuccess)

	huge := strings.Repeat("x", maxFrameBytes+1024)
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","roomId":"r1","text":"`+huge+`"}`)))

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			req.Empty(fx.appender.snapshot(), "an oversized frame must never reach the log")
			return
		}
	}
}
