package registry

import (
	"context"
	"testing"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestConnectorIdentityBinding(t *testing.T) {
	req := require.New(t)

	conn := NewConnector(context.Background(), 8)
	defer conn.Close()

	req.Nil(conn.Identity(), "a fresh connector must be anonymous")

	conn.BindIdentity(&model.Identity{ID: "u1", Email: "u1@example.com"})
	req.NotNil(conn.Identity())
	req.Equal("u1", conn.Identity().ID)
}

func TestConnectorSendAndRecv(t *testing.T) {
	req := require.New(t)

	conn := NewConnector(context.Background(), 8)
	defer conn.Close()

	req.True(conn.Send(model.NewErrorFrame("boom"), 10*time.Millisecond))

	fr := <-conn.Recv()
	req.Equal(model.OutError, fr.Type)
	req.Equal("boom", fr.Message)
}

func TestConnectorSendAfterCloseIsSkipped(t *testing.T) {
	req := require.New(t)

	conn := NewConnector(context.Background(), 8)
	conn.Close()

	req.False(conn.Send(model.NewErrorFrame("late"), 10*time.Millisecond),
		"send on a closed connector must report a skip, never panic")
}

func TestConnectorSendAfterContextCancel(t *testing.T) {
	req := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	conn := NewConnector(ctx, 8)
	defer conn.Close()

	cancel()
	req.False(conn.Send(model.NewErrorFrame("late"), 10*time.Millisecond))
}

func TestConnectorCloseIsIdempotent(t *testing.T) {
	conn := NewConnector(context.Background(), 8)
	conn.Close()
	conn.Close() // must not panic on the already-closed channel
}

func TestConnectorBackpressureDropsLowPriority(t *testing.T) {
	req := require.New(t)

	conn := NewConnector(context.Background(), 1)
	defer conn.Close()

	// Saturate the single-slot mailbox with chat content.
	req.True(conn.Send(model.NewChatFrame(&model.CanonicalMessage{RoomID: "r1"}), time.Millisecond))

	// A presence notice must be shed rather than displace content.
	req.False(conn.Send(model.NewPresenceFrame(model.OutUserJoined, "r1"), time.Millisecond))

	fr := <-conn.Recv()
	req.Equal(model.OutChatNew, fr.Type, "the chat frame must have survived the pressure")
}

func TestConnectorBackpressureEvictsLowerPriority(t *testing.T) {
	req := require.New(t)

	conn := NewConnector(context.Background(), 1)
	defer conn.Close()

	// A queued presence notice yields its slot to incoming chat content.
	req.True(conn.Send(model.NewPresenceFrame(model.OutUserJoined, "r1"), time.Millisecond))
	req.True(conn.Send(model.NewChatFrame(&model.CanonicalMessage{RoomID: "r1"}), time.Millisecond))

	fr := <-conn.Recv()
	req.Equal(model.OutChatNew, fr.Type)
}
