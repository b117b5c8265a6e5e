package ws

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chatwire/chat-gateway/internal/auth"
	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/chatwire/chat-gateway/internal/domain/registry"
	"github.com/chatwire/chat-gateway/internal/service"
)

// session owns the protocol state of one physical connection:
//
//	Unauthenticated -> Authenticated -> (joined rooms)*
//
// It never writes chat content to any peer directly; the only path content
// takes to any client, the sender included, is through the log consumer.
type session struct {
	conn      registry.Connector
	deliverer service.Deliverer
	appender  service.Appender
	verifier  auth.Verifier
	logger    *slog.Logger

	replyTimeout time.Duration
}

func newSession(
	conn registry.Connector,
	deliverer service.Deliverer,
	appender service.Appender,
	verifier auth.Verifier,
	logger *slog.Logger,
) *session {
	return &session{
		conn:         conn,
		deliverer:    deliverer,
		appender:     appender,
		verifier:     verifier,
		logger:       logger,
		replyTimeout: time.Second,
	}
}

func (s *session) authenticated() bool {
	return s.conn.Identity() != nil
}

// handleFrame processes one inbound frame. It reports whether the transport
// must be closed (only after a failed auth). Malformed frames produce an
// error reply and are otherwise ignored.
func (s *session) handleFrame(ctx context.Context, raw []byte) (closeConn bool) {
	fr, err := model.ParseInbound(raw)
	if err != nil {
		s.reply(model.NewErrorFrame("malformed frame"))
		return false
	}
	if err := fr.Validate(); err != nil {
		s.reply(model.NewErrorFrame(err.Error()))
		return false
	}

	switch fr.Type {
	case model.InAuth:
		return s.handleAuth(fr.Token)
	case model.InJoinRoom:
		s.handleJoin(fr.RoomID)
	case model.InLeaveRoom:
		s.handleLeave(fr.RoomID)
	case model.InMessage:
		s.handleMessage(ctx, fr.RoomID, fr.Text)
	}
	return false
}

// handleAuth binds the verified identity to the connection. There is no
// retry and no partial auth: an invalid token closes the transport.
func (s *session) handleAuth(token string) (closeConn bool) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.reply(model.NewErrorFrame("Invalid token"))
		return true
	}

	s.conn.BindIdentity(identity)
	s.reply(model.NewAuthSuccessFrame(identity))
	return false
}

// handleJoin is silently ignored before auth. Re-joining an already-joined
// room is a no-op that still acknowledges with room_joined.
func (s *session) handleJoin(roomID string) {
	if !s.authenticated() {
		return
	}
	s.deliverer.Join(roomID, s.conn)
	s.reply(model.NewRoomJoinedFrame(roomID))
}

// handleLeave is silent on success and idempotent on an absent membership.
func (s *session) handleLeave(roomID string) {
	if !s.authenticated() {
		return
	}
	s.deliverer.Leave(roomID, s.conn)
}

// handleMessage appends the message to the log and acknowledges with
// `queued`. The ack is not proof of delivery: the sender learns the message
// is truly delivered only when it comes back as chat:new. A failed append is
// surfaced as an error frame, never as a false ack.
func (s *session) handleMessage(ctx context.Context, roomID, text string) {
	if !s.authenticated() {
		s.reply(model.NewErrorFrame("not authenticated"))
		return
	}

	ev, err := s.appender.Append(ctx, roomID, strings.TrimSpace(text), s.conn.Identity())
	if err != nil {
		s.reply(model.NewErrorFrame("message could not be queued"))
		return
	}
	s.reply(model.NewQueuedFrame(ev))
}

func (s *session) reply(fr *model.OutboundFrame) {
	if !s.conn.Send(fr, s.replyTimeout) {
		s.logger.Debug("session reply dropped", "conn_id", s.conn.GetID(), "type", fr.Type)
	}
}
