package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatwire/chat-gateway/internal/auth"
	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/chatwire/chat-gateway/internal/service"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 32 * 1024
	closeDrainMax = 16
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	appender  service.Appender
	verifier  auth.Verifier
	upgrader  websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer, appender service.Appender, verifier auth.Verifier) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		appender:  appender,
		verifier:  verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer sock.Close()

	// The connector is the session's mailbox; closing the transport removes
	// it from every room synchronously, before the handler returns.
	conn := h.deliverer.Subscribe(r.Context())
	defer h.deliverer.Unsubscribe(conn)

	sess := newSession(conn, h.deliverer, h.appender, h.verifier, h.logger)

	h.logger.Info("ws opened", "conn_id", conn.GetID(), "remote", r.RemoteAddr)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.writePump(ctx, sock, conn.Recv()) })
	g.Go(func() error { return h.readPump(ctx, sock, sess) })

	if err := g.Wait(); err != nil {
		h.logger.Debug("ws session ended", "conn_id", conn.GetID(), "reason", err)
	}
	h.logger.Info("ws closed", "conn_id", conn.GetID())
}

// errSessionClosed makes the errgroup cancel the sibling pump on a protocol-
// mandated close (failed auth) without logging it as a failure.
var errSessionClosed = errors.New("session closed")

func (h *WSHandler) readPump(ctx context.Context, sock *websocket.Conn, sess *session) (err error) {
	// Unexpected internal errors are converted into a close with a server
	// error status at the connection boundary; they never propagate.
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("ws handler panic", "panic", r)
			_ = sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""),
				time.Now().Add(writeWait))
			err = errSessionClosed
		}
	}()

	sock.SetReadLimit(maxFrameBytes)
	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return errSessionClosed
		}

		if sess.handleFrame(ctx, raw) {
			return errSessionClosed
		}
	}
}

// writePump is the single writer of the socket. It forwards frames from the
// connector mailbox and keeps the connection alive with pings.
func (h *WSHandler) writePump(ctx context.Context, sock *websocket.Conn, frames <-chan *model.OutboundFrame) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush what the session managed to queue (the error frame of a
			// failed auth, typically) before closing.
			h.drain(sock, frames)
			_ = sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil

		case fr, ok := <-frames:
			if !ok {
				// Hub-initiated shutdown.
				_ = sock.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return errSessionClosed
			}
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteJSON(fr); err != nil {
				return err
			}

		case <-ticker.C:
			if err := sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) drain(sock *websocket.Conn, frames <-chan *model.OutboundFrame) {
	for range closeDrainMax {
		select {
		case fr, ok := <-frames:
			if !ok {
				return
			}
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if sock.WriteJSON(fr) != nil {
				return
			}
		default:
			return
		}
	}
}
