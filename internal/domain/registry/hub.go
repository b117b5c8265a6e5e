package registry

import (
	"sync"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/google/uuid"
)

// Hubber defines the gateway for room membership management and fan-out.
// It is the only mutable cross-connection state in the process.
type Hubber interface {
	Join(roomID string, conn Connector) bool
	Leave(roomID string, conn Connector)
	RemoveConnection(conn Connector)
	Broadcast(roomID string, fr *model.OutboundFrame) bool
	RoomSize(roomID string) int
	Shutdown()
}

// Hub implements the registry using per-room actor cells.
type Hub struct {
	// cells stores map[string]*roomCell. Optimized for read-heavy lookups.
	cells sync.Map

	// index stores map[uuid.UUID]*memberIndex, the reverse relation used by
	// RemoveConnection to find every room a connection belongs to.
	index sync.Map

	config hubConfig
}

// memberIndex tracks the set of rooms one connection has joined.
type memberIndex struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{config: defaultConfig()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join adds the connection to the room's member set and notifies existing
// members with a best-effort user_joined notice. Idempotent: re-joining an
// already-joined room changes nothing and sends no second notice.
// Returns true when the membership was newly created.
func (h *Hub) Join(roomID string, conn Connector) bool {
	for {
		val, ok := h.cells.Load(roomID)
		if !ok {
			// [LAZY_INIT] Create the cell only when the first member arrives.
			fresh := newRoomCell(roomID, h.config.mailboxSize, h.config.sendTimeout)
			actual, raced := h.cells.LoadOrStore(roomID, fresh)
			if raced {
				fresh.stop()
				val = actual
			} else {
				val = fresh
			}
		}
		cell := val.(*roomCell)

		added, ok := cell.attach(conn)
		if !ok {
			// Lost a race with cell eviction; retry against a fresh cell.
			h.cells.CompareAndDelete(roomID, val)
			continue
		}
		if added {
			h.trackJoin(roomID, conn.GetID())
			// Best-effort presence notice; no ordering guarantee relative
			// to chat events. Not re-sent on idempotent re-joins.
			cell.push(model.NewPresenceFrame(model.OutUserJoined, roomID))
		}
		return added
	}
}

// Leave removes the membership and notifies remaining members. Idempotent on
// an already-absent membership: no notice, no state change.
func (h *Hub) Leave(roomID string, conn Connector) {
	h.leave(roomID, conn.GetID(), model.OutUserLeft)
	h.untrackJoin(roomID, conn.GetID())
}

// RemoveConnection detaches the connection from every room it belonged to,
// emitting user_disconnected per affected room. Called exactly once per
// connection on transport close; a no-op for connections that never joined.
func (h *Hub) RemoveConnection(conn Connector) {
	val, ok := h.index.LoadAndDelete(conn.GetID())
	if !ok {
		return
	}
	idx := val.(*memberIndex)

	idx.mu.Lock()
	rooms := make([]string, 0, len(idx.rooms))
	for roomID := range idx.rooms {
		rooms = append(rooms, roomID)
	}
	idx.rooms = nil
	idx.mu.Unlock()

	for _, roomID := range rooms {
		h.leave(roomID, conn.GetID(), model.OutUserDisconnected)
	}
}

// Broadcast enqueues the frame for delivery to every current member of the
// room. Returns false when the room has no cell or its mailbox overflowed.
func (h *Hub) Broadcast(roomID string, fr *model.OutboundFrame) bool {
	if val, ok := h.cells.Load(roomID); ok {
		if cell, ok := val.(*roomCell); ok {
			return cell.push(fr)
		}
	}
	return false
}

func (h *Hub) RoomSize(roomID string) int {
	if val, ok := h.cells.Load(roomID); ok {
		if cell, ok := val.(*roomCell); ok {
			return cell.size()
		}
	}
	return 0
}

// Shutdown stops every room's delivery goroutine.
func (h *Hub) Shutdown() {
	h.cells.Range(func(key, val any) bool {
		if cell, ok := val.(*roomCell); ok {
			cell.stop()
		}
		h.cells.Delete(key)
		return true
	})
}

func (h *Hub) leave(roomID string, connID uuid.UUID, notice string) {
	val, ok := h.cells.Load(roomID)
	if !ok {
		return
	}
	cell, ok := val.(*roomCell)
	if !ok {
		return
	}

	removed, empty := cell.detach(connID)
	if !removed {
		return
	}
	if empty {
		// [GRACEFUL_RECLAMATION] Purge the idle cell from memory.
		cell.stop()
		h.cells.CompareAndDelete(roomID, val)
		return
	}
	cell.push(model.NewPresenceFrame(notice, roomID))
}

func (h *Hub) trackJoin(roomID string, connID uuid.UUID) {
	val, _ := h.index.LoadOrStore(connID, &memberIndex{rooms: make(map[string]struct{})})
	idx := val.(*memberIndex)
	idx.mu.Lock()
	if idx.rooms != nil {
		idx.rooms[roomID] = struct{}{}
	}
	idx.mu.Unlock()
}

func (h *Hub) untrackJoin(roomID string, connID uuid.UUID) {
	if val, ok := h.index.Load(connID); ok {
		idx := val.(*memberIndex)
		idx.mu.Lock()
		if idx.rooms != nil {
			delete(idx.rooms, roomID)
		}
		idx.mu.Unlock()
	}
}
