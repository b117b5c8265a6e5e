package registry

import (
	"sync"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/google/uuid"
)

// roomCell implements isolated delivery for a single room.
//
// Each room owns one background goroutine draining a mailbox, so broadcasts
// for one room are strictly serialized (preserving per-room event order)
// while a slow room never stalls delivery in any other room.
type roomCell struct {
	roomID string

	// [MAILBOX]
	// Buffered channel decoupling the log consumer from socket writes.
	// Acts as a shock absorber so slow-consumer latency never propagates
	// back into the partition consume loop.
	mailbox chan *model.OutboundFrame

	// [MEMBERS]
	// All connections currently joined to this room. RWMutex because
	// delivery iteration vastly outnumbers join/leave mutation.
	members map[uuid.UUID]Connector
	mu      sync.RWMutex

	// closed guards Attach against racing a concurrent cell eviction.
	closed bool

	doneCh      chan struct{}
	sendTimeout time.Duration
}

func newRoomCell(roomID string, mailboxSize int, sendTimeout time.Duration) *roomCell {
	c := &roomCell{
		roomID:      roomID,
		mailbox:     make(chan *model.OutboundFrame, mailboxSize),
		members:     make(map[uuid.UUID]Connector),
		doneCh:      make(chan struct{}),
		sendTimeout: sendTimeout,
	}
	go c.loop()
	return c
}

// attach registers a connection. Returns (added, ok): added is false for an
// idempotent re-join, ok is false when the cell was already evicted and the
// caller must retry against a fresh cell.
func (c *roomCell) attach(conn Connector) (added, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	if _, exists := c.members[conn.GetID()]; exists {
		return false, true
	}
	c.members[conn.GetID()] = conn
	return true, true
}

// detach removes a connection. Returns (removed, empty).
func (c *roomCell) detach(connID uuid.UUID) (removed, empty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, removed = c.members[connID]
	delete(c.members, connID)
	return removed, len(c.members) == 0
}

func (c *roomCell) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// push enqueues a frame for fan-out. Returns false on overflow.
func (c *roomCell) push(fr *model.OutboundFrame) bool {
	select {
	case c.mailbox <- fr:
		return true
	default:
		return false
	}
}

func (c *roomCell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case fr := <-c.mailbox:
			c.deliver(fr)
		}
	}
}

func (c *roomCell) deliver(fr *model.OutboundFrame) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, conn := range c.members {
		// A closing connection reports false; that is a skip, not an error.
		conn.Send(fr, c.sendTimeout)
	}
}

// stop marks the cell closed and terminates its delivery goroutine.
// Idempotent: eviction and hub shutdown may both reach the same cell.
func (c *roomCell) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.doneCh)
}
