package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/google/uuid"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (HUB/SESSION)
// This allows mocking and decoupling from the concrete implementation
type Connector interface {
	GetID() uuid.UUID
	Identity() *model.Identity
	BindIdentity(id *model.Identity)
	Send(fr *model.OutboundFrame, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan *model.OutboundFrame
	Close() // Terminate connection and release resources
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	identity  atomic.Pointer[model.Identity]
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh    chan *model.OutboundFrame
	closeOnce sync.Once // [PROTECTION]

	droppedCount uint64 // [ATOMIC_FIELD]
}

// [POOL] SYNC.POOL FOR OBJECT REUSE (REDUCES GC PRESSURE)
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector acquires a pooled connector bound to the transport's context.
// The identity stays nil until the session authenticates.
func NewConnector(ctx context.Context, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, bufferSize)
	return c
}

// reset re-initializes the connector's internal state. Reassigning the
// struct literal wipes stale data from pooled objects and re-arms the
// sync.Once guard.
func (c *connect) reset(ctx context.Context, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:        uuid.New(),
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan *model.OutboundFrame, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID { return c.id }

func (c *connect) Identity() *model.Identity { return c.identity.Load() }

func (c *connect) BindIdentity(id *model.Identity) { c.identity.Store(id) }

// Send attempts to push a frame into the session's mailbox.
// A connection that is closing is reported as a skip (false), never an error.
func (c *connect) Send(fr *model.OutboundFrame, timeout time.Duration) bool {
	// [RESOURCE_MANAGEMENT] A localized deadline keeps a stalled session
	// from holding the room's delivery loop hostage.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	// 1. [LIFECYCLE_GATE] Abort if the underlying transport is already dead.
	case <-c.ctx.Done():
		return false

	// 2. [PRIMARY_DELIVERY] Waits up to 'timeout' for buffer space, which
	// smooths out transient network jitter on the reader side.
	case c.sendCh <- fr:
		return true

	// 3. [BACKPRESSURE_THRESHOLD] Buffer stayed saturated for the whole
	// window: persistent slow consumer.
	case <-ctx.Done():
		return c.handleBackpressure(fr)
	}
}

// handleBackpressure manages full buffers by shedding low-priority frames.
func (c *connect) handleBackpressure(fr *model.OutboundFrame) bool {
	// Presence notices are droppable; never spend buffer on them under load.
	if fr.Priority() <= model.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// Try to evict one queued lower-priority frame to make room.
	select {
	case old := <-c.sendCh:
		if old.Priority() < fr.Priority() {
			select {
			case c.sendCh <- fr:
				return true
			default:
			}
		} else {
			// Put the displaced frame back, best effort.
			select {
			case c.sendCh <- old:
			default:
			}
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan *model.OutboundFrame { return c.sendCh }

// Close terminates the session, triggers cleanup, and recycles the object.
func (c *connect) Close() {
	// [IDEMPOTENCY_SHIELD]
	// Teardown runs exactly once even when invoked concurrently by the hub
	// (shutdown), the room cell (eviction), and the ws handler (defer).
	c.closeOnce.Do(func() {
		// 1. [SIGNAL_ABORT] Cancel the context to stop pending Sends.
		c.cancelFn()

		// 2. [UPSTREAM_NOTIFY] Closing the channel signals the write pump
		// (via !ok) to flush and exit.
		if c.sendCh != nil {
			close(c.sendCh)
		}

		// 3. [MEMORY_SANITIZATION] Drop references before pooling.
		c.sendCh = nil
		c.identity.Store(nil)

		connectPool.Put(c)
	})
}
