package registry

import "time"

type hubConfig struct {
	mailboxSize int
	sendTimeout time.Duration
}

func defaultConfig() hubConfig {
	return hubConfig{
		mailboxSize: 1024,
		sendTimeout: 500 * time.Millisecond,
	}
}

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold: the buffer capacity of
// each individual room's delivery mailbox.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		h.config.mailboxSize = size
	}
}

// WithSendTimeout bounds how long a room's delivery loop waits on one slow
// member before shedding the frame for that member only.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.sendTimeout = d
	}
}
