package node

import (
	"time"

	"rbcast/internal/message"
	"rbcast/internal/storage"
)

// Option customizes a Node.
type Option func(*Node)

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(n *Node) {
		if o != nil {
			n.observer = o
		}
	}
}

// WithClock replaces the wall clock used for retransmission timing.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		if now != nil {
			n.now = now
		}
	}
}

// WithCodec overrides the codec selected by the configuration.
func WithCodec(c message.Codec) Option {
	return func(n *Node) {
		if c != nil {
			n.codec = c
		}
	}
}

// WithStore replaces the delivered-id store.
func WithStore(s storage.Store) Option {
	return func(n *Node) {
		if s != nil {
			n.delivered = s
		}
	}
}
