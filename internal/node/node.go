package node

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"rbcast/internal/clock"
	"rbcast/internal/config"
	"rbcast/internal/message"
	"rbcast/internal/outbox"
	"rbcast/internal/storage"
	"rbcast/internal/transport"
)

// Node is one member of the dissemination group. It originates messages with
// Send, delivers every message from the other members exactly once, and
// retransmits its own messages until the whole group has acknowledged them.
type Node struct {
	pid       int
	peers     []string // peer addresses
	self      string   // own address, target of self-acknowledgments
	clock     *clock.Lamport
	codec     message.Codec
	outbox    *outbox.Outbox
	delivered storage.Store
	transport transport.Transport
	observer  Observer
	now       func() time.Time

	retransmitAfter  time.Duration
	repeatInterval   time.Duration
	scanInterval     time.Duration
	maxRetryDuration time.Duration

	adminAddr string
	admin     *adminServer

	stats counters

	// Control
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
}

type counters struct {
	sent            atomic.Uint64
	delivered       atomic.Uint64
	duplicates      atomic.Uint64
	acks            atomic.Uint64
	completed       atomic.Uint64
	retransmissions atomic.Uint64
	malformed       atomic.Uint64
	undeliverable   atomic.Uint64
}

// Stats is a snapshot of a node's counters.
type Stats struct {
	ProcessID       int
	Clock           int64
	Pending         int
	Delivered       uint64
	Duplicates      uint64
	Sent            uint64
	AcksReceived    uint64
	Completed       uint64
	Retransmissions uint64
	Malformed       uint64
	Undeliverable   uint64
}

// New creates a node for the given configuration on top of tr. The node owns
// tr from now on and closes it on Stop.
func New(cfg config.Config, tr transport.Transport, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := message.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	n := &Node{
		pid:              cfg.ProcessID,
		peers:            cfg.PeerAddrs(),
		self:             tr.LocalAddr(),
		clock:            clock.New(),
		codec:            codec,
		outbox:           outbox.New(cfg.ProcessID, cfg.Members()),
		delivered:        storage.NewInMemoryStore(),
		transport:        tr,
		observer:         NopObserver{},
		now:              time.Now,
		retransmitAfter:  cfg.RetransmitAfter,
		repeatInterval:   cfg.RepeatInterval,
		scanInterval:     cfg.ScanInterval,
		maxRetryDuration: cfg.MaxRetryDuration,
		adminAddr:        cfg.AdminAddr,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	return n, nil
}

// ID returns the process id.
func (n *Node) ID() int {
	return n.pid
}

// Addr returns the address peers reach this node at.
func (n *Node) Addr() string {
	return n.self
}

// Start launches the receive and retransmission loops and, if configured,
// the admin server. Cancelling ctx has the same effect as Stop.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return fmt.Errorf("node %d already started", n.pid)
	}

	if n.adminAddr != "" {
		admin, err := startAdmin(n.adminAddr)
		if err != nil {
			n.cancel()
			n.transport.Close()
			return err
		}
		n.admin = admin
		log.Printf("[%d] Admin server listening on %s", n.pid, admin.Addr())
	}

	n.wg.Add(3)

	// Receive loop
	go n.receiveLoop()

	// Retransmission loop
	go n.retransmitLoop()

	// Shutdown watcher: closing the transport unblocks Receive.
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
			n.cancel()
		case <-n.ctx.Done():
		}
		n.transport.Close()
	}()

	log.Printf("[%d] Started on %s with %d peers (codec=%s, retransmit-after=%s, repeat=%s)",
		n.pid, n.self, len(n.peers), n.codec.Name(), n.retransmitAfter, n.repeatInterval)
	return nil
}

// Stop terminates both loops and releases the transport. Messages still
// pending are abandoned.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()
		if !n.started.Load() {
			n.transport.Close()
		}
		n.wg.Wait()
		if n.admin != nil {
			n.admin.Stop()
		}
		log.Printf("[%d] Stopped (%d messages still pending)", n.pid, n.outbox.Len())
	})
}

// Send stamps payload with a fresh Lamport time, records it as pending and
// broadcasts it to every peer. It never waits for acknowledgments; transport
// failures are logged, not returned.
func (n *Node) Send(payload string) message.ID {
	t := n.clock.Tick()
	msg := message.NewData(n.pid, t, payload)

	wire, err := n.codec.Encode(msg)
	if err != nil {
		log.Printf("[%d] Failed to encode %s: %v", n.pid, msg.ID, err)
		return msg.ID
	}

	n.outbox.Register(msg.ID, wire, n.now())
	sent := n.transport.Broadcast(wire, n.peers)
	n.stats.sent.Add(1)

	if sent < len(n.peers) {
		log.Printf("[%d] Sent %s to %d/%d peers", n.pid, msg.ID, sent, len(n.peers))
	}
	return msg.ID
}

// Delivered reports whether id has been delivered by this node.
func (n *Node) Delivered(id message.ID) bool {
	return n.delivered.Contains(id)
}

// DeliveredIDs returns every id delivered by this node in Lamport order.
func (n *Node) DeliveredIDs() []message.ID {
	return n.delivered.IDs()
}

// Pending returns the messages sent by this node that still await
// acknowledgments.
func (n *Node) Pending() []outbox.Entry {
	return n.outbox.Pending()
}

// Stats returns a snapshot of the node's counters.
func (n *Node) Stats() Stats {
	return Stats{
		ProcessID:       n.pid,
		Clock:           n.clock.Now(),
		Pending:         n.outbox.Len(),
		Delivered:       n.stats.delivered.Load(),
		Duplicates:      n.stats.duplicates.Load(),
		Sent:            n.stats.sent.Load(),
		AcksReceived:    n.stats.acks.Load(),
		Completed:       n.stats.completed.Load(),
		Retransmissions: n.stats.retransmissions.Load(),
		Malformed:       n.stats.malformed.Load(),
		Undeliverable:   n.stats.undeliverable.Load(),
	}
}
