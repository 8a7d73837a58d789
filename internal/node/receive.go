package node

import (
	"errors"
	"log"
	"math/rand"
	"time"

	"rbcast/internal/message"
	"rbcast/internal/transport"
)

// Bounds of the pause after a failed Receive. The pause doubles, with
// jitter, on every consecutive failure and resets after a success.
const (
	minReceiveBackoff = time.Millisecond
	maxReceiveBackoff = 500 * time.Millisecond
)

// receiveLoop handles inbound datagrams until the transport is closed.
// No single datagram or receive error ends the loop.
func (n *Node) receiveLoop() {
	defer n.wg.Done()

	backoff := time.Duration(0)
	for {
		data, from, err := n.transport.Receive()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || n.ctx.Err() != nil {
				return
			}
			backoff = nextBackoff(backoff)
			log.Printf("[%d] Receive failed, retrying in %s: %v", n.pid, backoff, err)
			if !n.sleep(backoff) {
				return
			}
			continue
		}
		backoff = 0
		n.handleDatagram(data, from)
	}
}

// nextBackoff grows the previous wait exponentially with random jitter.
func nextBackoff(prev time.Duration) time.Duration {
	if prev < minReceiveBackoff {
		return minReceiveBackoff
	}
	next := prev + time.Duration(rand.Int63n(int64(prev))) + 1
	if next > maxReceiveBackoff {
		next = maxReceiveBackoff
	}
	return next
}

// sleep waits for d and returns false if the node stopped meanwhile.
func (n *Node) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-n.ctx.Done():
		return false
	}
}

func (n *Node) handleDatagram(data []byte, from string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%d] Recovered while handling datagram from %s: %v", n.pid, from, r)
		}
	}()

	msg, err := n.codec.Decode(data)
	if err != nil {
		n.stats.malformed.Add(1)
		log.Printf("[%d] Discarding datagram from %s: %v", n.pid, from, err)
		return
	}

	switch m := msg.(type) {
	case *message.Data:
		n.handleData(m)
	case *message.Ack:
		n.handleAck(m)
	}
}

// notify runs an observer callback about id. A panicking observer is logged
// and never interrupts the caller.
func (n *Node) notify(event string, id message.ID, call func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%d] Observer panicked on %s of %s: %v", n.pid, event, id, r)
		}
	}()
	call()
}

// handleData delivers a message the first time it is seen and acknowledges
// every copy. Re-acknowledging duplicates lets the originator complete an
// entry whose first acknowledgment was lost.
func (n *Node) handleData(m *message.Data) {
	if n.delivered.ShouldDeliver(m.ID) {
		local := n.clock.Observe(m.Time)
		n.stats.delivered.Add(1)
		n.notify("delivery", m.MessageID(), func() { n.observer.OnDeliver(m.Origin, m.Payload, local) })
	} else {
		n.stats.duplicates.Add(1)
	}
	n.sendAck(m.ID)
}

// sendAck acknowledges id to every peer and to self.
func (n *Node) sendAck(id message.ID) {
	wire, err := n.codec.Encode(&message.Ack{From: n.pid, ID: id})
	if err != nil {
		log.Printf("[%d] Failed to encode ack for %s: %v", n.pid, id, err)
		return
	}
	targets := make([]string, 0, len(n.peers)+1)
	targets = append(targets, n.peers...)
	targets = append(targets, n.self)
	n.transport.Broadcast(wire, targets)
}

func (n *Node) handleAck(m *message.Ack) {
	n.stats.acks.Add(1)
	n.notify("ack", m.MessageID(), func() { n.observer.OnAckObserved(m.ID, m.From) })

	if m.ID.Origin != n.pid {
		return
	}
	if n.outbox.Acknowledge(m.ID, m.From) {
		n.stats.completed.Add(1)
		log.Printf("[%d] Message %s acknowledged by all %d members", n.pid, m.ID, n.outbox.GroupSize())
		return
	}
	if e, ok := n.outbox.Get(m.ID); ok {
		log.Printf("[%d] Ack for %s from %d, %s", n.pid, m.ID, m.From, e.Progress)
	}
}
