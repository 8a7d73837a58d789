package node

import (
	"log"
	"time"
)

// retransmitLoop periodically re-broadcasts messages that are still missing
// acknowledgments.
func (n *Node) retransmitLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.retransmitDue()
		}
	}
}

// retransmitDue runs one scan and returns the number of retransmissions.
func (n *Node) retransmitDue() int {
	now := n.now()

	for _, e := range n.outbox.Expire(now, n.maxRetryDuration) {
		n.stats.undeliverable.Add(1)
		log.Printf("[%d] Giving up on %s after %s: %s, missing %v",
			n.pid, e.ID, now.Sub(e.FirstSentAt), e.Progress, e.Missing)
		n.notify("expiry", e.ID, func() { n.observer.OnUndeliverable(e.ID, e.AckedBy) })
	}

	count := 0
	for e := range n.outbox.DueForRetransmission(now, n.retransmitAfter, n.repeatInterval) {
		n.transport.Broadcast(e.Wire, n.peers)
		n.outbox.MarkResent(e.ID, now)
		count++
		log.Printf("[%d] Retransmitted %s (attempt %d, %s)", n.pid, e.ID, e.Attempts+1, e.Progress)
	}
	n.stats.retransmissions.Add(uint64(count))

	if n.admin != nil {
		n.admin.SetOutboxHealthy(n.outbox.Overdue(now, n.retransmitAfter) == 0)
	}
	return count
}
