package outbox

import (
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"rbcast/internal/clock"
	"rbcast/internal/message"
	"rbcast/internal/quorum"
)

// Entry is a point-in-time copy of a pending message.
type Entry struct {
	ID          message.ID
	Wire        []byte
	AckedBy     []int
	Missing     []int  // members yet to acknowledge
	Progress    string // e.g. "2/3 acked=[1 3]"
	FirstSentAt time.Time
	LastSentAt  time.Time
	Attempts    int // retransmissions so far, not counting the first send
}

type record struct {
	id       message.ID
	wire     []byte
	acks     *quorum.AckSet
	first    time.Time
	last     time.Time
	attempts int
}

func (r *record) snapshot() Entry {
	return Entry{
		ID:          r.id,
		Wire:        r.wire,
		AckedBy:     r.acks.Acked(),
		Missing:     r.acks.Missing(),
		Progress:    r.acks.String(),
		FirstSentAt: r.first,
		LastSentAt:  r.last,
		Attempts:    r.attempts,
	}
}

// Outbox holds the pending entries of one process.
type Outbox struct {
	mu      sync.Mutex
	self    int
	group   quorum.Group
	entries map[message.ID]*record
}

// New creates an outbox for process self in a group with the given members.
// Self is always treated as a member.
func New(self int, members []int) *Outbox {
	ids := append([]int{self}, members...)
	return &Outbox{
		self:    self,
		group:   quorum.NewGroup(ids),
		entries: make(map[message.ID]*record),
	}
}

// GroupSize returns the number of acknowledgments an entry needs.
func (o *Outbox) GroupSize() int {
	return o.group.Size()
}

// Register inserts a freshly sent message. The originator acknowledges its
// own message, so the entry starts with AckedBy = {self}. In a group of one
// the message is complete immediately and nothing is retained.
// Registering an id that is already pending returns the existing entry.
func (o *Outbox) Register(id message.ID, wire []byte, now time.Time) Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, exists := o.entries[id]; exists {
		return existing.snapshot()
	}

	r := &record{
		id:    id,
		wire:  append([]byte(nil), wire...),
		acks:  quorum.NewAckSet(o.group),
		first: now,
		last:  now,
	}
	r.acks.Add(o.self)

	if !r.acks.Complete() {
		o.entries[id] = r
	}
	return r.snapshot()
}

// Acknowledge records that by has delivered id. It returns true exactly when
// this acknowledgment completed the entry, which is then removed. Unknown ids
// (already completed, or never sent by this process) and non-member senders
// are ignored.
func (o *Outbox) Acknowledge(id message.ID, by int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, exists := o.entries[id]
	if !exists {
		return false
	}
	if !r.acks.Add(by) {
		return false
	}
	if r.acks.Complete() {
		delete(o.entries, id)
		return true
	}
	return false
}

// DueForRetransmission returns the entries first sent at least
// retransmitAfter ago and last sent at least minRepeatInterval ago. The
// sequence is evaluated when ranged over, yields each entry once in
// first-sent order, and can be consumed only once. The caller re-broadcasts
// each entry and then calls MarkResent.
func (o *Outbox) DueForRetransmission(now time.Time, retransmitAfter, minRepeatInterval time.Duration) iter.Seq[Entry] {
	var consumed atomic.Bool
	return func(yield func(Entry) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}

		o.mu.Lock()
		due := make([]Entry, 0)
		for _, r := range o.entries {
			if now.Sub(r.first) >= retransmitAfter && now.Sub(r.last) >= minRepeatInterval {
				due = append(due, r.snapshot())
			}
		}
		o.mu.Unlock()

		sortEntries(due)
		for _, e := range due {
			if !yield(e) {
				return
			}
		}
	}
}

// MarkResent records a retransmission of id at now. Returns false if the
// entry is no longer pending.
func (o *Outbox) MarkResent(id message.ID, now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, exists := o.entries[id]
	if !exists {
		return false
	}
	r.last = now
	r.attempts++
	return true
}

// Expire removes and returns every entry first sent at least maxAge ago.
// A non-positive maxAge disables expiry.
func (o *Outbox) Expire(now time.Time, maxAge time.Duration) []Entry {
	if maxAge <= 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var expired []Entry
	for id, r := range o.entries {
		if now.Sub(r.first) >= maxAge {
			expired = append(expired, r.snapshot())
			delete(o.entries, id)
		}
	}
	sortEntries(expired)
	return expired
}

// Overdue counts entries first sent at least after ago.
func (o *Outbox) Overdue(now time.Time, after time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, r := range o.entries {
		if now.Sub(r.first) >= after {
			n++
		}
	}
	return n
}

// Get returns a copy of the pending entry for id.
func (o *Outbox) Get(id message.ID) (Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, exists := o.entries[id]
	if !exists {
		return Entry{}, false
	}
	return r.snapshot(), true
}

// Pending returns copies of all pending entries in first-sent order.
func (o *Outbox) Pending() []Entry {
	o.mu.Lock()
	entries := make([]Entry, 0, len(o.entries))
	for _, r := range o.entries {
		entries = append(entries, r.snapshot())
	}
	o.mu.Unlock()

	sortEntries(entries)
	return entries
}

// Len returns the number of pending entries.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].FirstSentAt.Equal(entries[j].FirstSentAt) {
			return entries[i].FirstSentAt.Before(entries[j].FirstSentAt)
		}
		a, b := entries[i].ID, entries[j].ID
		return clock.Less(a.Time, a.Origin, b.Time, b.Origin)
	})
}
