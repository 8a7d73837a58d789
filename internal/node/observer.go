package node

import "rbcast/internal/message"

// Observer receives protocol events for presentation. Callbacks run on the
// node's own goroutines and must return quickly; they have no effect on the
// protocol.
type Observer interface {
	// OnDeliver is called exactly once per message, in arrival order.
	OnDeliver(origin int, payload string, localTime int64)
	// OnAckObserved is called for every acknowledgment received, including
	// duplicates and acknowledgments for other processes' messages.
	OnAckObserved(id message.ID, from int)
	// OnUndeliverable is called when a message this process sent is given
	// up on after the maximum retry duration.
	OnUndeliverable(id message.ID, ackedBy []int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnDeliver(int, string, int64)      {}
func (NopObserver) OnAckObserved(message.ID, int)     {}
func (NopObserver) OnUndeliverable(message.ID, []int) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Deliver       func(origin int, payload string, localTime int64)
	Ack           func(id message.ID, from int)
	Undeliverable func(id message.ID, ackedBy []int)
}

func (f ObserverFuncs) OnDeliver(origin int, payload string, localTime int64) {
	if f.Deliver != nil {
		f.Deliver(origin, payload, localTime)
	}
}

func (f ObserverFuncs) OnAckObserved(id message.ID, from int) {
	if f.Ack != nil {
		f.Ack(id, from)
	}
}

func (f ObserverFuncs) OnUndeliverable(id message.ID, ackedBy []int) {
	if f.Undeliverable != nil {
		f.Undeliverable(id, ackedBy)
	}
}
