package main

import (
	"io"

	"github.com/pterm/pterm"

	"rbcast/internal/message"
	"rbcast/internal/node"
	"rbcast/internal/outbox"
)

// presenter renders engine events on the console.
type presenter struct {
	verbose bool

	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
}

var _ node.Observer = (*presenter)(nil)

func newPresenter(w io.Writer, verbose bool) *presenter {
	return &presenter{
		verbose: verbose,
		info:    pterm.Info.WithWriter(w),
		success: pterm.Success.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
	}
}

func (p *presenter) OnDeliver(origin int, payload string, localTime int64) {
	p.success.Printfln("[%d @ %d] %s", origin, localTime, payload)
}

func (p *presenter) OnAckObserved(id message.ID, from int) {
	if p.verbose {
		p.info.Printfln("ack %s from %d", id, from)
	}
}

func (p *presenter) OnUndeliverable(id message.ID, ackedBy []int) {
	p.warning.Printfln("gave up on %s, acknowledged only by %v", id, ackedBy)
}

func (p *presenter) sent(id message.ID) {
	p.info.Printfln("sent %s", id)
}

func (p *presenter) stats(s node.Stats) {
	p.info.Printfln("clock=%d pending=%d sent=%d delivered=%d duplicates=%d acks=%d completed=%d retransmissions=%d malformed=%d undeliverable=%d",
		s.Clock, s.Pending, s.Sent, s.Delivered, s.Duplicates, s.AcksReceived,
		s.Completed, s.Retransmissions, s.Malformed, s.Undeliverable)
}

func (p *presenter) pending(entries []outbox.Entry) {
	if len(entries) == 0 {
		p.info.Println("nothing pending")
		return
	}
	for _, e := range entries {
		p.info.Printfln("%s attempts=%d acked=%v missing=%v", e.ID, e.Attempts, e.AckedBy, e.Missing)
	}
}

func (p *presenter) delivered(ids []message.ID) {
	if len(ids) == 0 {
		p.info.Println("nothing delivered")
		return
	}
	for _, id := range ids {
		p.info.Println(id.String())
	}
}

func (p *presenter) rejected(size, limit int) {
	p.warning.Printfln("line of %d bytes skipped, the limit is %d", size, limit)
}
