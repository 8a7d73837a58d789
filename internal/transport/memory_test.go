package transport

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNetwork_Delivery(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Endpoint("a")
	b, _ := n.Endpoint("b")
	c, _ := n.Endpoint("c")

	if sent := a.Broadcast([]byte("hello"), []string{"b", "c"}); sent != 2 {
		t.Fatalf("Expected 2 sends, got %d", sent)
	}
	for _, ep := range []*Endpoint{b, c} {
		data, from := receiveWithTimeout(t, ep, time.Second)
		if string(data) != "hello" || from != "a" {
			t.Errorf("%s: unexpected datagram %q from %s", ep.LocalAddr(), data, from)
		}
	}
}

func TestNetwork_DuplicateAddress(t *testing.T) {
	n := NewNetwork()
	if _, err := n.Endpoint("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Endpoint("a"); err == nil {
		t.Error("Expected error attaching a second endpoint at the same address")
	}
}

func TestNetwork_UnknownTargetDoesNotAbortBroadcast(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Endpoint("a")
	b, _ := n.Endpoint("b")

	if sent := a.Broadcast([]byte("x"), []string{"missing", "b"}); sent != 1 {
		t.Errorf("Expected 1 successful send, got %d", sent)
	}
	data, _ := receiveWithTimeout(t, b, time.Second)
	if string(data) != "x" {
		t.Errorf("Expected x, got %q", data)
	}
}

func TestNetwork_DropFunc(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Endpoint("a")
	b, _ := n.Endpoint("b")

	var dropped atomic.Int32
	n.SetDropFunc(func(from, to string, data []byte) bool {
		if string(data) == "lost" {
			dropped.Add(1)
			return true
		}
		return false
	})

	// A dropped datagram still counts as sent: loss is silent.
	if sent := a.Broadcast([]byte("lost"), []string{"b"}); sent != 1 {
		t.Errorf("Expected silent loss to count as a send, got %d", sent)
	}
	a.Broadcast([]byte("kept"), []string{"b"})

	data, _ := receiveWithTimeout(t, b, time.Second)
	if string(data) != "kept" {
		t.Errorf("Expected only the kept datagram, got %q", data)
	}
	if dropped.Load() != 1 {
		t.Errorf("Expected 1 drop, got %d", dropped.Load())
	}
}

func TestNetwork_SenderBufferNotAliased(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Endpoint("a")
	b, _ := n.Endpoint("b")

	buf := []byte("abc")
	a.Broadcast(buf, []string{"b"})
	buf[0] = 'X'

	data, _ := receiveWithTimeout(t, b, time.Second)
	if string(data) != "abc" {
		t.Errorf("Receiver saw sender's later mutation: %q", data)
	}
}

func TestNetwork_Inject(t *testing.T) {
	n := NewNetwork()
	b, _ := n.Endpoint("b")
	n.SetDropFunc(func(string, string, []byte) bool { return true })

	if !n.Inject("z", "b", []byte("raw")) {
		t.Fatal("Inject to an attached endpoint should succeed")
	}
	data, from := receiveWithTimeout(t, b, time.Second)
	if string(data) != "raw" || from != "z" {
		t.Errorf("Unexpected injected datagram %q from %s", data, from)
	}
	if n.Inject("z", "nobody", []byte("raw")) {
		t.Error("Inject to a missing endpoint should fail")
	}
}

func TestEndpoint_Close(t *testing.T) {
	n := NewNetwork()
	a, _ := n.Endpoint("a")
	b, _ := n.Endpoint("b")

	b.Close()
	b.Close()

	if _, _, err := b.Receive(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if sent := a.Broadcast([]byte("x"), []string{"b"}); sent != 0 {
		t.Errorf("Sends to a closed endpoint must fail, got %d", sent)
	}
	if _, err := n.Endpoint("b"); err != nil {
		t.Errorf("Address should be reusable after Close: %v", err)
	}
}

var _ Transport = (*Endpoint)(nil)
