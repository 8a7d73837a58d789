package transport

import (
	"fmt"
	"log"
	"sync"
)

const endpointBuffer = 1024

// DropFunc decides whether a datagram from one address to another is lost.
type DropFunc func(from, to string, data []byte) bool

type datagram struct {
	data []byte
	from string
}

// Network is an in-memory datagram network connecting Endpoints by address.
type Network struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	drop      DropFunc
}

// NewNetwork creates an empty, loss-free network.
func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[string]*Endpoint),
	}
}

// SetDropFunc installs a loss model; nil disables loss.
func (n *Network) SetDropFunc(drop DropFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drop = drop
}

// Endpoint attaches a new endpoint at addr.
func (n *Network) Endpoint(addr string) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[addr]; exists {
		return nil, fmt.Errorf("address %s already in use", addr)
	}
	ep := &Endpoint{
		network: n,
		addr:    addr,
		inbox:   make(chan datagram, endpointBuffer),
		done:    make(chan struct{}),
	}
	n.endpoints[addr] = ep
	return ep, nil
}

// Inject delivers a raw datagram to addr as if sent from from, bypassing the
// loss model. Returns false if nothing listens at addr.
func (n *Network) Inject(from, to string, data []byte) bool {
	n.mu.RLock()
	ep, exists := n.endpoints[to]
	n.mu.RUnlock()
	if !exists {
		return false
	}
	return ep.enqueue(datagram{data: append([]byte(nil), data...), from: from})
}

func (n *Network) send(from, to string, data []byte) error {
	n.mu.RLock()
	ep, exists := n.endpoints[to]
	drop := n.drop
	n.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no endpoint at %s", to)
	}
	if drop != nil && drop(from, to, data) {
		return nil
	}
	ep.enqueue(datagram{data: append([]byte(nil), data...), from: from})
	return nil
}

func (n *Network) detach(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, addr)
}

// Endpoint is a Transport attached to a Network.
type Endpoint struct {
	network   *Network
	addr      string
	inbox     chan datagram
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue never blocks: a full inbox drops the datagram, like a full socket
// buffer would.
func (e *Endpoint) enqueue(d datagram) bool {
	select {
	case <-e.done:
		return false
	default:
	}
	select {
	case e.inbox <- d:
		return true
	default:
		return false
	}
}

// LocalAddr returns the endpoint address.
func (e *Endpoint) LocalAddr() string {
	return e.addr
}

// Broadcast sends data to every target, logging individual failures.
func (e *Endpoint) Broadcast(data []byte, targets []string) int {
	sent := 0
	for _, target := range targets {
		if err := e.network.send(e.addr, target, data); err != nil {
			log.Printf("[%s] send to %s failed: %v", e.addr, target, err)
			continue
		}
		sent++
	}
	return sent
}

// Receive blocks until a datagram arrives or the endpoint is closed.
func (e *Endpoint) Receive() ([]byte, string, error) {
	select {
	case d := <-e.inbox:
		return d.data, d.from, nil
	case <-e.done:
		return nil, "", ErrClosed
	}
}

// Close detaches the endpoint; later sends to its address fail.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.network.detach(e.addr)
	})
	return nil
}
