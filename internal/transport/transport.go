package transport

import "errors"

// MaxDatagramSize bounds a single datagram payload.
const MaxDatagramSize = 64 * 1024

// ErrClosed is returned by Receive once the transport has been closed.
var ErrClosed = errors.New("transport closed")

// Transport sends and receives datagrams addressed by "host:port" strings.
type Transport interface {
	// Broadcast sends data to every target and returns the number of sends
	// that did not fail locally. A successful send is not a delivery.
	Broadcast(data []byte, targets []string) int
	// Receive blocks until one datagram arrives and returns it together with
	// the sender's address.
	Receive() ([]byte, string, error)
	// LocalAddr returns the address peers use to reach this transport.
	LocalAddr() string
	// Close releases the transport and unblocks Receive.
	Close() error
}
