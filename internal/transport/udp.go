package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

// UDP is a Transport over a single bound UDP socket.
type UDP struct {
	conn *net.UDPConn

	mu       sync.Mutex
	resolved map[string]*net.UDPAddr // target -> resolved address
}

// ListenUDP binds a UDP socket on addr ("host:port"; port 0 picks a free one).
func ListenUDP(addr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &UDP{
		conn:     conn,
		resolved: make(map[string]*net.UDPAddr),
	}, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

// Broadcast sends data to every target, logging individual failures.
func (u *UDP) Broadcast(data []byte, targets []string) int {
	sent := 0
	for _, target := range targets {
		if err := u.sendTo(data, target); err != nil {
			log.Printf("[%s] send to %s failed: %v", u.LocalAddr(), target, err)
			continue
		}
		sent++
	}
	return sent
}

func (u *UDP) sendTo(data []byte, target string) error {
	addr, err := u.resolve(target)
	if err != nil {
		return err
	}
	_, err = u.conn.WriteToUDP(data, addr)
	return err
}

// resolve caches target resolution; the peer set never changes.
func (u *UDP) resolve(target string) (*net.UDPAddr, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if addr, exists := u.resolved[target]; exists {
		return addr, nil
	}
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	u.resolved[target] = addr
	return addr, nil
}

// Receive blocks for the next datagram.
func (u *UDP) Receive() ([]byte, string, error) {
	buf := make([]byte, MaxDatagramSize)
	n, addr, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, "", ErrClosed
		}
		return nil, "", err
	}
	return buf[:n], addr.String(), nil
}

// Close closes the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
