// Package it runs in-process clusters of nodes over real UDP sockets on the
// loopback interface for integration tests.
package it

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"rbcast/internal/config"
	"rbcast/internal/message"
	"rbcast/internal/node"
	"rbcast/internal/transport"
)

// Options tune a test cluster.
type Options struct {
	Codec            string
	RetransmitAfter  time.Duration
	RepeatInterval   time.Duration
	ScanInterval     time.Duration
	MaxRetryDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Codec == "" {
		o.Codec = "json"
	}
	if o.RetransmitAfter <= 0 {
		o.RetransmitAfter = 150 * time.Millisecond
	}
	if o.RepeatInterval <= 0 {
		o.RepeatInterval = 75 * time.Millisecond
	}
	if o.ScanInterval <= 0 {
		o.ScanInterval = 25 * time.Millisecond
	}
	return o
}

// Delivery is one message delivered to a node's application.
type Delivery struct {
	Origin    int
	Payload   string
	LocalTime int64
}

// Node represents a single node in the test cluster
type Node struct {
	ID   int
	Addr string

	node         *node.Node
	conn         *grpc.ClientConn
	healthClient healthpb.HealthClient

	mu            sync.Mutex
	deliveries    []Delivery
	undeliverable []message.ID
	stopped       bool
}

func (n *Node) onDeliver(origin int, payload string, localTime int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, Delivery{Origin: origin, Payload: payload, LocalTime: localTime})
}

func (n *Node) onUndeliverable(id message.ID, _ []int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.undeliverable = append(n.undeliverable, id)
}

// Send originates a message from this node.
func (n *Node) Send(payload string) message.ID {
	return n.node.Send(payload)
}

// Deliveries returns a copy of everything delivered so far.
func (n *Node) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery(nil), n.deliveries...)
}

// Undeliverable returns the ids this node gave up on.
func (n *Node) Undeliverable() []message.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]message.ID(nil), n.undeliverable...)
}

// Stats returns the engine counters.
func (n *Node) Stats() node.Stats {
	return n.node.Stats()
}

// Health queries the node's admin server for service.
func (n *Node) Health(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := n.healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

// Stop stops a single node
func (n *Node) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
	}
	n.node.Stop()
}

// Cluster represents a test cluster of nodes
type Cluster struct {
	mu    sync.Mutex
	nodes []*Node
}

// StartCluster binds size UDP sockets on the loopback interface, wires every
// node to all the others and waits until each admin server reports SERVING.
func StartCluster(ctx context.Context, size int, opts Options) (*Cluster, error) {
	opts = opts.withDefaults()

	// Bind first so every node knows every address before starting.
	transports := make([]*transport.UDP, 0, size)
	for i := 0; i < size; i++ {
		tr, err := transport.ListenUDP("127.0.0.1:0")
		if err != nil {
			for _, t := range transports {
				t.Close()
			}
			return nil, fmt.Errorf("failed to bind node %d: %w", i+1, err)
		}
		transports = append(transports, tr)
	}

	c := &Cluster{}
	for i, tr := range transports {
		pid := i + 1
		cfg := config.Default()
		cfg.ProcessID = pid
		cfg.ListenAddr = tr.LocalAddr()
		cfg.AdminAddr = "127.0.0.1:0"
		cfg.Codec = opts.Codec
		cfg.RetransmitAfter = opts.RetransmitAfter
		cfg.RepeatInterval = opts.RepeatInterval
		cfg.ScanInterval = opts.ScanInterval
		cfg.MaxRetryDuration = opts.MaxRetryDuration
		for j, other := range transports {
			if j != i {
				cfg.Peers = append(cfg.Peers, config.Peer{ID: j + 1, Addr: other.LocalAddr()})
			}
		}

		if err := c.startNode(ctx, cfg, tr); err != nil {
			c.Stop()
			for _, t := range transports[i+1:] {
				t.Close()
			}
			return nil, fmt.Errorf("failed to start node %d: %w", pid, err)
		}
	}
	return c, nil
}

func (c *Cluster) startNode(ctx context.Context, cfg config.Config, tr transport.Transport) error {
	tn := &Node{ID: cfg.ProcessID, Addr: cfg.ListenAddr}

	n, err := node.New(cfg, tr, node.WithObserver(node.ObserverFuncs{
		Deliver:       tn.onDeliver,
		Undeliverable: tn.onUndeliverable,
	}))
	if err != nil {
		tr.Close()
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	tn.node = n

	conn, err := grpc.NewClient(n.AdminAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		n.Stop()
		return fmt.Errorf("failed to dial admin server of node %d: %w", cfg.ProcessID, err)
	}
	tn.conn = conn
	tn.healthClient = healthpb.NewHealthClient(conn)

	c.mu.Lock()
	c.nodes = append(c.nodes, tn)
	c.mu.Unlock()

	if err := waitForReady(ctx, tn, 10*time.Second); err != nil {
		return fmt.Errorf("node %d failed to become ready: %w", cfg.ProcessID, err)
	}
	return nil
}

// waitForReady waits for a node to be ready by checking health endpoint
func waitForReady(ctx context.Context, n *Node, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for node %d to be ready", n.ID)
			}

			healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			status, err := n.Health(healthCtx, "")
			cancel()

			if err == nil && status == healthpb.HealthCheckResponse_SERVING {
				return nil
			}
		}
	}
}

// GetNode returns a node by process id
func (c *Cluster) GetNode(pid int) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID == pid {
			return n
		}
	}
	return nil
}

// Nodes returns every node, crashed ones included.
func (c *Cluster) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.nodes...)
}

// KillNode crash-stops a node: it stops sending and receiving without
// notifying anyone.
func (c *Cluster) KillNode(pid int) error {
	n := c.GetNode(pid)
	if n == nil {
		return fmt.Errorf("node %d not found", pid)
	}
	n.Stop()
	return nil
}

// Stop stops all nodes in the cluster
func (c *Cluster) Stop() {
	c.mu.Lock()
	nodes := c.nodes
	c.nodes = nil
	c.mu.Unlock()

	for _, n := range nodes {
		n.Stop()
	}
}
