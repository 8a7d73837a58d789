package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"rbcast/internal/config"
	"rbcast/internal/message"
	"rbcast/internal/transport"
)

// healthStatus returns UNKNOWN when the check itself fails so it can be
// polled from require.Eventually.
func healthStatus(client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.Status
}

func TestAdmin_HealthReflectsOverdueMessages(t *testing.T) {
	network := transport.NewNetwork()
	ep, err := network.Endpoint(addr(1))
	require.NoError(t, err)
	peer, err := network.Endpoint(addr(2))
	require.NoError(t, err)

	cfg := testConfig(1, 2)
	cfg.AdminAddr = "127.0.0.1:0"
	n, err := New(cfg, ep)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	require.NotEmpty(t, n.AdminAddr())
	conn, err := grpc.NewClient(n.AdminAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(client, OutboxService))

	// Nobody runs at addr(2): the message stays unacknowledged.
	id := n.Send("unanswered")
	require.Eventually(t, func() bool {
		return healthStatus(client, OutboxService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, eventually, tick)

	// Acknowledge on behalf of process 2.
	ack, err := n.codec.Encode(&message.Ack{From: 2, ID: id})
	require.NoError(t, err)
	require.True(t, network.Inject(peer.LocalAddr(), addr(1), ack))

	require.Eventually(t, func() bool {
		return healthStatus(client, OutboxService) == healthpb.HealthCheckResponse_SERVING
	}, eventually, tick)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(client, ""))
}

func TestAdmin_ListenFailure(t *testing.T) {
	network := transport.NewNetwork()
	ep, err := network.Endpoint(addr(1))
	require.NoError(t, err)

	cfg := testConfig(1, 1)
	cfg.AdminAddr = "256.256.256.256:1"
	n, err := New(cfg, ep)
	require.NoError(t, err)

	assert.Error(t, n.Start(context.Background()))
	n.Stop()
	assert.Empty(t, n.AdminAddr())
}

func TestNoAdminByDefault(t *testing.T) {
	network := transport.NewNetwork()
	ep, err := network.Endpoint(addr(1))
	require.NoError(t, err)

	n, err := New(config.Config{
		ProcessID:       1,
		ListenAddr:      addr(1),
		RetransmitAfter: time.Second,
		RepeatInterval:  time.Second,
		ScanInterval:    time.Second,
	}, ep)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	assert.Empty(t, n.AdminAddr())
}
