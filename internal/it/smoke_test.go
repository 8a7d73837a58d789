package it

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"rbcast/internal/node"
)

func payloads(ds []Delivery) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, fmt.Sprintf("%d:%s", d.Origin, d.Payload))
	}
	sort.Strings(out)
	return out
}

func TestSmoke_DisseminateOverUDP(t *testing.T) {
	for _, codec := range []string{"json", "proto"} {
		t.Run(codec, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			cluster, err := StartCluster(ctx, 3, Options{Codec: codec})
			require.NoError(t, err, "Failed to start cluster")
			defer cluster.Stop()

			n1 := cluster.GetNode(1)
			require.NotNil(t, n1)
			n3 := cluster.GetNode(3)
			require.NotNil(t, n3)

			id := n1.Send("hello")
			assert.Equal(t, "1-1", id.String())
			n3.Send("world")

			want := []string{"1:hello", "3:world"}
			for _, n := range cluster.Nodes() {
				n := n
				require.Eventually(t, func() bool {
					return len(n.Deliveries()) == len(want)
				}, 10*time.Second, 20*time.Millisecond, "node %d deliveries", n.ID)
				assert.Equal(t, want, payloads(n.Deliveries()))
			}

			// Every originator eventually sees the full group acknowledge.
			require.Eventually(t, func() bool {
				return n1.Stats().Completed == 1 && n3.Stats().Completed == 1
			}, 10*time.Second, 20*time.Millisecond)
		})
	}
}

func TestQuorum_CrashedPeerKeepsMessagePending(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cluster, err := StartCluster(ctx, 3, Options{})
	require.NoError(t, err)
	defer cluster.Stop()

	require.NoError(t, cluster.KillNode(3))

	n1 := cluster.GetNode(1)
	n1.Send("while-down")

	n2 := cluster.GetNode(2)
	require.Eventually(t, func() bool {
		return len(n2.Deliveries()) == 1
	}, 10*time.Second, 20*time.Millisecond)

	// Node 3 never acknowledges, so node 1 keeps retransmitting and turns
	// its outbox health to NOT_SERVING once the message is overdue.
	require.Eventually(t, func() bool {
		return n1.Stats().Retransmissions >= 2
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		checkCtx, checkCancel := context.WithTimeout(ctx, time.Second)
		defer checkCancel()
		status, err := n1.Health(checkCtx, node.OutboxService)
		return err == nil && status == healthpb.HealthCheckResponse_NOT_SERVING
	}, 10*time.Second, 20*time.Millisecond)

	assert.Empty(t, cluster.GetNode(3).Deliveries())
	assert.Equal(t, uint64(0), n1.Stats().Completed)
}

func TestQuorum_UndeliverableAfterMaxRetry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cluster, err := StartCluster(ctx, 3, Options{MaxRetryDuration: 400 * time.Millisecond})
	require.NoError(t, err)
	defer cluster.Stop()

	require.NoError(t, cluster.KillNode(2))

	n1 := cluster.GetNode(1)
	id := n1.Send("doomed")

	require.Eventually(t, func() bool {
		return len(n1.Undeliverable()) == 1
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, id, n1.Undeliverable()[0])

	// Once given up, the outbox is healthy again.
	require.Eventually(t, func() bool {
		checkCtx, checkCancel := context.WithTimeout(ctx, time.Second)
		defer checkCancel()
		status, err := n1.Health(checkCtx, node.OutboxService)
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 10*time.Second, 20*time.Millisecond)
}

func TestKillNode_Unknown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cluster, err := StartCluster(ctx, 2, Options{})
	require.NoError(t, err)
	defer cluster.Stop()

	assert.Error(t, cluster.KillNode(9))
	assert.Nil(t, cluster.GetNode(9))
}
