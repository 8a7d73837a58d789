package node

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// OutboxService is the health service name that reports NOT_SERVING while
// any sent message is overdue for acknowledgment.
const OutboxService = "rbcast.Outbox"

// adminServer exposes the standard gRPC health service.
type adminServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
}

func startAdmin(addr string) (*adminServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	a := &adminServer{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		lis:        lis,
	}
	healthpb.RegisterHealthServer(a.grpcServer, a.health)

	// Enable gRPC reflection for grpcurl
	reflection.Register(a.grpcServer)

	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(OutboxService, healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			log.Printf("Admin server on %s stopped: %v", addr, err)
		}
	}()
	return a, nil
}

// Addr returns the bound listen address.
func (a *adminServer) Addr() string {
	return a.lis.Addr().String()
}

// SetOutboxHealthy updates the outbox service status.
func (a *adminServer) SetOutboxHealthy(healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	a.health.SetServingStatus(OutboxService, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (a *adminServer) Stop() {
	a.health.Shutdown()
	a.grpcServer.GracefulStop()
}

// AdminAddr returns the admin server address, or "" if none is running.
func (n *Node) AdminAddr() string {
	if n.admin == nil {
		return ""
	}
	return n.admin.Addr()
}
