// Package rpc serves the standard gRPC health service for the gaze pipeline.
package rpc

import (
	"fmt"
	"net"

	"UnityGaze/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry tracking the capture-to-socket loop.
const ServiceName = "unitygaze.Pipeline"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// StartGRPCServer listens on port and serves health checks in the background.
// Both the overall and the pipeline status start as NOT_SERVING.
func StartGRPCServer(port int) (*Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", addr, err)
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := s.grpc.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}

func (s *Server) Port() int { return s.lis.Addr().(*net.TCPAddr).Port }

// SetServing flips both the overall and the pipeline status.
func (s *Server) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
