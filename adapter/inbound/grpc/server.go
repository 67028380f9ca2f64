package grpc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

// Server streams watcher results to gRPC clients
type Server struct {
	broadcaster inbound.EventBroadcaster
	grpcServer  *grpc.Server
	logger      outbound.Logger
}

var _ EventStreamServer = (*Server)(nil)

// NewServer creates a gRPC server fed by broadcaster
func NewServer(broadcaster inbound.EventBroadcaster, logger outbound.Logger) *Server {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	s := &Server{
		broadcaster: broadcaster,
		grpcServer:  grpc.NewServer(),
		logger:      logger,
	}
	RegisterEventStreamServer(s.grpcServer, s)
	return s
}

// Start listens on address and serves in the background
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		if err := s.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", "error", err)
		}
	}()

	s.logger.Info("gRPC server started", "address", address)
	return nil
}

// Serve blocks serving lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop stops the server, forcing it after a timeout
func (s *Server) Stop() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-time.After(10 * time.Second):
		s.logger.Warn("gRPC server stop timed out, forcing shutdown")
		s.grpcServer.Stop()
	}
}

// Subscribe streams every result until the client goes away or the
// broadcast ends
func (s *Server) Subscribe(_ *emptypb.Empty, stream EventStream_SubscribeServer) error {
	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub.ID())

	s.logger.Info("gRPC subscriber connected", "subscription", sub.ID())

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case result, ok := <-sub.C():
			if !ok {
				return nil
			}
			msg, err := ResultToStruct(result)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode result: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// ResultToStruct converts a result to its JSON-shaped Struct
func ResultToStruct(result model.Result) (*structpb.Struct, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// StructToResult is the inverse of ResultToStruct
func StructToResult(msg *structpb.Struct) (model.Result, error) {
	var result model.Result
	data, err := msg.MarshalJSON()
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(data, &result)
	return result, err
}
