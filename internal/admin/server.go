package admin

import (
	"net"

	"google.golang.org/grpc"

	"github.com/oriys/quasar/internal/logging"
)

// Serve starts a gRPC server using the JSON codec on lis and registers
// ctrl as the Admin service. It returns immediately; the server runs in
// its own goroutine until lis closes or Stop/GracefulStop is called on
// the returned *grpc.Server.
func Serve(lis net.Listener, ctrl Controller) *grpc.Server {
	s := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.RegisterService(&ServiceDesc, NewServer(ctrl))
	go func() {
		if err := s.Serve(lis); err != nil {
			logging.Op().Warn("admin server stopped", "error", err)
		}
	}()
	return s
}
