package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Status is the master's reportable state at the moment of a Status
// call. StartedAt uses protobuf's well-known Timestamp type rather than
// time.Time directly so the JSON wire shape matches what a proto-native
// Admin client would expect from a google.protobuf.Timestamp field,
// even though this service's codec is JSON rather than binary protobuf
// (see codec.go).
type Status struct {
	Generation  string                 `json:"generation"`
	WorkerCount int                    `json:"worker_count"`
	UpgradePID  int                    `json:"upgrade_pid,omitempty"`
	StartedAt   *timestamppb.Timestamp `json:"started_at,omitempty"`
}

// Empty is the request message for every method here that takes no
// arguments.
type Empty struct{}

// Ack is the response message for every fire-and-forget control call.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Controller is the subset of the master's state machine the admin
// surface can observe or nudge. internal/master.Master satisfies this
// without admin importing master, avoiding an import cycle (master
// already depends on admin for the Status type it returns).
type Controller interface {
	Status() Status
	RequestReconfigure()
	RequestReopen()
	RequestUpgrade()
}

// AdminServer is the interface a hand-written ServiceDesc dispatches
// to, standing in for what protoc-gen-go-grpc would otherwise generate
// from an admin.proto.
type AdminServer interface {
	Status(context.Context, *Empty) (*Status, error)
	Reload(context.Context, *Empty) (*Ack, error)
	Reopen(context.Context, *Empty) (*Ack, error)
	Upgrade(context.Context, *Empty) (*Ack, error)
}

// server adapts a Controller to AdminServer.
type server struct {
	ctrl Controller
}

// NewServer wraps ctrl as an AdminServer ready to register on a
// *grpc.Server.
func NewServer(ctrl Controller) AdminServer {
	return &server{ctrl: ctrl}
}

func (s *server) Status(ctx context.Context, _ *Empty) (*Status, error) {
	st := s.ctrl.Status()
	return &st, nil
}

func (s *server) Reload(ctx context.Context, _ *Empty) (*Ack, error) {
	s.ctrl.RequestReconfigure()
	return &Ack{OK: true, Message: "reconfigure requested"}, nil
}

func (s *server) Reopen(ctx context.Context, _ *Empty) (*Ack, error) {
	s.ctrl.RequestReopen()
	return &Ack{OK: true, Message: "reopen requested"}, nil
}

func (s *server) Upgrade(ctx context.Context, _ *Empty) (*Ack, error) {
	s.ctrl.RequestUpgrade()
	return &Ack{OK: true, Message: "upgrade requested"}, nil
}

// ServiceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// _ServiceDesc for the Admin service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "quasar.admin.Admin",
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: adminStatusHandler},
		{MethodName: "Reload", Handler: adminReloadHandler},
		{MethodName: "Reopen", Handler: adminReopenHandler},
		{MethodName: "Upgrade", Handler: adminUpgradeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/admin/service.go",
}

func adminStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quasar.admin.Admin/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Status(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func adminReloadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Reload(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quasar.admin.Admin/Reload"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Reload(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func adminReopenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Reopen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quasar.admin.Admin/Reopen"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Reopen(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func adminUpgradeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Upgrade(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quasar.admin.Admin/Upgrade"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Upgrade(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}
