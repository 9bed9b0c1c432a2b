package grpc

import (
    "context"
    "crypto/tls"
    "net"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-clusterstate/pkg/observability/tracing"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
)

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    lis    net.Listener
    srv    *grpc.Server
    tlsCfg *tls.Config
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type statusBlob struct{ Data []byte `json:"data"` }

// aggregatorServer defines the methods we expose.
type aggregatorServer interface {
    GetStatus(ctx context.Context, in *empty) (*statusBlob, error)
    Report(ctx context.Context, in *transport.ReportRequest) (*transport.ReportResponse, error)
    Digest(ctx context.Context, in *transport.DigestRequest) (*transport.DigestResponse, error)
    Command(ctx context.Context, in *transport.CommandRequest) (*transport.CommandResponse, error)
}

type aggImpl struct {
    status  transport.StatusFunc
    report  transport.ReportFunc
    digest  transport.DigestFunc
    command transport.CommandFunc
}

func (a *aggImpl) GetStatus(ctx context.Context, _ *empty) (*statusBlob, error) {
    ctx, end := tracing.StartSpan(ctx, "grpc.status")
    defer end()
    b, err := a.status(ctx)
    if err != nil { return nil, err }
    return &statusBlob{Data: b}, nil
}

func (a *aggImpl) Report(ctx context.Context, in *transport.ReportRequest) (*transport.ReportResponse, error) {
    if in == nil { in = &transport.ReportRequest{} }
    if a.report == nil { return &transport.ReportResponse{Error: "not implemented"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.report")
    defer end()
    out, err := a.report(ctx, *in)
    if err != nil { return &transport.ReportResponse{Error: err.Error()}, nil }
    return &out, nil
}

func (a *aggImpl) Digest(ctx context.Context, in *transport.DigestRequest) (*transport.DigestResponse, error) {
    if in == nil { in = &transport.DigestRequest{} }
    if a.digest == nil { return &transport.DigestResponse{Error: "not implemented"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.digest")
    defer end()
    out, err := a.digest(ctx, *in)
    if err != nil { return &transport.DigestResponse{Error: err.Error()}, nil }
    return &out, nil
}

func (a *aggImpl) Command(ctx context.Context, in *transport.CommandRequest) (*transport.CommandResponse, error) {
    if in == nil { in = &transport.CommandRequest{} }
    if a.command == nil { return &transport.CommandResponse{Error: "not implemented"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.command")
    defer end()
    out, err := a.command(ctx, *in)
    if err != nil { return &transport.CommandResponse{Error: err.Error()}, nil }
    return &out, nil
}

// Service descriptor and handlers (hand-written, no codegen required)
var _Aggregator_serviceDesc = grpc.ServiceDesc{
    ServiceName: "clusterstate.v1.Aggregator",
    HandlerType: (*aggregatorServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "GetStatus", Handler: _Aggregator_GetStatus_Handler},
        {MethodName: "Report", Handler: _Aggregator_Report_Handler},
        {MethodName: "Digest", Handler: _Aggregator_Digest_Handler},
        {MethodName: "Command", Handler: _Aggregator_Command_Handler},
    },
}

func _Aggregator_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(empty)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(aggregatorServer).GetStatus(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/clusterstate.v1.Aggregator/GetStatus"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(aggregatorServer).GetStatus(ctx, req.(*empty))
    }
    return interceptor(ctx, in, info, handler)
}

func _Aggregator_Report_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(transport.ReportRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(aggregatorServer).Report(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/clusterstate.v1.Aggregator/Report"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(aggregatorServer).Report(ctx, req.(*transport.ReportRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func _Aggregator_Digest_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(transport.DigestRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(aggregatorServer).Digest(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/clusterstate.v1.Aggregator/Digest"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(aggregatorServer).Digest(ctx, req.(*transport.DigestRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func _Aggregator_Command_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(transport.CommandRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(aggregatorServer).Command(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/clusterstate.v1.Aggregator/Command"}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(aggregatorServer).Command(ctx, req.(*transport.CommandRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func (s *Server) Start(ctx context.Context, status transport.StatusFunc, report transport.ReportFunc, digest transport.DigestFunc, command transport.CommandFunc) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    s.lis = lis
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    s.srv = srv
    // Health service (always serving for now)
    healthSrv := health.NewServer()
    healthpb.RegisterHealthServer(srv, healthSrv)
    // Register aggregator management service
    srv.RegisterService(&_Aggregator_serviceDesc, &aggImpl{status: status, report: report, digest: digest, command: command})

    go func() {
        <-ctx.Done()
        // Graceful stop with a small timeout fallback
        ch := make(chan struct{})
        go func() { srv.GracefulStop(); close(ch) }()
        select {
        case <-ch:
        case <-time.After(2 * time.Second):
            srv.Stop()
        }
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

func (s *Server) Addr() string { return s.bind }

func (s *Server) Stop(ctx context.Context) error {
    if s.srv == nil { return nil }
    ch := make(chan struct{})
    go func() { s.srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        s.srv.Stop()
    }
    s.srv = nil
    if s.lis != nil { _ = s.lis.Close(); s.lis = nil }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
