package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

const (
	ParserServiceName  = "drmparse.v1.ParserService"
	ParseMethod        = "/drmparse.v1.ParserService/Parse"
	ListModelsMethod   = "/drmparse.v1.ParserService/ListModels"
	ReloadModelsMethod = "/drmparse.v1.ParserService/ReloadModels"

	requestIDMetadataKey = "x-request-id"
)

// ParserServiceServer is the server API for drmparse.v1.ParserService.
// Messages are google.protobuf.Struct so clients need no generated stubs:
// Parse takes {"text": "..."} and returns a ParseResponse object.
type ParserServiceServer interface {
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListModels(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReloadModels(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ParserService_ServiceDesc is the grpc.ServiceDesc for ParserService.
var ParserService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ParserServiceName,
	HandlerType: (*ParserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Parse", Handler: parseHandler},
		{MethodName: "ListModels", Handler: listModelsHandler},
		{MethodName: "ReloadModels", Handler: reloadModelsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drmparse/v1/parser.proto",
}

func RegisterParserServiceServer(s grpc.ServiceRegistrar, srv ParserServiceServer) {
	s.RegisterService(&ParserService_ServiceDesc, srv)
}

func parseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServiceServer).Parse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ParseMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServiceServer).Parse(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listModelsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServiceServer).ListModels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListModelsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServiceServer).ListModels(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func reloadModelsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParserServiceServer).ReloadModels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReloadModelsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParserServiceServer).ReloadModels(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ParserService implements ParserServiceServer over a parsing.Service.
type ParserService struct {
	svc    *parsing.Service
	logger *slog.Logger
}

func NewParserService(svc *parsing.Service, logger *slog.Logger) *ParserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParserService{svc: svc, logger: logger}
}

func (s *ParserService) Parse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	field, ok := req.GetFields()["text"]
	if !ok {
		s.logger.Error("parse request missing text")
		return nil, common.InvalidArgumentError("text is required")
	}
	text, ok := field.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, common.InvalidArgumentError("text must be a string")
	}

	res, err := s.svc.Parse(ctx, "grpc", text.StringValue)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	m, err := toMap(newParseResponse(res))
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func (s *ParserService) ListModels(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	m, err := toMap(map[string]any{"models": s.svc.Describe()})
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func (s *ParserService) ReloadModels(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.svc.Reload(); err != nil {
		return nil, common.ToGRPCError(err)
	}
	out, err := structpb.NewStruct(map[string]any{"models": len(s.svc.Models())})
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// UnaryLogging attaches a request ID and logger to the context and logs
// one line per call.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDMetadataKey); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, requestID)
		reqLogger := common.LoggerFromContext(ctx, logger)
		ctx = common.WithLogger(ctx, logger)

		resp, err := handler(ctx, req)
		if err != nil {
			reqLogger.Warn("grpc_request", "method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		} else {
			reqLogger.Info("grpc_request", "method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}

// NewGRPCServer builds a gRPC server with the parser and health services.
func NewGRPCServer(svc *parsing.Service, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(logger)))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ParserServiceName, healthpb.HealthCheckResponse_SERVING)

	RegisterParserServiceServer(gs, NewParserService(svc, logger))
	return gs, hs
}
