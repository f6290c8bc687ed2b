package server

import (
	"context"
	"net"
	"testing"
	"testing/fstest"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

func dialBufconn(t *testing.T, svc *parsing.Service) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, discardLogger())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCParse(t *testing.T) {
	conn := dialBufconn(t, newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}))
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"text": "RECEIPT\nSTORE acme\nTOTAL 42"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, ParseMethod, req, out); err != nil {
		t.Fatalf("Invoke Parse: %v", err)
	}

	got := out.AsMap()
	if got["outcome"] != "extracted" || got["model"] != "receipt" {
		t.Fatalf("response = %v", got)
	}
	fields := got["data"].(map[string]any)["fields"].(map[string]any)
	// structpb carries numbers as float64
	if fields["total"] != float64(42) || fields["store"] != "acme" {
		t.Errorf("fields = %v", fields)
	}
	if key, _ := got["uniqueness_key"].(string); len(key) != 64 {
		t.Errorf("uniqueness_key = %v", got["uniqueness_key"])
	}
}

func TestGRPCParseNoMatch(t *testing.T) {
	conn := dialBufconn(t, newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}))

	req, _ := structpb.NewStruct(map[string]any{"text": "nothing here"})
	out := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), ParseMethod, req, out); err != nil {
		t.Fatalf("Invoke Parse: %v", err)
	}
	got := out.AsMap()
	if got["outcome"] != "no_match" {
		t.Errorf("outcome = %v", got["outcome"])
	}
	if _, ok := got["model"]; ok {
		t.Errorf("model should be omitted, got %v", got["model"])
	}
}

func TestGRPCParseInvalidArgument(t *testing.T) {
	conn := dialBufconn(t, newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}))

	tests := []struct {
		name string
		req  map[string]any
	}{
		{name: "missing text", req: map[string]any{}},
		{name: "text not a string", req: map[string]any{"text": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := structpb.NewStruct(tt.req)
			if err != nil {
				t.Fatalf("NewStruct: %v", err)
			}
			err = conn.Invoke(context.Background(), ParseMethod, req, new(structpb.Struct))
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("code = %v, err = %v", status.Code(err), err)
			}
		})
	}
}

func TestGRPCListAndReload(t *testing.T) {
	fsys := fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}
	conn := dialBufconn(t, newTestService(t, fsys))
	ctx := context.Background()

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, ListModelsMethod, &emptypb.Empty{}, out); err != nil {
		t.Fatalf("Invoke ListModels: %v", err)
	}
	models := out.AsMap()["models"].([]any)
	if len(models) != 1 || models[0].(map[string]any)["name"] != "receipt" {
		t.Fatalf("models = %v", models)
	}

	fsys["broken.yml"] = &fstest.MapFile{Data: []byte(brokenDRM)}
	err := conn.Invoke(ctx, ReloadModelsMethod, &emptypb.Empty{}, new(structpb.Struct))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("reload with broken model: code = %v, err = %v", status.Code(err), err)
	}

	delete(fsys, "broken.yml")
	out = new(structpb.Struct)
	if err := conn.Invoke(ctx, ReloadModelsMethod, &emptypb.Empty{}, out); err != nil {
		t.Fatalf("Invoke ReloadModels: %v", err)
	}
	if out.AsMap()["models"] != float64(1) {
		t.Errorf("reload = %v", out.AsMap())
	}
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t, newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ParserServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}
