package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ScanRequest is the wire shape of a leaf ScanPlan. It mirrors
// search.ScanPlan field-for-field; search avoids importing this
// package at the type level to keep the core planner free of gRPC
// concerns, so callers translate at the RPC boundary (see invokeScan
// in internal/search).
type ScanRequest struct {
	TraceID   string   `json:"trace_id"`
	Tables    []string `json:"tables"`
	StartTime int64    `json:"start_time"`
	EndTime   int64    `json:"end_time"`
	SQL       string   `json:"sql"`
}

// ScanRow is one result row, carried as a JSON object rather than a
// typed column schema: leaves may scan differently-shaped streams
// within one multi-stream search.
type ScanRow map[string]any

// ScanResponse is the wire shape returned by a leaf.
type ScanResponse struct {
	Rows          []ScanRow `json:"rows"`
	FunctionError string    `json:"function_error,omitempty"`
}

// ScanServer is implemented by a querier node to answer leaf scans.
type ScanServer interface {
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

const serviceName = "openobserve.search.LeafScan"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScanServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Scan",
			Handler:    scanHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "search/leaf_scan.proto",
}

func scanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ScanRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServer).Scan(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Scan"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServer).Scan(ctx, req.(*ScanRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// RegisterScanServer wires a ScanServer implementation into a
// *grpc.Server. The server decodes each call with the registered codec
// its content-subtype names; ScanClient always asks for the JSON codec
// registered in codec.go.
func RegisterScanServer(s *grpc.Server, impl ScanServer) {
	s.RegisterService(&serviceDesc, impl)
}

// ScanClient issues a Scan RPC against a leaf's gRPC connection using
// the JSON codec.
func ScanClient(ctx context.Context, conn grpc.ClientConnInterface, req *ScanRequest) (*ScanResponse, error) {
	resp := new(ScanResponse)
	err := conn.Invoke(ctx, "/"+serviceName+"/Scan", req, resp, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
