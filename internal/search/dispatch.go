package search

import (
	"context"

	"google.golang.org/grpc"

	"github.com/openobserve/openobserve-sub015/internal/search/rpc"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// invokeScan translates a ScanPlan to the wire rpc.ScanRequest shape,
// invokes the leaf's Scan RPC, and translates the response rows back
// into value.Record.
func invokeScan(ctx context.Context, conn grpc.ClientConnInterface, plan ScanPlan) ([]value.Record, error) {
	resp, err := rpc.ScanClient(ctx, conn, &rpc.ScanRequest{
		TraceID:   plan.TraceID,
		Tables:    plan.Tables,
		StartTime: plan.StartTime,
		EndTime:   plan.EndTime,
		SQL:       plan.SQL,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]value.Record, len(resp.Rows))
	for i, r := range resp.Rows {
		rec := make(value.Record, len(r))
		for k, v := range r {
			rec[k] = value.FromAny(v)
		}
		rows[i] = rec
	}
	return rows, nil
}

// Node is one querier node eligible to receive a leaf scan plan.
type Node struct {
	ID   string
	Addr string
}

// Membership resolves the set of online querier nodes a coordinator
// may dispatch scan plans to (the Go analogue of
// get_cached_online_querier_nodes).
type Membership interface {
	OnlineQuerierNodes(ctx context.Context) ([]Node, error)
}

// ScanPlan is the unit of work shipped to a single leaf: the table(s)
// touched, the time range to scan, and the rewritten SQL subtree for
// that delta.
type ScanPlan struct {
	TraceID   string
	Tables    []string
	StartTime int64
	EndTime   int64
	SQL       string
}

// LeafClient issues one ScanPlan to a single node over a gRPC
// connection and returns the rows it produced.
type LeafClient interface {
	Scan(ctx context.Context, node Node, plan ScanPlan) ([]value.Record, error)
}

// grpcLeafClient is the production LeafClient: it dials the node's
// address for every Scan and closes the connection when that call
// returns. The wire codec is plain JSON-over-gRPC
// (see rpc package) rather than a generated protobuf message set,
// since this module has no protoc toolchain available to compile .proto
// definitions; see DESIGN.md.
type grpcLeafClient struct {
	dial func(addr string) (*grpc.ClientConn, error)
}

// NewGRPCLeafClient builds a LeafClient that dials nodes on demand
// using dial (typically grpc.NewClient with the node's address).
func NewGRPCLeafClient(dial func(addr string) (*grpc.ClientConn, error)) LeafClient {
	return &grpcLeafClient{dial: dial}
}

func (c *grpcLeafClient) Scan(ctx context.Context, node Node, plan ScanPlan) ([]value.Record, error) {
	conn, err := c.dial(node.Addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return invokeScan(ctx, conn, plan)
}

// ClusterExecutor implements LeafExecutor (see cache.go) by resolving
// online nodes via Membership and fanning a delta's ScanPlan out to
// each, merging their rows back in request order.
type ClusterExecutor struct {
	Membership Membership
	Client     LeafClient
	Tables     []string
}

func (e *ClusterExecutor) ExecuteDelta(ctx context.Context, plan Plan, delta QueryDelta) ([]value.Record, error) {
	nodes, err := e.Membership.OnlineQuerierNodes(ctx)
	if err != nil {
		return nil, err
	}
	scan := ScanPlan{
		TraceID:   plan.TraceID,
		Tables:    e.Tables,
		StartTime: delta.DeltaStartTime,
		EndTime:   delta.DeltaEndTime,
		SQL:       plan.SQL,
	}

	var merged []value.Record
	for _, n := range nodes {
		select {
		case <-ctx.Done():
			return merged, ctx.Err()
		default:
		}
		rows, err := e.Client.Scan(ctx, n, scan)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}
	return merged, nil
}
