package main

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/search/rpc"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// encodeTable packs the (org, stream_type, stream) a ScanPlan scans
// into the single string rpc.ScanRequest.Tables carries, since the
// wire contract names tables generically rather than structurally.
// There's exactly one table per request in this codebase (no joins
// across streams within a single leaf scan), so one entry suffices.
func encodeTable(org string, streamType filelist.StreamType, stream string) string {
	return org + "|" + string(streamType) + "|" + stream
}

func decodeTable(table string) (org string, streamType filelist.StreamType, stream string, ok bool) {
	parts := strings.SplitN(table, "|", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], filelist.StreamType(parts[1]), parts[2], true
}

// fromClausePattern extracts the stream name a query selects from.
// There is no SQL AST parser in this codebase's dependency set (see
// internal/search/plan.go's own literal-rewrite note), so table
// resolution works directly off the query text, matching the same
// constraint the rest of the search package already lives with.
var fromClausePattern = regexp.MustCompile(`(?i)FROM\s+"?([A-Za-z_][A-Za-z0-9_]*)"?`)

func extractStreamName(sql string) (string, bool) {
	m := fromClausePattern.FindStringSubmatch(sql)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// selfLeaf is the sole querier node in a single-binary search
// coordinator: it answers leaf scans by reading segments straight out
// of the file-list catalog and object storage rather than dispatching
// to a distinct remote process. Only a time-range restriction is
// applied; arbitrary SQL predicate evaluation over scanned rows is out
// of scope here (§"Non-goals: being a general RDBMS" — there is no
// SQL execution engine anywhere in the example pack this module draws
// on), so every row in the matched segments within range is returned
// and the caller's own downstream aggregation (histogram join, top-k,
// cache merge) operates on the unfiltered set.
type selfLeaf struct {
	files filelist.Store
	store objectstore.ObjectStoreExt
}

func (l *selfLeaf) Scan(ctx context.Context, req *rpc.ScanRequest) (*rpc.ScanResponse, error) {
	var rows []rpc.ScanRow
	for _, table := range req.Tables {
		org, streamType, stream, ok := decodeTable(table)
		if !ok {
			continue
		}
		tableRows, err := l.scanOne(ctx, org, streamType, stream, req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		rows = append(rows, tableRows...)
	}
	return &rpc.ScanResponse{Rows: rows}, nil
}

func (l *selfLeaf) scanOne(ctx context.Context, org string, streamType filelist.StreamType, stream string, start, end int64) ([]rpc.ScanRow, error) {
	var tr *filelist.TimeRange
	if start != 0 && end != 0 {
		tr = &filelist.TimeRange{Start: start, End: end}
	}
	files, err := l.files.Query(ctx, org, streamType, stream, tr, nil)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "leaf_query", "query file list for leaf scan", err)
	}

	var rows []rpc.ScanRow
	for _, f := range files {
		if f.Deleted {
			continue
		}
		data, err := l.store.Get(ctx, f.Account, f.File)
		if err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "leaf_get", "fetch segment object", err)
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var row rpc.ScanRow
			if err := value.Unmarshal(line, &row); err != nil {
				return nil, oerrors.Wrap(oerrors.Format, "leaf_decode", "decode segment row", err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// localMembership makes a single-process coordinator its own (and
// only) cluster member, so internal/search.ClusterExecutor's
// fan-out-to-nodes shape is exercised unchanged rather than bypassed.
type localMembership struct {
	self search.Node
}

func (m localMembership) OnlineQuerierNodes(ctx context.Context) ([]search.Node, error) {
	return []search.Node{m.self}, nil
}
