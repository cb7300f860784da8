package main

import "github.com/openobserve/openobserve-sub015/internal/value"

// toRecords converts plain JSON-decoded objects into value.Record, the
// shape every other package in this module's search path expects.
func toRecords(objs []map[string]any) []value.Record {
	out := make([]value.Record, 0, len(objs))
	for _, o := range objs {
		out = append(out, value.Record(value.FromAny(o).AsObject()))
	}
	return out
}

// recordsToAny converts value.Record rows back into plain maps for
// JSON encoding when handing hits to an external caller.
func recordsToAny(rows []value.Record) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v.ToAny()
		}
		out = append(out, m)
	}
	return out
}
