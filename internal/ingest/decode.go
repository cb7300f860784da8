package ingest

import (
	"github.com/bytedance/sonic"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// DecodeRecord decodes one ingest payload line into a value.Record.
// sonic is the primary decoder (teacher's declared dependency for hot
// JSON paths); value.Unmarshal is the fallback so records sonic's
// assembly-optimized parser rejects (rare non-standard encodings) are
// still ingestible rather than dropped.
func DecodeRecord(raw []byte) (value.Record, error) {
	var m map[string]any
	if err := sonic.Unmarshal(raw, &m); err != nil {
		if err2 := value.Unmarshal(raw, &m); err2 != nil {
			return nil, oerrors.Wrap(oerrors.Format, "decode_record", "decode ingest payload", err)
		}
	}
	rec := make(value.Record, len(m))
	for k, v := range m {
		rec[k] = value.FromAny(v)
	}
	return rec, nil
}

// SchemaOf returns the union of the rows' column names, each listed
// once, as the "schema" Entry.Schema carries alongside its rows. Names
// follow the order rows are visited in; the order of names first seen
// in the same row is not defined.
func SchemaOf(rows []value.Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
