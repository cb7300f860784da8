//go:build !jsonv2

package value

import (
	stdjson "encoding/json"
	"io"
)

// Marshal and Unmarshal are this package's JSON codec boundary:
// Value's own JSON methods and the callers that go through here
// rather than importing encoding/json directly get the codec swapped
// by build tag without touching their call sites. internal/puffin and
// internal/loki import encoding/json directly, and internal/ingest,
// internal/pipeline, the scheduler's wake events and the search rpc
// codec use sonic directly; the build tag does not reach them.
func Marshal(v any) ([]byte, error) { return stdjson.Marshal(v) }

func Unmarshal(data []byte, v any) error { return stdjson.Unmarshal(data, v) }

// Decoder streams newline-delimited JSON, used for decoding one
// object at a time off an HTTP response body without buffering the
// whole thing.
type Decoder struct{ d *stdjson.Decoder }

func NewDecoder(r io.Reader) *Decoder { return &Decoder{d: stdjson.NewDecoder(r)} }

func (d *Decoder) More() bool         { return d.d.More() }
func (d *Decoder) Decode(v any) error { return d.d.Decode(v) }
