//go:build jsonv2

// Build with: go build -tags jsonv2
//
// Swaps this package's JSON codec for the experimental
// github.com/go-json-experiment/json implementation. Limited to
// Marshal/Unmarshal: that experimental module's streaming Decoder API
// is still evolving, so the Decoder below keeps wrapping encoding/json
// under this tag as well.

package value

import (
	stdjson "encoding/json"
	"io"

	expjson "github.com/go-json-experiment/json"
)

func Marshal(v any) ([]byte, error) { return expjson.Marshal(v) }

func Unmarshal(data []byte, v any) error { return expjson.Unmarshal(data, v) }

// Decoder streams newline-delimited JSON through encoding/json.
type Decoder struct{ d *stdjson.Decoder }

func NewDecoder(r io.Reader) *Decoder { return &Decoder{d: stdjson.NewDecoder(r)} }

func (d *Decoder) More() bool         { return d.d.More() }
func (d *Decoder) Decode(v any) error { return d.d.Decode(v) }
