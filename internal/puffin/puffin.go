// Package puffin reads the self-describing Puffin sidecar index
// format: MAGIC(4) | blob0 | blob1 ... | MAGIC(4) | payload_json[zstd?]
// | payload_size_le32(4) | flags_le32(4) | MAGIC(4).
package puffin

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/klauspost/compress/zstd"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
)

const (
	magicSize            = 4
	flagsSize            = 4
	footerPayloadSizeLen = 4
	footerSize           = magicSize + flagsSize + footerPayloadSizeLen
	// minFileSize is the smallest valid file: head MAGIC, the inner
	// MAGIC preceding an empty payload, and the 12-byte footer.
	minFileSize = 2*magicSize + footerSize
)

var magic = [magicSize]byte{0x50, 0x46, 0x41, 0x31} // "PFA1"

// FooterFlags mirror the single defined bit today: COMPRESSED.
type FooterFlags uint32

const FlagCompressed FooterFlags = 1 << 0

// BlobType enumerates the kinds of blob a Puffin file can carry.
type BlobType string

const (
	BlobFSTV1            BlobType = "o2_fst_v1"
	BlobTTVV1            BlobType = "o2_ttv_v1"
	BlobDeletionVectorV1 BlobType = "deletion_vector_v1"
)

// CompressionCodec names a per-blob compression scheme. Only "none" is
// supported by read_blob_bytes today; lz4/zstd blobs are rejected.
type CompressionCodec string

const (
	CodecNone CompressionCodec = ""
	CodecLZ4  CompressionCodec = "lz4"
	CodecZstd CompressionCodec = "zstd"
)

// BlobMetadata describes one blob inside the Puffin payload footer.
type BlobMetadata struct {
	BlobType         BlobType          `json:"blob_type"`
	Fields           []int64           `json:"fields"`
	SnapshotID       int64             `json:"snapshot_id"`
	SequenceNumber   int64             `json:"sequence_number"`
	Offset           int64             `json:"offset"`
	Length           int64             `json:"length"`
	CompressionCodec CompressionCodec  `json:"compression_codec,omitempty"`
	Properties       map[string]string `json:"properties"`
}

// ByteRange returns the absolute object byte range this blob occupies,
// or the sub-range [blob.Offset+start, blob.Offset+end) when sub is
// non-nil.
func (b BlobMetadata) ByteRange(sub *objectstore.ByteRange) objectstore.ByteRange {
	if sub == nil {
		return objectstore.ByteRange{Start: b.Offset, End: b.Offset + b.Length}
	}
	return objectstore.ByteRange{Start: b.Offset + sub.Start, End: b.Offset + sub.End}
}

// Meta is the footer payload: the blob directory plus free-form
// file-level properties.
type Meta struct {
	Blobs      []BlobMetadata    `json:"blobs"`
	Properties map[string]string `json:"properties"`
}

// Reader provides random-access reads over a Puffin object, caching
// the parsed footer after the first call.
type Reader struct {
	store   objectstore.ObjectStoreExt
	account string
	path    string
	size    int64
	meta    *Meta
}

func NewReader(store objectstore.ObjectStoreExt, account, path string, size int64) *Reader {
	return &Reader{store: store, account: account, path: path, size: size}
}

// ParseFooter reads and validates the footer, caching the result.
func (r *Reader) ParseFooter(ctx context.Context) (*Meta, error) {
	if r.meta != nil {
		return r.meta, nil
	}
	if r.size < minFileSize {
		return nil, oerrors.New(oerrors.Format, "puffin_too_small", "file smaller than minimum puffin size")
	}

	head, err := r.store.GetRange(ctx, r.account, r.path, objectstore.ByteRange{Start: 0, End: magicSize})
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head, magic[:]) {
		return nil, oerrors.New(oerrors.Format, "puffin_header_magic", "header MAGIC mismatch")
	}

	footer, err := r.store.GetRange(ctx, r.account, r.path, objectstore.ByteRange{Start: r.size - footerSize, End: r.size})
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(footer[footerSize-magicSize:footerSize], magic[:]) {
		return nil, oerrors.New(oerrors.Format, "puffin_footer_magic", "footer MAGIC mismatch")
	}

	payloadSize := int64(int32(binary.LittleEndian.Uint32(footer[0:footerPayloadSizeLen])))
	flags := FooterFlags(binary.LittleEndian.Uint32(footer[footerPayloadSizeLen : footerPayloadSizeLen+flagsSize]))

	wantTotal := footerSize + payloadSize
	if r.size < wantTotal {
		return nil, oerrors.New(oerrors.Format, "puffin_payload_size", "declared payload size exceeds file size")
	}

	payload, err := r.store.GetRange(ctx, r.account, r.path, objectstore.ByteRange{
		Start: r.size - footerSize - payloadSize - magicSize,
		End:   r.size - footerSize,
	})
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(payload[:magicSize], magic[:]) {
		return nil, oerrors.New(oerrors.Format, "puffin_footer_magic", "footer MAGIC mismatch")
	}

	meta, err := decodePayload(payload[magicSize:], flags)
	if err != nil {
		return nil, err
	}
	if err := validateBlobs(meta, r.size, payloadSize); err != nil {
		return nil, err
	}
	r.meta = meta
	return meta, nil
}

func decodePayload(b []byte, flags FooterFlags) (*Meta, error) {
	if flags&FlagCompressed != 0 {
		dec, err := zstd.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, oerrors.Wrap(oerrors.Format, "puffin_zstd", "open zstd decoder", err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, oerrors.Wrap(oerrors.Format, "puffin_zstd", "decompress footer payload", err)
		}
		b = raw
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, oerrors.Wrap(oerrors.Format, "puffin_json", "decode footer payload", err)
	}
	return &m, nil
}

func validateBlobs(m *Meta, fileSize, payloadSize int64) error {
	offset := int64(magicSize)
	for _, b := range m.Blobs {
		if b.Offset != offset {
			return oerrors.New(oerrors.Format, "blob_payload_offset_mismatch", "blob payload offset mismatch")
		}
		offset += b.Length
	}
	payloadEndsAt := int64(magicSize)
	if len(m.Blobs) > 0 {
		last := m.Blobs[len(m.Blobs)-1]
		payloadEndsAt = last.Offset + last.Length
	}
	footerTotal := int64(magicSize) + payloadSize + footerSize
	if payloadEndsAt != fileSize-footerTotal {
		return oerrors.New(oerrors.Format, "payload_chunk_offset_mismatch", "payload chunk offset mismatch")
	}
	return nil
}

// ReadBlobBytes range-reads a blob's payload, optionally restricted to
// sub (relative to the blob start). Compressed blobs are rejected:
// only uncompressed blobs are supported today.
func (r *Reader) ReadBlobBytes(ctx context.Context, blob BlobMetadata, sub *objectstore.ByteRange) ([]byte, error) {
	if blob.CompressionCodec == CodecLZ4 || blob.CompressionCodec == CodecZstd {
		return nil, oerrors.New(oerrors.Format, "unsupported_compression", "unsupported compression codec: "+string(blob.CompressionCodec))
	}
	rng := blob.ByteRange(sub)
	return r.store.GetRange(ctx, r.account, r.path, rng)
}
