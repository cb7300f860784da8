package ingest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// WalFile is an append-only file of length-prefixed records: each
// record is a uint32 little-endian length followed by its bytes.
type WalFile struct {
	path string
	f    *os.File
	mu   sync.Mutex
	size int64 // atomic
}

func OpenWAL(path string) (*WalFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "wal_mkdir", "create wal directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "wal_open", "open wal file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, oerrors.Wrap(oerrors.Storage, "wal_stat", "stat wal file", err)
	}
	return &WalFile{path: path, f: f, size: info.Size()}, nil
}

// Append writes one length-prefixed record. Empty blobs are skipped.
func (w *WalFile) Append(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.f.Write(hdr[:]); err != nil {
		return oerrors.Wrap(oerrors.Storage, "wal_write", "write wal record header", err)
	}
	if _, err := w.f.Write(b); err != nil {
		return oerrors.Wrap(oerrors.Storage, "wal_write", "write wal record body", err)
	}
	atomic.AddInt64(&w.size, int64(len(hdr)+len(b)))
	return nil
}

func (w *WalFile) Size() int64 { return atomic.LoadInt64(&w.size) }

func (w *WalFile) Fsync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Sync(); err != nil {
		return oerrors.Wrap(oerrors.Storage, "wal_fsync", "fsync wal file", err)
	}
	return nil
}

func (w *WalFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *WalFile) Path() string { return w.path }

// ReadAll reads every record back from the start of the file. A
// truncated trailing record ends the read without an error.
func (w *WalFile) ReadAll() ([][]byte, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "wal_reopen", "reopen wal for replay", err)
	}
	defer f.Close()
	var out [][]byte
	for {
		var hdr [4]byte
		if _, err := readFull(f, hdr[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(hdr[:])
		buf := make([]byte, n)
		if _, err := readFull(f, buf); err != nil {
			break
		}
		out = append(out, buf)
	}
	return out, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
