package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// Local is a disk-backed ObjectStoreExt, used for single-node
// deployments and as the CacheFS backing store.
type Local struct {
	root string
	mu   sync.Mutex
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) fullPath(account, path string) string {
	return filepath.Join(l.root, account, filepath.FromSlash(path))
}

func (l *Local) Put(ctx context.Context, account, path string, payload []byte, opts *PutOptions) error {
	fp := l.fullPath(account, path)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return oerrors.Wrap(oerrors.Storage, "mkdir", "create parent dirs", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(fp, payload, 0o644); err != nil {
		return oerrors.Wrap(oerrors.Storage, "write", "write object", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, account, path string) ([]byte, error) {
	b, err := os.ReadFile(l.fullPath(account, path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "read", "read object", err)
	}
	return b, nil
}

func (l *Local) GetRange(ctx context.Context, account, path string, r ByteRange) ([]byte, error) {
	f, err := os.Open(l.fullPath(account, path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "open", "open object", err)
	}
	defer f.Close()
	if r.End == 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "stat", "stat object", err)
		}
		r.End = info.Size()
	}
	buf := make([]byte, r.End-r.Start)
	if _, err := f.ReadAt(buf, r.Start); err != nil && err != io.EOF {
		return nil, oerrors.Wrap(oerrors.Storage, "readat", "range read", err)
	}
	return buf, nil
}

func (l *Local) GetRanges(ctx context.Context, account, path string, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := l.GetRange(ctx, account, path, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (l *Local) Head(ctx context.Context, account, path string) (ObjectMeta, error) {
	info, err := os.Stat(l.fullPath(account, path))
	if os.IsNotExist(err) {
		return ObjectMeta{}, ErrNotFound
	}
	if err != nil {
		return ObjectMeta{}, oerrors.Wrap(oerrors.Storage, "stat", "head object", err)
	}
	return ObjectMeta{Path: path, Size: info.Size(), LastModified: info.ModTime().UnixMicro()}, nil
}

func (l *Local) Delete(ctx context.Context, account, path string) error {
	if err := os.Remove(l.fullPath(account, path)); err != nil && !os.IsNotExist(err) {
		return oerrors.Wrap(oerrors.Storage, "remove", "delete object", err)
	}
	return nil
}

func (l *Local) List(ctx context.Context, account, prefix string) ([]ObjectMeta, error) {
	base := filepath.Join(l.root, account)
	var out []ObjectMeta
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(base, p)
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, ObjectMeta{Path: rel, Size: info.Size(), LastModified: info.ModTime().UnixMicro()})
		}
		return nil
	})
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "walk", "list objects", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) ListWithDelimiter(ctx context.Context, account, prefix, delimiter string) ([]ObjectMeta, error) {
	all, err := l.List(ctx, account, prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []ObjectMeta
	for _, o := range all {
		rest := strings.TrimPrefix(o.Path, prefix)
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			group := prefix + rest[:idx+len(delimiter)]
			if seen[group] {
				continue
			}
			seen[group] = true
			out = append(out, ObjectMeta{Path: group})
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (l *Local) Copy(ctx context.Context, account, src, dst string) error {
	b, err := l.Get(ctx, account, src)
	if err != nil {
		return err
	}
	return l.Put(ctx, account, dst, b, nil)
}

func (l *Local) CopyIfNotExists(ctx context.Context, account, src, dst string) error {
	if _, err := l.Head(ctx, account, dst); err == nil {
		return ErrAlreadyExists
	}
	return l.Copy(ctx, account, src, dst)
}

func (l *Local) Rename(ctx context.Context, account, src, dst string) error {
	srcFP, dstFP := l.fullPath(account, src), l.fullPath(account, dst)
	if err := os.MkdirAll(filepath.Dir(dstFP), 0o755); err != nil {
		return oerrors.Wrap(oerrors.Storage, "mkdir", "create parent dirs", err)
	}
	if err := os.Rename(srcFP, dstFP); err != nil {
		return oerrors.Wrap(oerrors.Storage, "rename", "rename object", err)
	}
	return nil
}

func (l *Local) RenameIfNotExists(ctx context.Context, account, src, dst string) error {
	if _, err := l.Head(ctx, account, dst); err == nil {
		return ErrAlreadyExists
	}
	return l.Rename(ctx, account, src, dst)
}

func (l *Local) PutMultipart(ctx context.Context, account, path string, r io.Reader, size int64, opts *PutOptions) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "read", "buffer multipart payload", err)
	}
	if int64(len(b)) != size && size > 0 {
		return fmt.Errorf("objectstore: short multipart read: got %d want %d", len(b), size)
	}
	return l.Put(ctx, account, path, b, opts)
}
