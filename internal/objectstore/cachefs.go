package objectstore

import (
	"context"
	"io"
)

// CacheFS interposes a local-disk cache in front of another
// ObjectStoreExt backend: Get consults the cache first and falls back
// to the backend on miss, populating the cache as it goes. Every
// mutating method fails with ErrNotImplemented — the cache is
// read-only, writes always go straight to the backend.
type CacheFS struct {
	cache   ObjectStoreExt
	backend ObjectStoreExt
}

func NewCacheFS(cache, backend ObjectStoreExt) *CacheFS {
	return &CacheFS{cache: cache, backend: backend}
}

func (c *CacheFS) Get(ctx context.Context, account, path string) ([]byte, error) {
	if b, err := c.cache.Get(ctx, account, path); err == nil {
		return b, nil
	}
	b, err := c.backend.Get(ctx, account, path)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Put(ctx, account, path, b, nil)
	return b, nil
}

func (c *CacheFS) GetRange(ctx context.Context, account, path string, r ByteRange) ([]byte, error) {
	if b, err := c.cache.GetRange(ctx, account, path, r); err == nil {
		return b, nil
	}
	b, err := c.backend.GetRange(ctx, account, path, r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *CacheFS) GetRanges(ctx context.Context, account, path string, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := c.GetRange(ctx, account, path, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (c *CacheFS) Head(ctx context.Context, account, path string) (ObjectMeta, error) {
	if m, err := c.cache.Head(ctx, account, path); err == nil {
		return m, nil
	}
	return c.backend.Head(ctx, account, path)
}

func (c *CacheFS) List(ctx context.Context, account, prefix string) ([]ObjectMeta, error) {
	return c.backend.List(ctx, account, prefix)
}

func (c *CacheFS) ListWithDelimiter(ctx context.Context, account, prefix, delimiter string) ([]ObjectMeta, error) {
	return c.backend.ListWithDelimiter(ctx, account, prefix, delimiter)
}

func (c *CacheFS) Put(ctx context.Context, account, path string, payload []byte, opts *PutOptions) error {
	return ErrNotImplemented
}

func (c *CacheFS) Delete(ctx context.Context, account, path string) error {
	return ErrNotImplemented
}

func (c *CacheFS) Copy(ctx context.Context, account, src, dst string) error {
	return ErrNotImplemented
}

func (c *CacheFS) CopyIfNotExists(ctx context.Context, account, src, dst string) error {
	return ErrNotImplemented
}

func (c *CacheFS) Rename(ctx context.Context, account, src, dst string) error {
	return ErrNotImplemented
}

func (c *CacheFS) RenameIfNotExists(ctx context.Context, account, src, dst string) error {
	return ErrNotImplemented
}

func (c *CacheFS) PutMultipart(ctx context.Context, account, path string, r io.Reader, size int64, opts *PutOptions) error {
	return ErrNotImplemented
}
