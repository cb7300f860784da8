// Package objectstore implements an object-storage abstraction:
// put/get/get_range/head/delete/list/copy/rename, plus a CacheFS
// read-through wrapper.
package objectstore

import (
	"context"
	"io"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// ByteRange is a half-open [Start, End) byte range, matching the
// sub-ranges PuffinReader and segment readers request.
type ByteRange struct {
	Start int64
	End   int64 // 0 means "to EOF"
}

// ObjectMeta is returned by Head and carries the fields segment
// publication and Puffin footer parsing need.
type ObjectMeta struct {
	Path         string
	Size         int64
	LastModified int64 // micros since epoch
}

// PutOptions carries the handful of knobs real object stores expose;
// none are mandatory.
type PutOptions struct {
	ContentType string
}

// ObjectStoreExt is the storage abstraction segment and Puffin
// sidecar readers/writers use. account namespaces a store the way a
// Segment's account field does (e.g. a per-tenant bucket prefix).
type ObjectStoreExt interface {
	Put(ctx context.Context, account, path string, payload []byte, opts *PutOptions) error
	Get(ctx context.Context, account, path string) ([]byte, error)
	GetRange(ctx context.Context, account, path string, r ByteRange) ([]byte, error)
	GetRanges(ctx context.Context, account, path string, rs []ByteRange) ([][]byte, error)
	Head(ctx context.Context, account, path string) (ObjectMeta, error)
	Delete(ctx context.Context, account, path string) error
	List(ctx context.Context, account, prefix string) ([]ObjectMeta, error)
	ListWithDelimiter(ctx context.Context, account, prefix, delimiter string) ([]ObjectMeta, error)
	Copy(ctx context.Context, account, src, dst string) error
	CopyIfNotExists(ctx context.Context, account, src, dst string) error
	Rename(ctx context.Context, account, src, dst string) error
	RenameIfNotExists(ctx context.Context, account, src, dst string) error
	PutMultipart(ctx context.Context, account, path string, r io.Reader, size int64, opts *PutOptions) error
}

var (
	ErrNotImplemented = oerrors.New(oerrors.InvalidInput, "not_implemented", "operation not implemented on this store")
	ErrNotFound       = oerrors.New(oerrors.NotFound, "object_not_found", "object not found")
	ErrAlreadyExists  = oerrors.New(oerrors.Conflict, "object_exists", "destination already exists")
)
