package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	if err := l.Put(ctx, "acct1", "logs/2026/01/seg-001.parquet", []byte("hello"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := l.Get(ctx, "acct1", "logs/2026/01/seg-001.parquet")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestLocalGetMissingReturnsErrNotFound(t *testing.T) {
	l := NewLocal(t.TempDir())
	_, err := l.Get(context.Background(), "acct1", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLocalGetRange(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	if err := l.Put(ctx, "a", "f", []byte("0123456789"), nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := l.GetRange(ctx, "a", "f", ByteRange{Start: 2, End: 5})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if string(got) != "234" {
		t.Fatalf("got %q, want %q", got, "234")
	}
	// End==0 means to EOF.
	got, err = l.GetRange(ctx, "a", "f", ByteRange{Start: 8})
	if err != nil {
		t.Fatalf("range to eof: %v", err)
	}
	if string(got) != "89" {
		t.Fatalf("got %q, want %q", got, "89")
	}
}

func TestLocalCopyIfNotExistsRejectsExisting(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	_ = l.Put(ctx, "a", "src", []byte("x"), nil)
	_ = l.Put(ctx, "a", "dst", []byte("y"), nil)
	err := l.CopyIfNotExists(ctx, "a", "src", "dst")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestLocalRenameMovesObject(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	_ = l.Put(ctx, "a", "src", []byte("x"), nil)
	if err := l.Rename(ctx, "a", "src", "dst/nested"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := l.Get(ctx, "a", "src"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("src should be gone, got %v", err)
	}
	got, err := l.Get(ctx, "a", "dst/nested")
	if err != nil || string(got) != "x" {
		t.Fatalf("dst/nested = %q, %v", got, err)
	}
}

func TestLocalListPrefixAndOrdering(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	for _, p := range []string{"logs/b", "logs/a", "metrics/c"} {
		_ = l.Put(ctx, "a", p, []byte("x"), nil)
	}
	out, err := l.List(ctx, "a", "logs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].Path != "logs/a" || out[1].Path != "logs/b" {
		t.Fatalf("unexpected list result: %+v", out)
	}
}

func TestLocalPutMultipart(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	r := strings.NewReader("streamed-payload")
	if err := l.PutMultipart(ctx, "a", "big", io.Reader(r), int64(r.Len()), nil); err != nil {
		t.Fatalf("put multipart: %v", err)
	}
	got, err := l.Get(ctx, "a", "big")
	if err != nil || string(got) != "streamed-payload" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestCacheFSMutationsRejected(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	cache := NewLocal(dir1)
	backend := NewLocal(dir2)
	cfs := NewCacheFS(cache, backend)
	ctx := context.Background()

	if err := cfs.Put(ctx, "a", "x", []byte("y"), nil); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("put: got %v, want ErrNotImplemented", err)
	}
	if err := cfs.Delete(ctx, "a", "x"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("delete: got %v, want ErrNotImplemented", err)
	}
	if err := cfs.Copy(ctx, "a", "x", "y"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("copy: got %v, want ErrNotImplemented", err)
	}
	if err := cfs.Rename(ctx, "a", "x", "y"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("rename: got %v, want ErrNotImplemented", err)
	}
	if err := cfs.PutMultipart(ctx, "a", "x", strings.NewReader("z"), 1, nil); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("put multipart: got %v, want ErrNotImplemented", err)
	}
}

func TestCacheFSGetFallsBackAndPopulatesCache(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	cache := NewLocal(dir1)
	backend := NewLocal(dir2)
	cfs := NewCacheFS(cache, backend)
	ctx := context.Background()

	if err := backend.Put(ctx, "a", "seg", []byte("payload"), nil); err != nil {
		t.Fatalf("seed backend: %v", err)
	}
	got, err := cfs.Get(ctx, "a", "seg")
	if err != nil || string(got) != "payload" {
		t.Fatalf("get via cachefs: %q, %v", got, err)
	}
	// Now remove from backend; cache should still serve it.
	if err := backend.Delete(ctx, "a", "seg"); err != nil {
		t.Fatalf("delete from backend: %v", err)
	}
	got, err = cfs.Get(ctx, "a", "seg")
	if err != nil || string(got) != "payload" {
		t.Fatalf("get after backend delete should hit cache: %q, %v", got, err)
	}
}
