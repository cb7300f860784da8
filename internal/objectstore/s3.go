package objectstore

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// S3 is an ObjectStoreExt backed by any S3-compatible endpoint via
// minio-go. account maps onto a prefix inside a single shared bucket,
// rather than a distinct bucket per account, so a single set of
// credentials can serve every tenant.
type S3 struct {
	client *minio.Client
	bucket string
}

func NewS3(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "minio_init", "create minio client", err)
	}
	return &S3{client: cli, bucket: bucket}, nil
}

func (s *S3) key(account, path string) string {
	return strings.TrimPrefix(account+"/"+path, "/")
}

func (s *S3) Put(ctx context.Context, account, path string, payload []byte, opts *PutOptions) error {
	popts := minio.PutObjectOptions{}
	if opts != nil {
		popts.ContentType = opts.ContentType
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(account, path), bytes.NewReader(payload), int64(len(payload)), popts)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "put", "put object", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, account, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(account, path), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err)
	}
	return b, nil
}

func (s *S3) GetRange(ctx context.Context, account, path string, r ByteRange) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if r.End > 0 {
		if err := opts.SetRange(r.Start, r.End-1); err != nil {
			return nil, oerrors.Wrap(oerrors.InvalidInput, "bad_range", "invalid byte range", err)
		}
	} else if r.Start > 0 {
		if err := opts.SetRange(r.Start, 0); err != nil {
			return nil, oerrors.Wrap(oerrors.InvalidInput, "bad_range", "invalid byte range", err)
		}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(account, path), opts)
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()
	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err)
	}
	return b, nil
}

func (s *S3) GetRanges(ctx context.Context, account, path string, rs []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := s.GetRange(ctx, account, path, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (s *S3) Head(ctx context.Context, account, path string) (ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(account, path), minio.StatObjectOptions{})
	if err != nil {
		return ObjectMeta{}, s.translate(err)
	}
	return ObjectMeta{Path: path, Size: info.Size, LastModified: info.LastModified.UnixMicro()}, nil
}

func (s *S3) Delete(ctx context.Context, account, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(account, path), minio.RemoveObjectOptions{}); err != nil {
		return oerrors.Wrap(oerrors.Storage, "remove", "delete object", err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, account, prefix string) ([]ObjectMeta, error) {
	var out []ObjectMeta
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(account, prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "list", "list objects", obj.Err)
		}
		out = append(out, ObjectMeta{
			Path:         strings.TrimPrefix(obj.Key, account+"/"),
			Size:         obj.Size,
			LastModified: obj.LastModified.UnixMicro(),
		})
	}
	return out, nil
}

func (s *S3) ListWithDelimiter(ctx context.Context, account, prefix, delimiter string) ([]ObjectMeta, error) {
	var out []ObjectMeta
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(account, prefix),
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "list", "list objects", obj.Err)
		}
		p := obj.Key
		if obj.Key == "" {
			p = obj.Prefix
		}
		out = append(out, ObjectMeta{Path: strings.TrimPrefix(p, account+"/")})
	}
	_ = delimiter // minio's non-recursive listing already groups by "/"
	return out, nil
}

func (s *S3) Copy(ctx context.Context, account, src, dst string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: s.key(account, dst)},
		minio.CopySrcOptions{Bucket: s.bucket, Object: s.key(account, src)},
	)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "copy", "copy object", err)
	}
	return nil
}

func (s *S3) CopyIfNotExists(ctx context.Context, account, src, dst string) error {
	if _, err := s.Head(ctx, account, dst); err == nil {
		return ErrAlreadyExists
	}
	return s.Copy(ctx, account, src, dst)
}

func (s *S3) Rename(ctx context.Context, account, src, dst string) error {
	if err := s.Copy(ctx, account, src, dst); err != nil {
		return err
	}
	return s.Delete(ctx, account, src)
}

func (s *S3) RenameIfNotExists(ctx context.Context, account, src, dst string) error {
	if _, err := s.Head(ctx, account, dst); err == nil {
		return ErrAlreadyExists
	}
	return s.Rename(ctx, account, src, dst)
}

func (s *S3) PutMultipart(ctx context.Context, account, path string, r io.Reader, size int64, opts *PutOptions) error {
	popts := minio.PutObjectOptions{}
	if opts != nil {
		popts.ContentType = opts.ContentType
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(account, path), r, size, popts)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "put_multipart", "multipart put object", err)
	}
	return nil
}

func (s *S3) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return oerrors.Wrap(oerrors.Storage, "s3", "object store operation failed", err)
}
