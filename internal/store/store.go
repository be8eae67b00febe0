// Package store defines the contract the gateway requires from an
// S3-compatible object store, together with a minio-go backed
// implementation. Every value is request-scoped; nothing here is cached
// between calls.
package store

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"
)

// MaxBatchDelete is the provider ceiling on keys per batch-delete call.
const MaxBatchDelete = 1000

// ErrNotExist is returned when the addressed object or bucket does not
// exist. Implementations map their provider-specific not-found responses to
// this sentinel so callers can test with errors.Is.
var ErrNotExist = errors.New("object does not exist")

// BucketInfo describes one bucket returned by ListBuckets.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

// ObjectInfo is the metadata of one physical object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string

	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	Expires            time.Time
	StorageClass       string
	UserMetadata       map[string]string
}

// PutOptions carries the headers and metadata preserved on writes and
// stream copies.
type PutOptions struct {
	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	Expires            time.Time
	StorageClass       string
	UserMetadata       map[string]string
}

// ListOptions configures one page of a delimiter/prefix listing.
type ListOptions struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int
}

// ListResult is one page of a listing. Callers loop while IsTruncated is
// true, feeding NextContinuationToken back into the next call.
type ListResult struct {
	Objects               []ObjectInfo
	CommonPrefixes        []string
	IsTruncated           bool
	NextContinuationToken string
}

// KeyError attributes a per-key failure within a batch delete.
type KeyError struct {
	Key string
	Err error
}

// CompletedPart identifies one uploaded part of a multipart session.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Store is the per-source client surface the gateway consumes. All blocking
// operations take a context and honor its cancellation.
type Store interface {
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListObjects performs one list-objects-v2 page. The provider caps
	// MaxKeys at 1000 regardless of the requested value.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error)

	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)

	// GetObject opens the object for reading. The returned info reflects the
	// object's stored headers and metadata.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)

	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (ObjectInfo, error)

	// CopyObject performs a server-side copy within this source.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	RemoveObject(ctx context.Context, bucket, key string) error

	// RemoveObjects deletes up to MaxBatchDelete keys in one batch call and
	// returns the number removed plus any per-key failures.
	RemoveObjects(ctx context.Context, bucket string, keys []string) (int, []KeyError)

	NewMultipartUpload(ctx context.Context, bucket, key string, opts PutOptions) (string, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	PresignPut(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error)
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error)
	PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, expires time.Duration) (*url.URL, error)
}
