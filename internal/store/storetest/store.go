// Package storetest provides an in-memory store.Store implementation for
// exercising gateway semantics without a live endpoint. Every method counts
// its calls so tests can assert on the exact number of store round trips an
// operation performs.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"strata/internal/store"
)

// Object is one stored payload plus its metadata.
type Object struct {
	Data []byte
	Info store.ObjectInfo
}

type upload struct {
	bucket string
	key    string
	opts   store.PutOptions
}

// Store is an in-memory, call-counting store.Store.
type Store struct {
	mu      sync.Mutex
	buckets map[string]map[string]Object
	created map[string]time.Time
	uploads map[string]*upload
	nextID  int

	// Failure injection.
	FailCopyKeys map[string]bool // source keys whose copy fails
	FailBatch    bool            // every batch delete fails wholesale
	FailComplete bool

	// Call counters.
	ListBucketCalls  int
	ListCalls        int
	StatCalls        int
	GetCalls         int
	PutCalls         int
	CopyCalls        int
	RemoveCalls      int
	BatchDeleteCalls int
	NewUploadCalls   int
	CompleteCalls    int
	AbortCalls       int
	PresignPutCalls  int
	PresignGetCalls  int
	PresignPartCalls int

	// CompletedParts records the part list of the last completed upload.
	CompletedParts []store.CompletedPart
	// Aborted records upload ids that were aborted.
	Aborted []string
}

func New() *Store {
	return &Store{
		buckets: make(map[string]map[string]Object),
		created: make(map[string]time.Time),
		uploads: make(map[string]*upload),
	}
}

// CreateBucket registers an empty bucket.
func (s *Store) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = make(map[string]Object)
		s.created[name] = time.Now().UTC()
	}
}

// Seed stores an object, creating the bucket if needed.
func (s *Store) Seed(bucket, key string, data []byte) {
	s.SeedInfo(bucket, key, data, store.ObjectInfo{ContentType: "application/octet-stream"})
}

// SeedInfo stores an object with explicit metadata.
func (s *Store) SeedInfo(bucket, key string, data []byte, info store.ObjectInfo) {
	s.CreateBucket(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	info.Key = key
	info.Size = int64(len(data))
	if info.ETag == "" {
		info.ETag = fmt.Sprintf("etag-%s", key)
	}
	if info.LastModified.IsZero() {
		info.LastModified = time.Now().UTC()
	}
	s.buckets[bucket][key] = Object{Data: data, Info: info}
}

// Keys returns the sorted keys currently stored in a bucket.
func (s *Store) Keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns a stored object if present.
func (s *Store) Lookup(bucket, key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.buckets[bucket][key]
	return obj, ok
}

func (s *Store) ListBuckets(ctx context.Context) ([]store.BucketInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListBucketCalls++

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]store.BucketInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, store.BucketInfo{Name: name, CreatedAt: s.created[name]})
	}
	return infos, nil
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts store.ListOptions) (*store.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := &store.ListResult{}
	seen := make(map[string]bool)
	entries := 0
	for _, key := range keys {
		if opts.ContinuationToken != "" && key <= opts.ContinuationToken {
			continue
		}
		if entries >= maxKeys {
			result.IsTruncated = true
			break
		}

		if opts.Delimiter != "" {
			rest := strings.TrimPrefix(key, opts.Prefix)
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				cp := opts.Prefix + rest[:idx+len(opts.Delimiter)]
				if !seen[cp] {
					seen[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
					entries++
				}
				result.NextContinuationToken = key
				continue
			}
		}

		obj := s.buckets[bucket][key]
		result.Objects = append(result.Objects, obj.Info)
		result.NextContinuationToken = key
		entries++
	}

	if !result.IsTruncated {
		result.NextContinuationToken = ""
	}
	return result, nil
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (store.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatCalls++

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return store.ObjectInfo{}, fmt.Errorf("stat %q/%q: %w", bucket, key, store.ErrNotExist)
	}
	return obj.Info, nil
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, store.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, store.ObjectInfo{}, fmt.Errorf("get %q/%q: %w", bucket, key, store.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), obj.Info, nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts store.PutOptions) (store.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return store.ObjectInfo{}, err
	}

	s.mu.Lock()
	s.PutCalls++
	s.mu.Unlock()

	s.SeedInfo(bucket, key, data, store.ObjectInfo{
		ContentType:        opts.ContentType,
		CacheControl:       opts.CacheControl,
		ContentDisposition: opts.ContentDisposition,
		ContentEncoding:    opts.ContentEncoding,
		ContentLanguage:    opts.ContentLanguage,
		Expires:            opts.Expires,
		StorageClass:       opts.StorageClass,
		UserMetadata:       opts.UserMetadata,
	})

	obj, _ := s.Lookup(bucket, key)
	return obj.Info, nil
}

func (s *Store) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CopyCalls++

	if s.FailCopyKeys[srcKey] {
		return fmt.Errorf("copy %q/%q: injected failure", srcBucket, srcKey)
	}

	obj, ok := s.buckets[srcBucket][srcKey]
	if !ok {
		return fmt.Errorf("copy %q/%q: %w", srcBucket, srcKey, store.ErrNotExist)
	}
	if _, ok := s.buckets[dstBucket]; !ok {
		s.buckets[dstBucket] = make(map[string]Object)
		s.created[dstBucket] = time.Now().UTC()
	}

	info := obj.Info
	info.Key = dstKey
	s.buckets[dstBucket][dstKey] = Object{Data: obj.Data, Info: info}
	return nil
}

func (s *Store) RemoveObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RemoveCalls++

	// S3 DeleteObject is idempotent; deleting a missing key succeeds.
	delete(s.buckets[bucket], key)
	return nil
}

func (s *Store) RemoveObjects(ctx context.Context, bucket string, keys []string) (int, []store.KeyError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BatchDeleteCalls++

	if s.FailBatch {
		errs := make([]store.KeyError, 0, len(keys))
		for _, key := range keys {
			errs = append(errs, store.KeyError{Key: key, Err: fmt.Errorf("injected batch failure")})
		}
		return 0, errs
	}

	deleted := 0
	for _, key := range keys {
		if _, ok := s.buckets[bucket][key]; ok {
			delete(s.buckets[bucket], key)
		}
		// The provider reports success for keys that were already absent.
		deleted++
	}
	return deleted, nil
}

func (s *Store) NewMultipartUpload(ctx context.Context, bucket, key string, opts store.PutOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NewUploadCalls++

	s.nextID++
	id := fmt.Sprintf("upload-%d", s.nextID)
	s.uploads[id] = &upload{bucket: bucket, key: key, opts: opts}
	return id, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []store.CompletedPart) (string, error) {
	s.mu.Lock()
	s.CompleteCalls++
	up, ok := s.uploads[uploadID]
	if s.FailComplete {
		s.mu.Unlock()
		return "", fmt.Errorf("complete %q: injected failure", uploadID)
	}
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("complete %q: %w", uploadID, store.ErrNotExist)
	}
	s.CompletedParts = append([]store.CompletedPart(nil), parts...)
	delete(s.uploads, uploadID)
	s.mu.Unlock()

	s.SeedInfo(up.bucket, up.key, nil, store.ObjectInfo{
		ContentType:  up.opts.ContentType,
		UserMetadata: up.opts.UserMetadata,
	})
	return fmt.Sprintf("etag-%s", uploadID), nil
}

func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AbortCalls++

	if _, ok := s.uploads[uploadID]; !ok {
		return fmt.Errorf("abort %q: %w", uploadID, store.ErrNotExist)
	}
	delete(s.uploads, uploadID)
	s.Aborted = append(s.Aborted, uploadID)
	return nil
}

func (s *Store) PresignPut(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PresignPutCalls++
	return s.presignURL(bucket, key, nil), nil
}

func (s *Store) PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PresignGetCalls++
	return s.presignURL(bucket, key, nil), nil
}

func (s *Store) PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, expires time.Duration) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PresignPartCalls++

	params := url.Values{}
	params.Set("uploadId", uploadID)
	params.Set("partNumber", fmt.Sprintf("%d", partNumber))
	return s.presignURL(bucket, key, params), nil
}

func (s *Store) presignURL(bucket, key string, params url.Values) *url.URL {
	u := &url.URL{Scheme: "https", Host: "store.invalid", Path: "/" + bucket + "/" + key}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u
}
