package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinioStore adapts a minio-go core client to the Store interface. The core
// client embeds the high-level client, so a single construction serves both
// the regular operations and the low-level multipart/presign calls.
type MinioStore struct {
	core *minio.Core
}

func NewMinioStore(core *minio.Core) *MinioStore {
	return &MinioStore{core: core}
}

// mapErr converts minio error responses for missing objects and buckets to
// ErrNotExist so callers do not depend on provider error codes.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%s: %w", resp.Message, ErrNotExist)
	}
	return err
}

func (m *MinioStore) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	buckets, err := m.core.Client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", mapErr(err))
	}

	infos := make([]BucketInfo, 0, len(buckets))
	for _, b := range buckets {
		infos = append(infos, BucketInfo{Name: b.Name, CreatedAt: b.CreationDate})
	}
	return infos, nil
}

func (m *MinioStore) ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	page, err := m.core.ListObjectsV2(bucket, opts.Prefix, "", opts.ContinuationToken, opts.Delimiter, maxKeys)
	if err != nil {
		return nil, fmt.Errorf("list objects in %q: %w", bucket, mapErr(err))
	}

	result := &ListResult{
		IsTruncated:           page.IsTruncated,
		NextContinuationToken: page.NextContinuationToken,
	}
	for _, cp := range page.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, cp.Prefix)
	}
	for _, obj := range page.Contents {
		result.Objects = append(result.Objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
			StorageClass: obj.StorageClass,
		})
	}
	return result, nil
}

func (m *MinioStore) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := m.core.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %q/%q: %w", bucket, key, mapErr(err))
	}
	return fromMinioInfo(info), nil
}

func (m *MinioStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.core.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %q/%q: %w", bucket, key, mapErr(err))
	}

	// GetObject is lazy; Stat forces the request so missing keys surface
	// here instead of on first read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, fmt.Errorf("get %q/%q: %w", bucket, key, mapErr(err))
	}
	return obj, fromMinioInfo(info), nil
}

func (m *MinioStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (ObjectInfo, error) {
	info, err := m.core.Client.PutObject(ctx, bucket, key, r, size, toMinioPutOptions(opts))
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %q/%q: %w", bucket, key, mapErr(err))
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (m *MinioStore) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	src := minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey}
	if _, err := m.core.Client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("copy %q/%q to %q/%q: %w", srcBucket, srcKey, dstBucket, dstKey, mapErr(err))
	}
	return nil
}

func (m *MinioStore) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := m.core.Client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %q/%q: %w", bucket, key, mapErr(err))
	}
	return nil
}

func (m *MinioStore) RemoveObjects(ctx context.Context, bucket string, keys []string) (int, []KeyError) {
	if len(keys) > MaxBatchDelete {
		return 0, []KeyError{{Err: fmt.Errorf("batch of %d keys exceeds the provider limit of %d", len(keys), MaxBatchDelete)}}
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var keyErrs []KeyError
	for res := range m.core.Client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			keyErrs = append(keyErrs, KeyError{Key: res.ObjectName, Err: res.Err})
		}
	}
	return len(keys) - len(keyErrs), keyErrs
}

func (m *MinioStore) NewMultipartUpload(ctx context.Context, bucket, key string, opts PutOptions) (string, error) {
	uploadID, err := m.core.NewMultipartUpload(ctx, bucket, key, toMinioPutOptions(opts))
	if err != nil {
		return "", fmt.Errorf("initiate multipart upload for %q/%q: %w", bucket, key, mapErr(err))
	}
	return uploadID, nil
}

func (m *MinioStore) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error) {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completeParts = append(completeParts, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	info, err := m.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("complete multipart upload %q for %q/%q: %w", uploadID, bucket, key, mapErr(err))
	}
	return info.ETag, nil
}

func (m *MinioStore) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := m.core.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		return fmt.Errorf("abort multipart upload %q for %q/%q: %w", uploadID, bucket, key, mapErr(err))
	}
	return nil
}

func (m *MinioStore) PresignPut(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	u, err := m.core.Client.PresignedPutObject(ctx, bucket, key, expires)
	if err != nil {
		return nil, fmt.Errorf("presign put for %q/%q: %w", bucket, key, mapErr(err))
	}
	return u, nil
}

func (m *MinioStore) PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	u, err := m.core.Client.PresignedGetObject(ctx, bucket, key, expires, nil)
	if err != nil {
		return nil, fmt.Errorf("presign get for %q/%q: %w", bucket, key, mapErr(err))
	}
	return u, nil
}

func (m *MinioStore) PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, expires time.Duration) (*url.URL, error) {
	params := url.Values{}
	params.Set("uploadId", uploadID)
	params.Set("partNumber", fmt.Sprintf("%d", partNumber))

	u, err := m.core.Client.Presign(ctx, http.MethodPut, bucket, key, expires, params)
	if err != nil {
		return nil, fmt.Errorf("presign part %d of upload %q for %q/%q: %w", partNumber, uploadID, bucket, key, mapErr(err))
	}
	return u, nil
}

func fromMinioInfo(info minio.ObjectInfo) ObjectInfo {
	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[k] = v
	}

	return ObjectInfo{
		Key:                info.Key,
		Size:               info.Size,
		LastModified:       info.LastModified,
		ETag:               info.ETag,
		ContentType:        info.ContentType,
		CacheControl:       info.Metadata.Get("Cache-Control"),
		ContentDisposition: info.Metadata.Get("Content-Disposition"),
		ContentEncoding:    info.Metadata.Get("Content-Encoding"),
		ContentLanguage:    info.Metadata.Get("Content-Language"),
		Expires:            info.Expires,
		StorageClass:       info.StorageClass,
		UserMetadata:       meta,
	}
}

func toMinioPutOptions(opts PutOptions) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:        opts.ContentType,
		CacheControl:       opts.CacheControl,
		ContentDisposition: opts.ContentDisposition,
		ContentEncoding:    opts.ContentEncoding,
		ContentLanguage:    opts.ContentLanguage,
		Expires:            opts.Expires,
		StorageClass:       opts.StorageClass,
		UserMetadata:       opts.UserMetadata,
	}
}
