package gateway

import (
	"context"
	"strings"
	"time"

	"strata/internal/audit"
	"strata/internal/store"
	"strata/internal/vpath"
)

// RenameRequest names the rename target. Exactly one field must be set:
// NewName keeps the object in its parent folder under a new final segment,
// DestinationPath moves it under another bucket or folder.
type RenameRequest struct {
	NewName         string `json:"new_name,omitempty"`
	DestinationPath string `json:"destination_path,omitempty"`
}

// RenameResult reports where the object or folder ended up.
type RenameResult struct {
	DestinationPath string `json:"destination_path"`
	MovedObjects    int    `json:"moved_objects"`
}

// Rename moves a single object or an entire folder subtree via copy then
// delete. The two phases are not transactional: a failure after some copies
// leaves the copied objects at the destination, and a failure between copy
// and delete leaves the object present at both paths. Callers see the
// destination path only after the originals are deleted.
func (g *Gateway) Rename(ctx context.Context, sourcePath string, req RenameRequest) (res *RenameResult, err error) {
	started := time.Now()
	var srcRef vpath.BucketReference
	var srcKey string
	defer func() { g.record(ctx, audit.OpWrite, "rename", srcRef, srcKey, started, err) }()

	srcRef, srcKey, rerr := g.resolver.ResolveObject(sourcePath)
	if rerr != nil {
		return nil, classify(rerr, "renaming %q", sourcePath)
	}

	srcStore, serr := g.storeFor(srcRef)
	if serr != nil {
		return nil, serr
	}

	// A source without a trailing slash may still name a folder. Probe for
	// a prefix under it; ambiguity resolves in favor of the folder.
	isFolder := strings.HasSuffix(srcKey, "/")
	if !isFolder {
		probe, perr := srcStore.ListObjects(ctx, srcRef.Bucket, store.ListOptions{
			Prefix:    srcKey,
			Delimiter: "/",
			MaxKeys:   2,
		})
		if perr != nil {
			return nil, classify(perr, "probing %q", sourcePath)
		}
		for _, cp := range probe.CommonPrefixes {
			if cp == srcKey+"/" {
				srcKey += "/"
				isFolder = true
				break
			}
		}
	}

	dstRef, targetKey, derr := g.renameTarget(srcRef, srcKey, isFolder, req)
	if derr != nil {
		return nil, derr
	}
	dstStore := srcStore
	if dstRef.SourceID != srcRef.SourceID {
		if dstStore, serr = g.storeFor(dstRef); serr != nil {
			return nil, serr
		}
	}
	crossSource := dstRef.SourceID != srcRef.SourceID

	if isFolder {
		return g.renameFolder(ctx, srcStore, dstStore, srcRef, srcKey, dstRef, targetKey, crossSource)
	}

	if err := g.copyOne(ctx, srcStore, dstStore, srcRef, srcKey, dstRef, targetKey, crossSource); err != nil {
		return nil, err
	}
	if err := srcStore.RemoveObject(ctx, srcRef.Bucket, srcKey); err != nil {
		return nil, classify(err, "deleting original %q after copy", sourcePath)
	}
	return &RenameResult{
		DestinationPath: vpath.Join(dstRef, targetKey),
		MovedObjects:    1,
	}, nil
}

// renameTarget derives the destination bucket and key from the request.
func (g *Gateway) renameTarget(srcRef vpath.BucketReference, srcKey string, isFolder bool, req RenameRequest) (vpath.BucketReference, string, error) {
	hasName := req.NewName != ""
	hasDest := req.DestinationPath != ""
	if hasName == hasDest {
		return vpath.BucketReference{}, "", errorf(KindInvalidPath, "exactly one of new_name and destination_path must be given")
	}

	var dstRef vpath.BucketReference
	var targetKey string
	if hasName {
		if strings.Contains(req.NewName, "/") {
			return vpath.BucketReference{}, "", errorf(KindInvalidPath, "new name %q must not contain path separators", req.NewName)
		}
		dstRef = srcRef
		targetKey = vpath.ParentPrefix(srcKey) + req.NewName
	} else {
		ref, prefix, err := g.resolver.Resolve(req.DestinationPath)
		if err != nil {
			return vpath.BucketReference{}, "", classify(err, "resolving destination %q", req.DestinationPath)
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		dstRef = ref
		targetKey = prefix + vpath.BaseName(srcKey)
	}
	if isFolder {
		targetKey += "/"
	}

	if len(g.sources.IDs()) == 1 && dstRef.Bucket != srcRef.Bucket {
		return vpath.BucketReference{}, "", errorf(KindInvalidPath, "destination bucket %q differs from source bucket %q", dstRef.Bucket, srcRef.Bucket)
	}
	if dstRef.SourceID == srcRef.SourceID && dstRef.Bucket == srcRef.Bucket && targetKey == srcKey {
		return vpath.BucketReference{}, "", errorf(KindInvalidPath, "destination equals source %q", vpath.Join(srcRef, srcKey))
	}
	return dstRef, targetKey, nil
}

// renameFolder copies every key under the source prefix to the target prefix,
// then batch-deletes the originals. Partial failure mid-copy is not rolled
// back.
func (g *Gateway) renameFolder(ctx context.Context, srcStore, dstStore store.Store, srcRef vpath.BucketReference, srcPrefix string, dstRef vpath.BucketReference, targetPrefix string, crossSource bool) (*RenameResult, error) {
	var keys []string
	token := ""
	for {
		page, err := srcStore.ListObjects(ctx, srcRef.Bucket, store.ListOptions{
			Prefix:            srcPrefix,
			ContinuationToken: token,
			MaxKeys:           listPageSize,
		})
		if err != nil {
			return nil, classify(err, "listing %q", vpath.Join(srcRef, srcPrefix))
		}
		for _, obj := range page.Objects {
			keys = append(keys, obj.Key)
		}
		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	if len(keys) == 0 {
		return nil, errorf(KindNotFound, "folder %q does not exist", vpath.Join(srcRef, srcPrefix))
	}

	for _, key := range keys {
		if cerr := ctx.Err(); cerr != nil {
			return nil, wrap(KindUpstreamFailure, cerr, "folder rename interrupted")
		}
		suffix := strings.TrimPrefix(key, srcPrefix)
		if err := g.copyOne(ctx, srcStore, dstStore, srcRef, key, dstRef, targetPrefix+suffix, crossSource); err != nil {
			return nil, err
		}
	}

	for start := 0; start < len(keys); start += store.MaxBatchDelete {
		end := min(start+store.MaxBatchDelete, len(keys))
		if _, keyErrs := srcStore.RemoveObjects(ctx, srcRef.Bucket, keys[start:end]); len(keyErrs) > 0 {
			return nil, wrap(KindUpstreamFailure, keyErrs[0].Err, "deleting %d originals under %q after copy", len(keyErrs), vpath.Join(srcRef, srcPrefix))
		}
	}

	return &RenameResult{
		DestinationPath: strings.TrimSuffix(vpath.Join(dstRef, targetPrefix), "/"),
		MovedObjects:    len(keys),
	}, nil
}

// copyOne copies a single object, server-side within one source and by
// streaming the body when source and destination are different sources. The
// stream path carries the source object's headers and metadata across.
func (g *Gateway) copyOne(ctx context.Context, srcStore, dstStore store.Store, srcRef vpath.BucketReference, srcKey string, dstRef vpath.BucketReference, dstKey string, crossSource bool) error {
	if !crossSource {
		if err := srcStore.CopyObject(ctx, srcRef.Bucket, srcKey, dstRef.Bucket, dstKey); err != nil {
			return classify(err, "copying %q to %q", vpath.Join(srcRef, srcKey), vpath.Join(dstRef, dstKey))
		}
		return nil
	}

	body, info, err := srcStore.GetObject(ctx, srcRef.Bucket, srcKey)
	if err != nil {
		return classify(err, "reading %q", vpath.Join(srcRef, srcKey))
	}
	defer body.Close()

	opts := store.PutOptions{
		ContentType:        info.ContentType,
		CacheControl:       info.CacheControl,
		ContentDisposition: info.ContentDisposition,
		ContentEncoding:    info.ContentEncoding,
		ContentLanguage:    info.ContentLanguage,
		Expires:            info.Expires,
		StorageClass:       info.StorageClass,
		UserMetadata:       info.UserMetadata,
	}
	if _, err := dstStore.PutObject(ctx, dstRef.Bucket, dstKey, body, info.Size, opts); err != nil {
		return classify(err, "writing %q", vpath.Join(dstRef, dstKey))
	}
	return nil
}
