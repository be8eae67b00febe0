package gateway

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"strata/internal/audit"
	"strata/internal/store"
	"strata/internal/vpath"
)

const folderContentType = "application/x-directory"

// CreateFolder materializes an empty folder as a zero-byte marker object at
// the folder key. Without the marker an empty folder would not survive a
// listing, since folders are otherwise inferred from object keys.
func (g *Gateway) CreateFolder(ctx context.Context, path string) (created string, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpWrite, "create_folder", ref, key, started, err) }()

	ref, key, rerr := g.resolver.Resolve(path)
	if rerr != nil {
		return "", classify(rerr, "creating folder %q", path)
	}
	if key == "" {
		return "", errorf(KindInvalidPath, "path %q addresses a bucket root, not a folder", path)
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return "", serr
	}

	// A marker must not shadow an object of the same name.
	if _, herr := st.StatObject(ctx, ref.Bucket, strings.TrimSuffix(key, "/")); herr == nil {
		return "", errorf(KindValidation, "an object already exists at %q", vpath.Join(ref, strings.TrimSuffix(key, "/")))
	} else if !errors.Is(herr, store.ErrNotExist) {
		return "", classify(herr, "probing %q", path)
	}

	_, perr := st.PutObject(ctx, ref.Bucket, key, bytes.NewReader(nil), 0, store.PutOptions{
		ContentType: folderContentType,
	})
	if perr != nil {
		return "", classify(perr, "creating folder %q", path)
	}
	return vpath.Join(ref, key), nil
}

// FolderStats summarizes a folder subtree.
type FolderStats struct {
	Path        string `json:"path"`
	ObjectCount int    `json:"object_count"`
	TotalSize   int64  `json:"total_size"`
}

// FolderSize walks every object under the folder at path and sums sizes. The
// folder's own marker object, if present, is not counted.
func (g *Gateway) FolderSize(ctx context.Context, path string) (stats *FolderStats, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpRead, "folder_size", ref, key, started, err) }()

	ref, key, rerr := g.resolver.Resolve(path)
	if rerr != nil {
		return nil, classify(rerr, "sizing %q", path)
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return nil, serr
	}

	result := &FolderStats{Path: vpath.Join(ref, key)}
	token := ""
	for {
		page, lerr := st.ListObjects(ctx, ref.Bucket, store.ListOptions{
			Prefix:            key,
			ContinuationToken: token,
			MaxKeys:           listPageSize,
		})
		if lerr != nil {
			return nil, classify(lerr, "listing %q", path)
		}
		for _, obj := range page.Objects {
			if obj.Key == key {
				continue
			}
			result.ObjectCount++
			result.TotalSize += obj.Size
		}
		if !page.IsTruncated {
			return result, nil
		}
		token = page.NextContinuationToken
	}
}
