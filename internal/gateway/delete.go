package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"strata/internal/audit"
	"strata/internal/store"
	"strata/internal/vpath"
)

// DeleteFailure reports one path that could not be deleted.
type DeleteFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// DeleteResult summarizes a deletion.
type DeleteResult struct {
	Deleted  int             `json:"deleted"`
	Failures []DeleteFailure `json:"failures,omitempty"`
}

// DeleteObject removes a single object.
func (g *Gateway) DeleteObject(ctx context.Context, path string) (err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpDelete, "delete_object", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return classify(rerr, "deleting %q", path)
	}
	if strings.HasSuffix(key, "/") {
		return errorf(KindInvalidPath, "path %q addresses a folder, not an object", path)
	}

	st, err := g.storeFor(ref)
	if err != nil {
		return err
	}
	if err := st.RemoveObject(ctx, ref.Bucket, key); err != nil {
		return classify(err, "deleting %q", path)
	}
	return nil
}

// DeleteFolder removes every object under the folder at path. A path that
// addresses a bucket root is rejected. An empty folder deletes zero objects
// and is not an error.
func (g *Gateway) DeleteFolder(ctx context.Context, path string) (res *DeleteResult, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpDelete, "delete_folder", ref, key, started, err) }()

	ref, key, rerr := g.resolver.Resolve(path)
	if rerr != nil {
		return nil, classify(rerr, "deleting folder %q", path)
	}
	if key == "" {
		return nil, errorf(KindInvalidPath, "path %q addresses a bucket root, not a folder", path)
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}

	st, err := g.storeFor(ref)
	if err != nil {
		return nil, err
	}

	deleted, failures, derr := g.deleteAllUnder(ctx, st, ref, key)
	if derr != nil {
		return nil, derr
	}
	return &DeleteResult{Deleted: deleted, Failures: failures}, nil
}

// deleteAllUnder lists every key under prefix and removes them in batches of
// at most store.MaxBatchDelete keys.
func (g *Gateway) deleteAllUnder(ctx context.Context, st store.Store, ref vpath.BucketReference, prefix string) (int, []DeleteFailure, error) {
	deleted := 0
	var failures []DeleteFailure

	token := ""
	for {
		page, err := st.ListObjects(ctx, ref.Bucket, store.ListOptions{
			Prefix:            prefix,
			ContinuationToken: token,
			MaxKeys:           listPageSize,
		})
		if err != nil {
			return deleted, failures, classify(err, "listing %q for deletion", vpath.Join(ref, prefix))
		}

		keys := make([]string, 0, len(page.Objects))
		for _, obj := range page.Objects {
			keys = append(keys, obj.Key)
		}

		for start := 0; start < len(keys); start += store.MaxBatchDelete {
			end := min(start+store.MaxBatchDelete, len(keys))
			n, keyErrs := st.RemoveObjects(ctx, ref.Bucket, keys[start:end])
			deleted += n
			for _, ke := range keyErrs {
				failures = append(failures, DeleteFailure{
					Path:   vpath.Join(ref, ke.Key),
					Reason: ke.Err.Error(),
				})
			}
		}

		if !page.IsTruncated {
			return deleted, failures, nil
		}
		token = page.NextContinuationToken
	}
}

// DeleteMultiple removes a mixed batch of object and folder paths. Each path
// is handled independently; one failure does not stop the rest. A path with a
// trailing slash is treated as a folder, otherwise the gateway probes whether
// a folder exists under it before falling back to a single object delete.
func (g *Gateway) DeleteMultiple(ctx context.Context, paths []string) (res *DeleteResult, err error) {
	started := time.Now()
	defer func() {
		g.record(ctx, audit.OpDelete, "delete_multiple", vpath.BucketReference{}, "", started, err)
	}()

	result := &DeleteResult{}
	for _, path := range paths {
		if cerr := ctx.Err(); cerr != nil {
			return nil, wrap(KindUpstreamFailure, cerr, "batch deletion interrupted")
		}
		n, derr := g.deleteOne(ctx, path)
		result.Deleted += n
		if derr != nil {
			result.Failures = append(result.Failures, DeleteFailure{Path: path, Reason: derr.Error()})
		}
	}
	return result, nil
}

func (g *Gateway) deleteOne(ctx context.Context, path string) (int, error) {
	ref, key, err := g.resolver.Resolve(path)
	if err != nil {
		return 0, classify(err, "resolving %q", path)
	}
	if key == "" {
		return 0, errorf(KindInvalidPath, "path %q addresses a bucket root", path)
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return 0, serr
	}

	if !strings.HasSuffix(key, "/") {
		// The provider's delete is idempotent and reports success for keys
		// that never existed, so a bare path must be probed as a folder
		// before anything is removed.
		probe, perr := st.ListObjects(ctx, ref.Bucket, store.ListOptions{Prefix: key + "/", MaxKeys: 1})
		if perr != nil {
			return 0, classify(perr, "probing %q", path)
		}
		if len(probe.Objects) == 0 {
			if _, herr := st.StatObject(ctx, ref.Bucket, key); herr != nil {
				if errors.Is(herr, store.ErrNotExist) {
					return 0, errorf(KindNotFound, "path %q does not exist", path)
				}
				return 0, classify(herr, "heading %q", path)
			}
			if rerr := st.RemoveObject(ctx, ref.Bucket, key); rerr != nil {
				return 0, classify(rerr, "deleting %q", path)
			}
			return 1, nil
		}
		key += "/"
	}

	deleted, failures, derr := g.deleteAllUnder(ctx, st, ref, key)
	if derr != nil {
		return deleted, derr
	}
	if len(failures) > 0 {
		return deleted, errorf(KindUpstreamFailure, "%d objects under %q could not be deleted", len(failures), path)
	}
	return deleted, nil
}
