package gateway

import (
	"context"
	"sort"
	"strings"
	"time"

	"strata/internal/audit"
	"strata/internal/store"
	"strata/internal/vpath"
)

// Entry is one row in a folder listing.
type Entry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	IsDir        bool      `json:"is_dir"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`
	ContentType  string    `json:"content_type,omitempty"`
}

// Crumb is one segment of the breadcrumb trail leading to the browsed path.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// BrowseResult is the listing of one virtual folder.
type BrowseResult struct {
	Path        string  `json:"path"`
	Breadcrumbs []Crumb `json:"breadcrumbs"`
	Entries     []Entry `json:"entries"`
}

// Browse lists the folder at path. The empty path lists every bucket on
// every configured source; otherwise path addresses a bucket root or a folder
// inside one.
func (g *Gateway) Browse(ctx context.Context, path string) (res *BrowseResult, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	defer func() { g.record(ctx, audit.OpRead, "browse", ref, path, started, err) }()

	if path == "" {
		return g.browseRoot(ctx)
	}

	ref, key, rerr := g.resolver.Resolve(path)
	if rerr != nil {
		return nil, classify(rerr, "browsing %q", path)
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}

	st, err := g.storeFor(ref)
	if err != nil {
		return nil, err
	}

	var dirs, files []Entry
	token := ""
	for {
		page, lerr := st.ListObjects(ctx, ref.Bucket, store.ListOptions{
			Prefix:            key,
			Delimiter:         "/",
			ContinuationToken: token,
			MaxKeys:           listPageSize,
		})
		if lerr != nil {
			return nil, classify(lerr, "listing %q", path)
		}

		for _, cp := range page.CommonPrefixes {
			dirs = append(dirs, Entry{
				Name:  vpath.BaseName(cp),
				Path:  vpath.Join(ref, cp),
				IsDir: true,
			})
		}
		for _, obj := range page.Objects {
			// The folder's own marker object is not an entry.
			if obj.Key == key {
				continue
			}
			files = append(files, Entry{
				Name:         vpath.BaseName(obj.Key),
				Path:         vpath.Join(ref, obj.Key),
				Size:         obj.Size,
				LastModified: obj.LastModified,
				ContentType:  obj.ContentType,
			})
		}

		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	sortEntries(dirs)
	sortEntries(files)

	return &BrowseResult{
		Path:        vpath.Join(ref, key),
		Breadcrumbs: breadcrumbs(ref, key),
		Entries:     append(dirs, files...),
	}, nil
}

// browseRoot lists all buckets across every configured source.
func (g *Gateway) browseRoot(ctx context.Context) (*BrowseResult, error) {
	var dirs []Entry
	for _, id := range g.sources.IDs() {
		st, err := g.sources.Store(id)
		if err != nil {
			return nil, wrap(KindUpstreamFailure, err, "source %q unavailable", id)
		}
		buckets, err := st.ListBuckets(ctx)
		if err != nil {
			return nil, classify(err, "listing buckets on source %q", id)
		}
		for _, b := range buckets {
			ref := g.resolver.Reference(id, b.Name)
			dirs = append(dirs, Entry{
				Name:         ref.Display,
				Path:         ref.Display,
				IsDir:        true,
				LastModified: b.CreatedAt,
			})
		}
	}

	sortEntries(dirs)
	return &BrowseResult{Path: "", Entries: dirs}, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
}

func breadcrumbs(ref vpath.BucketReference, key string) []Crumb {
	crumbs := []Crumb{{Name: ref.Display, Path: ref.Display}}
	trimmed := strings.TrimSuffix(key, "/")
	if trimmed == "" {
		return crumbs
	}

	prefix := ""
	for _, seg := range strings.Split(trimmed, "/") {
		prefix += seg + "/"
		crumbs = append(crumbs, Crumb{Name: seg, Path: vpath.Join(ref, prefix)})
	}
	return crumbs
}
