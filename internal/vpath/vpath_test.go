package vpath_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"strata/internal/vpath"
)

type staticSources struct {
	ids []string
	def string
}

func (s staticSources) Has(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s staticSources) DefaultID() string { return s.def }
func (s staticSources) IDs() []string     { return s.ids }

func TestResolveSingleSource(t *testing.T) {
	t.Parallel()

	r := vpath.NewResolver(staticSources{ids: []string{"main"}, def: "main"})

	ref, key, err := r.Resolve("photos/2024/trip/img.jpg")
	require.NoError(t, err)
	require.Equal(t, "main", ref.SourceID)
	require.Equal(t, "photos", ref.Bucket)
	require.Equal(t, "photos", ref.Display)
	require.Equal(t, "2024/trip/img.jpg", key)
}

func TestResolveExplicitSource(t *testing.T) {
	t.Parallel()

	r := vpath.NewResolver(staticSources{ids: []string{"main", "backup"}, def: "main"})

	ref, key, err := r.Resolve("backup:photos/img.jpg")
	require.NoError(t, err)
	require.Equal(t, "backup", ref.SourceID)
	require.Equal(t, "photos", ref.Bucket)
	require.Equal(t, "backup:photos", ref.Display)
	require.Equal(t, "img.jpg", key)
}

func TestResolveUnknownSourcePrefixIsLiteralBucket(t *testing.T) {
	t.Parallel()

	// A colon whose prefix matches no configured source id belongs to the
	// bucket name.
	r := vpath.NewResolver(staticSources{ids: []string{"main"}, def: "main"})

	ref, key, err := r.Resolve("odd:name/file.txt")
	require.NoError(t, err)
	require.Equal(t, "main", ref.SourceID)
	require.Equal(t, "odd:name", ref.Bucket)
	require.Equal(t, "file.txt", key)
}

func TestResolveTrailingSlashPreserved(t *testing.T) {
	t.Parallel()

	r := vpath.NewResolver(staticSources{ids: []string{"main"}, def: "main"})

	_, key, err := r.Resolve("bucket/folder/sub/")
	require.NoError(t, err)
	require.Equal(t, "folder/sub/", key)
}

func TestResolveInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		def  string
	}{
		{name: "empty path", path: "", def: "main"},
		{name: "no default source", path: "bucket/key", def: ""},
		{name: "source with empty bucket", path: "main:", def: "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := vpath.NewResolver(staticSources{ids: []string{"main", "backup"}, def: tt.def})
			_, _, err := r.Resolve(tt.path)
			require.ErrorIs(t, err, vpath.ErrInvalidPath)
		})
	}
}

func TestResolveObjectRequiresKey(t *testing.T) {
	t.Parallel()

	r := vpath.NewResolver(staticSources{ids: []string{"main"}, def: "main"})

	_, _, err := r.ResolveObject("bucket")
	require.ErrorIs(t, err, vpath.ErrInvalidPath)
}

func TestReferenceRoundTrip(t *testing.T) {
	t.Parallel()

	// Resolving a reference's display form must yield the reference back,
	// in both single- and multi-source configurations.
	configs := []staticSources{
		{ids: []string{"main"}, def: "main"},
		{ids: []string{"main", "backup"}, def: "main"},
	}

	for _, cfg := range configs {
		r := vpath.NewResolver(cfg)
		for _, id := range cfg.ids {
			ref := r.Reference(id, "data")
			resolved, err := r.ResolveBucket(ref.Display)
			require.NoError(t, err)
			require.Equal(t, ref, resolved)
		}
	}
}

func TestJoinAndBaseName(t *testing.T) {
	t.Parallel()

	r := vpath.NewResolver(staticSources{ids: []string{"main"}, def: "main"})
	ref := r.Reference("main", "bucket")

	require.Equal(t, "bucket", vpath.Join(ref, ""))
	require.Equal(t, "bucket/a/b.txt", vpath.Join(ref, "a/b.txt"))

	require.Equal(t, "c.txt", vpath.BaseName("a/b/c.txt"))
	require.Equal(t, "b", vpath.BaseName("a/b/"))
	require.Equal(t, "a", vpath.BaseName("a"))

	require.Equal(t, "a/b/", vpath.ParentPrefix("a/b/c.txt"))
	require.Equal(t, "a/", vpath.ParentPrefix("a/b/"))
	require.Equal(t, "", vpath.ParentPrefix("a"))
}
