package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"strata/internal/gateway"
	"strata/internal/store"
)

func storetestInfo() store.ObjectInfo {
	return store.ObjectInfo{
		ContentType:  "application/pdf",
		CacheControl: "max-age=60",
		UserMetadata: map[string]string{"owner": "ops"},
	}
}

func TestRenameFile(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("bucket", "a.txt", []byte("hello"))
	gw := gateway.New(ts)

	res, err := gw.Rename(context.Background(), "bucket/a.txt", gateway.RenameRequest{NewName: "b.txt"})
	require.NoError(t, err)
	require.Equal(t, "bucket/b.txt", res.DestinationPath)
	require.Equal(t, 1, res.MovedObjects)
	require.Equal(t, 1, st.CopyCalls)
	require.Equal(t, 1, st.RemoveCalls)
	require.Equal(t, []string{"b.txt"}, st.Keys("bucket"))
}

func TestRenameFolder(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("bucket", "folder/sub/x.txt", []byte("x"))
	st.Seed("bucket", "folder/sub/y.txt", []byte("y"))
	gw := gateway.New(ts)

	res, err := gw.Rename(context.Background(), "bucket/folder/sub/", gateway.RenameRequest{DestinationPath: "bucket/archive"})
	require.NoError(t, err)
	require.Equal(t, "bucket/archive/sub", res.DestinationPath)
	require.Equal(t, 2, res.MovedObjects)
	require.Equal(t, 1, st.ListCalls)
	require.Equal(t, 2, st.CopyCalls)
	require.Equal(t, 1, st.BatchDeleteCalls)
	require.Equal(t, []string{"archive/sub/x.txt", "archive/sub/y.txt"}, st.Keys("bucket"))
}

func TestRenameEmptyFolderIsNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].CreateBucket("bucket")
	gw := gateway.New(ts)

	_, err := gw.Rename(context.Background(), "bucket/ghost/", gateway.RenameRequest{NewName: "renamed"})
	require.Error(t, err)
	require.Equal(t, gateway.KindNotFound, gateway.KindOf(err))
}

func TestRenameRejectsCrossBucketOnSingleSource(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("bucket", "a.txt", []byte("a"))
	gw := gateway.New(ts)

	_, err := gw.Rename(context.Background(), "bucket/a.txt", gateway.RenameRequest{DestinationPath: "other-bucket/dir"})
	require.Error(t, err)
	require.Equal(t, gateway.KindInvalidPath, gateway.KindOf(err))
}

func TestRenameTargetValidation(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("bucket", "dir/a.txt", []byte("a"))
	gw := gateway.New(ts)

	tests := []struct {
		name string
		req  gateway.RenameRequest
	}{
		{name: "neither target given", req: gateway.RenameRequest{}},
		{name: "both targets given", req: gateway.RenameRequest{NewName: "b.txt", DestinationPath: "bucket/dir"}},
		{name: "new name with separator", req: gateway.RenameRequest{NewName: "sub/b.txt"}},
		{name: "destination equals source", req: gateway.RenameRequest{NewName: "a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := gw.Rename(context.Background(), "bucket/dir/a.txt", tt.req)
			require.Error(t, err)
			require.Equal(t, gateway.KindInvalidPath, gateway.KindOf(err))
		})
	}
}

func TestRenameAcrossSourcesStreamsBody(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main", "backup")
	src := ts.stores["main"]
	dst := ts.stores["backup"]
	src.SeedInfo("bucket", "report.pdf", []byte("pdf-bytes"), storetestInfo())
	dst.CreateBucket("vault")
	gw := gateway.New(ts)

	res, err := gw.Rename(context.Background(), "main:bucket/report.pdf", gateway.RenameRequest{DestinationPath: "backup:vault/archive"})
	require.NoError(t, err)
	require.Equal(t, "backup:vault/archive/report.pdf", res.DestinationPath)
	require.Equal(t, 1, res.MovedObjects)

	// No server-side copy is possible across sources; the body is streamed.
	require.Equal(t, 0, src.CopyCalls)
	require.Equal(t, 1, src.GetCalls)
	require.Equal(t, 1, dst.PutCalls)

	moved, ok := dst.Lookup("vault", "archive/report.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("pdf-bytes"), moved.Data)
	require.Equal(t, "application/pdf", moved.Info.ContentType)
	require.Equal(t, "max-age=60", moved.Info.CacheControl)
	require.Equal(t, map[string]string{"owner": "ops"}, moved.Info.UserMetadata)
	require.Empty(t, src.Keys("bucket"))
}

func TestRenameFolderWithoutTrailingSlash(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("bucket", "folder/a.txt", []byte("a"))
	st.Seed("bucket", "folder/b.txt", []byte("b"))
	gw := gateway.New(ts)

	// A bare path naming a folder moves the whole subtree, not a single
	// object of that key.
	res, err := gw.Rename(context.Background(), "bucket/folder", gateway.RenameRequest{NewName: "renamed"})
	require.NoError(t, err)
	require.Equal(t, "bucket/renamed", res.DestinationPath)
	require.Equal(t, 2, res.MovedObjects)
	require.Equal(t, []string{"renamed/a.txt", "renamed/b.txt"}, st.Keys("bucket"))
}

func TestRenameAmbiguousPathFavorsFolder(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("bucket", "docs", []byte("flat file"))
	st.Seed("bucket", "docs/a.txt", []byte("a"))
	gw := gateway.New(ts)

	res, err := gw.Rename(context.Background(), "bucket/docs", gateway.RenameRequest{NewName: "archive"})
	require.NoError(t, err)
	require.Equal(t, "bucket/archive", res.DestinationPath)
	require.Equal(t, 1, res.MovedObjects)

	// The flat object of the same name is untouched.
	require.Equal(t, []string{"archive/a.txt", "docs"}, st.Keys("bucket"))
}

func TestRenameFolderWithNewName(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("bucket", "a/old/x.txt", []byte("x"))
	gw := gateway.New(ts)

	res, err := gw.Rename(context.Background(), "bucket/a/old/", gateway.RenameRequest{NewName: "new"})
	require.NoError(t, err)
	require.Equal(t, "bucket/a/new", res.DestinationPath)
	require.Equal(t, []string{"a/new/x.txt"}, st.Keys("bucket"))
}
