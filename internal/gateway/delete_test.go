package gateway_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"strata/internal/gateway"
)

func TestDeleteFolderChunksBatches(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	for i := range 1120 {
		st.Seed("data", fmt.Sprintf("big/%05d.bin", i), []byte("x"))
	}
	gw := gateway.New(ts)

	res, err := gw.DeleteFolder(context.Background(), "data/big")
	require.NoError(t, err)
	require.Equal(t, 1120, res.Deleted)
	require.Empty(t, res.Failures)
	require.Equal(t, 2, st.BatchDeleteCalls)
	require.Empty(t, st.Keys("data"))
}

func TestDeleteFolderEmptyPrefixIsNotAnError(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].CreateBucket("data")
	gw := gateway.New(ts)

	res, err := gw.DeleteFolder(context.Background(), "data/nothing-here")
	require.NoError(t, err)
	require.Equal(t, 0, res.Deleted)
	require.Empty(t, res.Failures)
}

func TestDeleteFolderRejectsBucketRoot(t *testing.T) {
	t.Parallel()

	gw := gateway.New(newTestSources("main"))

	_, err := gw.DeleteFolder(context.Background(), "data")
	require.Error(t, err)
	require.Equal(t, gateway.KindInvalidPath, gateway.KindOf(err))
}

func TestDeleteFolderReportsBatchFailures(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("data", "broken/a.txt", []byte("a"))
	st.FailBatch = true
	gw := gateway.New(ts)

	res, err := gw.DeleteFolder(context.Background(), "data/broken")
	require.NoError(t, err)
	require.Equal(t, 0, res.Deleted)
	require.Len(t, res.Failures, 1)
	require.Equal(t, "data/broken/a.txt", res.Failures[0].Path)
}

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("data", "a.txt", []byte("a"))
	gw := gateway.New(ts)

	require.NoError(t, gw.DeleteObject(context.Background(), "data/a.txt"))
	require.Empty(t, ts.stores["main"].Keys("data"))

	// The provider's delete is idempotent; a repeat is a silent success.
	require.NoError(t, gw.DeleteObject(context.Background(), "data/a.txt"))
}

func TestDeleteMultipleMixedPaths(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("data", "a.txt", []byte("a"))
	st.Seed("data", "folder/b.txt", []byte("b"))
	st.Seed("data", "folder/c.txt", []byte("c"))
	st.Seed("data", "keep.txt", []byte("k"))
	gw := gateway.New(ts)

	res, err := gw.DeleteMultiple(context.Background(), []string{
		"data/a.txt",
		"data/folder/",
		"data/missing.txt",
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Deleted)
	require.Len(t, res.Failures, 1)
	require.Equal(t, "data/missing.txt", res.Failures[0].Path)
	require.Equal(t, []string{"keep.txt"}, st.Keys("data"))
}

func TestDeleteMultipleProbesFolderWithoutTrailingSlash(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("data", "folder/a.txt", []byte("a"))
	st.Seed("data", "folder/b.txt", []byte("b"))
	gw := gateway.New(ts)

	res, err := gw.DeleteMultiple(context.Background(), []string{"data/folder"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Deleted)
	require.Empty(t, res.Failures)
	require.Empty(t, st.Keys("data"))

	// The folder is detected by probing, never by attempting a single-object
	// delete of the bare key (which the provider would report as success).
	require.Equal(t, 0, st.RemoveCalls)
	require.Equal(t, 1, st.BatchDeleteCalls)
}

func TestDeleteMultipleStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("data", "a.txt", []byte("a"))
	gw := gateway.New(ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.DeleteMultiple(ctx, []string{"data/a.txt"})
	require.Error(t, err)
	require.Equal(t, []string{"a.txt"}, ts.stores["main"].Keys("data"))
}
