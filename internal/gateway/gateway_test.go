package gateway_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"strata/internal/audit"
	"strata/internal/gateway"
	"strata/internal/store"
	"strata/internal/store/storetest"
)

// testSources backs a gateway with storetest stores.
type testSources struct {
	def    string
	stores map[string]*storetest.Store
}

func newTestSources(ids ...string) *testSources {
	ts := &testSources{def: ids[0], stores: make(map[string]*storetest.Store)}
	for _, id := range ids {
		ts.stores[id] = storetest.New()
	}
	return ts
}

func (ts *testSources) Has(id string) bool {
	_, ok := ts.stores[id]
	return ok
}

func (ts *testSources) DefaultID() string { return ts.def }

func (ts *testSources) IDs() []string {
	ids := make([]string, 0, len(ts.stores))
	for id := range ts.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ts *testSources) Store(id string) (store.Store, error) {
	st, ok := ts.stores[id]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}
	return st, nil
}

// memRecorder captures audit records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *memRecorder) Record(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) byAction(action string) []audit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Record
	for _, rec := range r.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

func TestBrowseRootListsAllSources(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main", "backup")
	ts.stores["main"].CreateBucket("photos")
	ts.stores["main"].CreateBucket("docs")
	ts.stores["backup"].CreateBucket("archive")
	gw := gateway.New(ts)

	res, err := gw.Browse(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	// Each entry path must resolve back to the bucket it names.
	for _, e := range res.Entries {
		require.True(t, e.IsDir)
		ref, err := gw.Resolver().ResolveBucket(e.Path)
		require.NoError(t, err)
		require.Equal(t, e.Path, ref.Display)
	}

	names := []string{res.Entries[0].Name, res.Entries[1].Name, res.Entries[2].Name}
	require.Equal(t, []string{"backup:archive", "main:docs", "main:photos"}, names)
}

func TestBrowseFolderSeparatesDirsFromFiles(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("photos", "2024/a.jpg", []byte("a"))
	st.Seed("photos", "2024/b.jpg", []byte("b"))
	st.Seed("photos", "2024/trip/c.jpg", []byte("c"))
	st.Seed("photos", "2024/Archive/d.jpg", []byte("d"))
	gw := gateway.New(ts)

	res, err := gw.Browse(context.Background(), "photos/2024")
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)

	// Directories first, then files, each group sorted case-insensitively.
	require.Equal(t, "Archive", res.Entries[0].Name)
	require.True(t, res.Entries[0].IsDir)
	require.Equal(t, "trip", res.Entries[1].Name)
	require.True(t, res.Entries[1].IsDir)
	require.Equal(t, "a.jpg", res.Entries[2].Name)
	require.False(t, res.Entries[2].IsDir)
	require.Equal(t, "b.jpg", res.Entries[3].Name)

	require.Equal(t, []string{"photos", "2024"}, []string{res.Breadcrumbs[0].Name, res.Breadcrumbs[1].Name})
	require.Equal(t, "photos/2024/", res.Breadcrumbs[1].Path)
}

func TestBrowseSkipsFolderMarker(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("docs", "empty/", nil)
	ts.stores["main"].Seed("docs", "empty/readme.txt", []byte("hi"))
	gw := gateway.New(ts)

	res, err := gw.Browse(context.Background(), "docs/empty/")
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, "readme.txt", res.Entries[0].Name)
}

func TestFolderSizeSpansPages(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	for i := range 1200 {
		st.Seed("data", fmt.Sprintf("logs/%04d.log", i), make([]byte, 10))
	}
	gw := gateway.New(ts)

	stats, err := gw.FolderSize(context.Background(), "data/logs")
	require.NoError(t, err)
	require.Equal(t, 1200, stats.ObjectCount)
	require.Equal(t, int64(12000), stats.TotalSize)
	require.Equal(t, 2, st.ListCalls)
}

func TestCreateFolderWritesMarker(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].CreateBucket("docs")
	gw := gateway.New(ts)

	created, err := gw.CreateFolder(context.Background(), "docs/reports")
	require.NoError(t, err)
	require.Equal(t, "docs/reports/", created)

	obj, ok := ts.stores["main"].Lookup("docs", "reports/")
	require.True(t, ok)
	require.Equal(t, "application/x-directory", obj.Info.ContentType)
	require.Empty(t, obj.Data)
}

func TestCreateFolderRejectsShadowingAnObject(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].Seed("docs", "reports", []byte("flat file"))
	gw := gateway.New(ts)

	_, err := gw.CreateFolder(context.Background(), "docs/reports")
	require.Error(t, err)
	require.Equal(t, gateway.KindValidation, gateway.KindOf(err))
}

func TestCreateFolderRejectsBucketRoot(t *testing.T) {
	t.Parallel()

	gw := gateway.New(newTestSources("main"))

	_, err := gw.CreateFolder(context.Background(), "docs")
	require.Error(t, err)
	require.Equal(t, gateway.KindInvalidPath, gateway.KindOf(err))
}

func TestEveryOperationEmitsOneAuditRecord(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	st := ts.stores["main"]
	st.Seed("data", "folder/a.txt", []byte("a"))
	st.Seed("data", "folder/b.txt", []byte("b"))
	rec := &memRecorder{}
	gw := gateway.New(ts, gateway.WithAuditRecorder(rec))

	ctx := context.Background()

	_, err := gw.Browse(ctx, "data/folder")
	require.NoError(t, err)
	require.Len(t, rec.byAction("browse"), 1)

	_, err = gw.Rename(ctx, "data/folder/a.txt", gateway.RenameRequest{NewName: "c.txt"})
	require.NoError(t, err)
	require.Len(t, rec.byAction("rename"), 1)

	_, err = gw.DeleteFolder(ctx, "data/folder")
	require.NoError(t, err)

	deletes := rec.byAction("delete_folder")
	require.Len(t, deletes, 1)
	require.Equal(t, audit.Success, deletes[0].Result)
	require.Equal(t, audit.OpDelete, deletes[0].Operation)
	require.Equal(t, "data", deletes[0].Bucket)
	require.Equal(t, "anonymous", deletes[0].Actor)
}

func TestFailedOperationAuditsFailure(t *testing.T) {
	t.Parallel()

	ts := newTestSources("main")
	ts.stores["main"].CreateBucket("data")
	rec := &memRecorder{}
	gw := gateway.New(ts, gateway.WithAuditRecorder(rec))

	_, err := gw.Rename(context.Background(), "data/missing/", gateway.RenameRequest{NewName: "moved"})
	require.Error(t, err)

	renames := rec.byAction("rename")
	require.Len(t, renames, 1)
	require.Equal(t, audit.Failure, renames[0].Result)
	require.NotEmpty(t, renames[0].Detail)
}
