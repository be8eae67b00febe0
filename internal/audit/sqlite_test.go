package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"strata/internal/audit"
)

func TestSQLiteRecorder(t *testing.T) {
	t.Parallel()

	rec, err := audit.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer rec.Close()

	ctx := context.Background()

	r := audit.NewRecord(audit.OpDelete, "delete_folder", "alice", "photos", "2024/")
	require.NotEmpty(t, r.ID)
	require.False(t, r.At.IsZero())
	r.Result = audit.Success
	r.DurationMS = 42

	require.NoError(t, rec.Record(ctx, r))
	require.NoError(t, rec.Record(ctx, audit.NewRecord(audit.OpRead, "browse", "bob", "photos", "")))

	n, err := rec.Count(ctx, "delete_folder")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = rec.Count(ctx, "rename")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSQLiteRecorderReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.db")

	rec, err := audit.OpenSQLite(path)
	require.NoError(t, err)
	r := audit.NewRecord(audit.OpWrite, "rename", "alice", "b", "k")
	r.Result = audit.Failure
	r.At = time.Now().UTC()
	require.NoError(t, rec.Record(context.Background(), r))
	require.NoError(t, rec.Close())

	// Records survive a reopen.
	rec, err = audit.OpenSQLite(path)
	require.NoError(t, err)
	defer rec.Close()

	n, err := rec.Count(context.Background(), "rename")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRecordIDsAreUnique(t *testing.T) {
	t.Parallel()

	a := audit.NewRecord(audit.OpRead, "browse", "alice", "b", "")
	b := audit.NewRecord(audit.OpRead, "browse", "alice", "b", "")
	require.NotEqual(t, a.ID, b.ID)
}
