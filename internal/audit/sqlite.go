package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRecorder persists audit records to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the audit database at path.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRecorder{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			bucket TEXT,
			key TEXT,
			result TEXT NOT NULL,
			detail TEXT,
			duration_ms INTEGER NOT NULL,
			at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_records(actor, at);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_bucket ON audit_records(bucket, at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init audit schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_records
			(id, operation, action, actor, bucket, key, result, detail, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Operation), rec.Action, rec.Actor, rec.Bucket, rec.Key,
		string(rec.Result), rec.Detail, rec.DurationMS, rec.At)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Count reports how many records match an action, for diagnostics and tests.
func (r *SQLiteRecorder) Count(ctx context.Context, action string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE action = ?`, action).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
