// Package audit records the gateway's logical operations. Every browse,
// upload, rename and delete produces one record regardless of how many store
// round trips it needed.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Operation classifies what a record describes.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Result is the outcome of the recorded operation.
type Result string

const (
	Success Result = "success"
	Failure Result = "failure"
)

// Record is one completed gateway operation.
type Record struct {
	ID         string
	Operation  Operation
	Action     string // e.g. "browse", "rename", "delete_folder"
	Actor      string
	Bucket     string
	Key        string
	Result     Result
	Detail     string
	DurationMS int64
	At         time.Time
}

// Recorder persists audit records. Implementations must tolerate concurrent
// calls and must not block the operation they describe for long.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// NewRecord fills in the generated fields of a record.
func NewRecord(op Operation, action, actor, bucket, key string) Record {
	return Record{
		ID:        uuid.NewString(),
		Operation: op,
		Action:    action,
		Actor:     actor,
		Bucket:    bucket,
		Key:       key,
		At:        time.Now().UTC(),
	}
}

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) error { return nil }

// SlogRecorder writes records to a structured logger.
type SlogRecorder struct {
	Logger *slog.Logger
}

func (r *SlogRecorder) Record(ctx context.Context, rec Record) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"id", rec.ID,
		"op", string(rec.Operation),
		"action", rec.Action,
		"actor", rec.Actor,
		"bucket", rec.Bucket,
		"key", rec.Key,
		"result", string(rec.Result),
		"detail", rec.Detail,
		"duration_ms", rec.DurationMS,
	)
	return nil
}
