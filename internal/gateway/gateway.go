// Package gateway implements the object storage operations the web layer
// exposes: browsing, uploads, renames and deletions across one or more
// configured sources.
package gateway

import (
	"context"
	"time"

	"strata/internal/audit"
	"strata/internal/authz"
	"strata/internal/store"
	"strata/internal/vpath"
)

const (
	// DefaultPartSize is the target size of one multipart upload part.
	DefaultPartSize = 16 << 20

	// DefaultMultipartThreshold is the payload size above which uploads
	// switch from a single presigned PUT to a multipart session.
	DefaultMultipartThreshold = 64 << 20

	// DefaultPresignExpiry bounds the lifetime of issued presigned URLs.
	DefaultPresignExpiry = 15 * time.Minute

	listPageSize = 1000
)

// Sources resolves source ids to stores and backs virtual path resolution.
type Sources interface {
	vpath.Sources
	Store(id string) (store.Store, error)
}

// Gateway executes logical operations against the configured sources.
type Gateway struct {
	sources  Sources
	resolver *vpath.Resolver
	audit    audit.Recorder

	partSize           int64
	multipartThreshold int64
	presignExpiry      time.Duration
}

type Option func(*Gateway)

func WithAuditRecorder(rec audit.Recorder) Option {
	return func(g *Gateway) {
		g.audit = rec
	}
}

func WithPartSize(size int64) Option {
	return func(g *Gateway) {
		g.partSize = size
	}
}

func WithMultipartThreshold(size int64) Option {
	return func(g *Gateway) {
		g.multipartThreshold = size
	}
}

func WithPresignExpiry(d time.Duration) Option {
	return func(g *Gateway) {
		g.presignExpiry = d
	}
}

func New(sources Sources, opts ...Option) *Gateway {
	g := &Gateway{
		sources:            sources,
		resolver:           vpath.NewResolver(sources),
		audit:              audit.NopRecorder{},
		partSize:           DefaultPartSize,
		multipartThreshold: DefaultMultipartThreshold,
		presignExpiry:      DefaultPresignExpiry,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolver exposes the gateway's path resolver for callers that build
// display paths.
func (g *Gateway) Resolver() *vpath.Resolver { return g.resolver }

func (g *Gateway) storeFor(ref vpath.BucketReference) (store.Store, error) {
	st, err := g.sources.Store(ref.SourceID)
	if err != nil {
		return nil, wrap(KindUpstreamFailure, err, "source %q unavailable", ref.SourceID)
	}
	return st, nil
}

// record emits one audit record for a finished logical operation.
func (g *Gateway) record(ctx context.Context, op audit.Operation, action string, ref vpath.BucketReference, key string, started time.Time, opErr error) {
	rec := audit.NewRecord(op, action, authz.ActorFromContext(ctx), ref.Bucket, key)
	rec.DurationMS = time.Since(started).Milliseconds()
	rec.Result = audit.Success
	if opErr != nil {
		rec.Result = audit.Failure
		rec.Detail = opErr.Error()
	}
	// Audit writes must not fail the operation they describe.
	_ = g.audit.Record(ctx, rec)
}
