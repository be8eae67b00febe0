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

// UploadStrategy selects how a payload reaches the store.
type UploadStrategy string

const (
	StrategyDirect    UploadStrategy = "direct"
	StrategyMultipart UploadStrategy = "multipart"
)

// PlanUpload picks the strategy for a payload of the given size. Below the
// threshold a single presigned PUT suffices; at or above it the upload is
// split into parts.
func PlanUpload(size, threshold int64) UploadStrategy {
	if size < threshold {
		return StrategyDirect
	}
	return StrategyMultipart
}

// PresignedUpload describes one direct PUT the client performs itself.
type PresignedUpload struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// UploadPart is one presigned byte range of a multipart session.
type UploadPart struct {
	PartNumber int    `json:"part_number"`
	URL        string `json:"url"`
	Offset     int64  `json:"offset"`
	Length     int64  `json:"length"`
}

// MultipartSession describes an initiated multipart upload.
type MultipartSession struct {
	UploadID string       `json:"upload_id"`
	PartSize int64        `json:"part_size"`
	Parts    []UploadPart `json:"parts"`
}

// UploadPlan is the gateway's answer to an upload request: either a single
// presigned PUT or a multipart session with one presigned URL per part.
type UploadPlan struct {
	Path      string            `json:"path"`
	Strategy  UploadStrategy    `json:"strategy"`
	Direct    *PresignedUpload  `json:"direct,omitempty"`
	Multipart *MultipartSession `json:"multipart,omitempty"`
}

// UploadRequest describes the payload about to be uploaded.
type UploadRequest struct {
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// StartUpload plans and initiates an upload to path. For multipart uploads
// the session's part URLs are all presigned up front, so the client issues no
// further gateway calls until completion.
func (g *Gateway) StartUpload(ctx context.Context, path string, req UploadRequest) (plan *UploadPlan, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpWrite, "start_upload", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return nil, classify(rerr, "uploading to %q", path)
	}
	if strings.HasSuffix(key, "/") {
		return nil, errorf(KindInvalidPath, "upload target %q is a folder path", path)
	}
	if req.Size < 0 {
		return nil, errorf(KindValidation, "negative upload size %d", req.Size)
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return nil, serr
	}

	if PlanUpload(req.Size, g.multipartThreshold) == StrategyDirect {
		u, perr := st.PresignPut(ctx, ref.Bucket, key, g.presignExpiry)
		if perr != nil {
			return nil, classify(perr, "presigning upload to %q", path)
		}
		headers := make(map[string]string)
		if req.ContentType != "" {
			headers["Content-Type"] = req.ContentType
		}
		for k, v := range req.Metadata {
			headers["x-amz-meta-"+k] = v
		}
		return &UploadPlan{
			Path:     vpath.Join(ref, key),
			Strategy: StrategyDirect,
			Direct:   &PresignedUpload{URL: u.String(), Headers: headers},
		}, nil
	}

	uploadID, merr := st.NewMultipartUpload(ctx, ref.Bucket, key, store.PutOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
	})
	if merr != nil {
		return nil, classify(merr, "initiating multipart upload to %q", path)
	}

	session := &MultipartSession{UploadID: uploadID, PartSize: g.partSize}
	for offset, part := int64(0), 1; offset < req.Size || part == 1; offset, part = offset+g.partSize, part+1 {
		length := min(g.partSize, req.Size-offset)
		u, perr := st.PresignUploadPart(ctx, ref.Bucket, key, uploadID, part, g.presignExpiry)
		if perr != nil {
			// Release the store-side session rather than leaking it.
			_ = st.AbortMultipartUpload(ctx, ref.Bucket, key, uploadID)
			return nil, classify(perr, "presigning part %d of %q", part, path)
		}
		session.Parts = append(session.Parts, UploadPart{
			PartNumber: part,
			URL:        u.String(),
			Offset:     offset,
			Length:     length,
		})
	}

	return &UploadPlan{
		Path:      vpath.Join(ref, key),
		Strategy:  StrategyMultipart,
		Multipart: session,
	}, nil
}

// PresignPart issues a fresh presigned URL for one part of an existing
// session, for clients retrying a part after its original URL expired.
func (g *Gateway) PresignPart(ctx context.Context, path, uploadID string, partNumber int) (u string, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpWrite, "presign_part", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return "", classify(rerr, "presigning part for %q", path)
	}
	if partNumber < 1 {
		return "", errorf(KindValidation, "part number %d must be positive", partNumber)
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return "", serr
	}
	signed, perr := st.PresignUploadPart(ctx, ref.Bucket, key, uploadID, partNumber, g.presignExpiry)
	if perr != nil {
		return "", classify(perr, "presigning part %d of %q", partNumber, path)
	}
	return signed.String(), nil
}

// CompletedUpload reports the stored object after a finished upload.
type CompletedUpload struct {
	Path string `json:"path"`
	ETag string `json:"etag"`
}

// CompleteUpload finishes a multipart session. Parts must be unique and form
// a contiguous 1-based sequence; they are submitted sorted ascending by part
// number.
func (g *Gateway) CompleteUpload(ctx context.Context, path, uploadID string, parts []store.CompletedPart) (res *CompletedUpload, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpWrite, "complete_upload", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return nil, classify(rerr, "completing upload to %q", path)
	}
	if len(parts) == 0 {
		return nil, errorf(KindValidation, "completion of %q carries no parts", path)
	}

	sorted := append([]store.CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	for i, p := range sorted {
		if p.PartNumber != i+1 {
			return nil, errorf(KindValidation, "parts must form a contiguous sequence from 1, got part %d at position %d", p.PartNumber, i+1)
		}
		if p.ETag == "" {
			return nil, errorf(KindValidation, "part %d has no etag", p.PartNumber)
		}
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return nil, serr
	}
	etag, cerr := st.CompleteMultipartUpload(ctx, ref.Bucket, key, uploadID, sorted)
	if cerr != nil {
		return nil, classify(cerr, "completing upload %q to %q", uploadID, path)
	}
	return &CompletedUpload{Path: vpath.Join(ref, key), ETag: etag}, nil
}

// AbortUpload releases a multipart session and its stored parts.
func (g *Gateway) AbortUpload(ctx context.Context, path, uploadID string) (err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpWrite, "abort_upload", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return classify(rerr, "aborting upload to %q", path)
	}
	st, serr := g.storeFor(ref)
	if serr != nil {
		return serr
	}
	if aerr := st.AbortMultipartUpload(ctx, ref.Bucket, key, uploadID); aerr != nil {
		return classify(aerr, "aborting upload %q to %q", uploadID, path)
	}
	return nil
}

// PresignDownload issues a time-limited GET URL for an object.
func (g *Gateway) PresignDownload(ctx context.Context, path string) (u string, err error) {
	started := time.Now()
	var ref vpath.BucketReference
	var key string
	defer func() { g.record(ctx, audit.OpRead, "presign_download", ref, key, started, err) }()

	ref, key, rerr := g.resolver.ResolveObject(path)
	if rerr != nil {
		return "", classify(rerr, "presigning download of %q", path)
	}
	if strings.HasSuffix(key, "/") {
		return "", errorf(KindInvalidPath, "path %q addresses a folder, not an object", path)
	}

	st, serr := g.storeFor(ref)
	if serr != nil {
		return "", serr
	}
	if _, herr := st.StatObject(ctx, ref.Bucket, key); herr != nil {
		return "", classify(herr, "heading %q", path)
	}
	signed, perr := st.PresignGet(ctx, ref.Bucket, key, g.presignExpiry)
	if perr != nil {
		return "", classify(perr, "presigning download of %q", path)
	}
	return signed.String(), nil
}
