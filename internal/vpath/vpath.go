// Package vpath parses the virtual path grammar used to address objects
// across one or more configured storage sources:
//
//	[sourceId ':'] bucketName ['/' key]
//
// A trailing '/' on the key denotes a folder. Parsing is pure: the only
// lookup performed is against the set of configured source ids.
package vpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath marks any malformed or ambiguous virtual path.
var ErrInvalidPath = errors.New("invalid path")

// SourceDelimiter separates an explicit source id from the bucket name in a
// bucket reference.
const SourceDelimiter = ":"

// Sources is the subset of the source registry the resolver needs.
type Sources interface {
	// Has reports whether a source with the given id is configured.
	Has(id string) bool

	// DefaultID returns the id of the default source.
	DefaultID() string

	// IDs returns all configured source ids.
	IDs() []string
}

// BucketReference addresses one bucket on one configured source.
type BucketReference struct {
	SourceID string
	Bucket   string

	// Display is the form presented to callers: the bare bucket name when
	// only one source is configured, "<sourceId>:<bucketName>" otherwise.
	Display string
}

// Resolver turns virtual paths into bucket references and object keys.
type Resolver struct {
	sources Sources
}

func NewResolver(sources Sources) *Resolver {
	return &Resolver{sources: sources}
}

// Reference builds the BucketReference for a bucket that is known to live on
// the given source. Resolving the returned Display always yields the same
// reference back.
func (r *Resolver) Reference(sourceID, bucket string) BucketReference {
	ref := BucketReference{SourceID: sourceID, Bucket: bucket, Display: bucket}
	if len(r.sources.IDs()) > 1 {
		ref.Display = sourceID + SourceDelimiter + bucket
	}
	return ref
}

// ResolveBucket resolves a bucket reference token (no key part) to a
// BucketReference. A token containing the source delimiter whose prefix
// matches a configured source id resolves to that source; any other token is
// treated as a literal bucket name on the default source.
func (r *Resolver) ResolveBucket(token string) (BucketReference, error) {
	if token == "" {
		return BucketReference{}, fmt.Errorf("empty bucket reference: %w", ErrInvalidPath)
	}

	if before, after, found := strings.Cut(token, SourceDelimiter); found && r.sources.Has(before) {
		if after == "" {
			return BucketReference{}, fmt.Errorf("bucket reference %q has no bucket name: %w", token, ErrInvalidPath)
		}
		return r.Reference(before, after), nil
	}

	def := r.sources.DefaultID()
	if def == "" {
		return BucketReference{}, fmt.Errorf("bucket reference %q matches no source and no default source is configured: %w", token, ErrInvalidPath)
	}
	return r.Reference(def, token), nil
}

// Resolve splits a virtual path into its bucket reference and object key.
// The key may be empty when the path addresses a bucket root. A trailing '/'
// in the input is preserved in the returned key.
func (r *Resolver) Resolve(virtualPath string) (BucketReference, string, error) {
	if virtualPath == "" {
		return BucketReference{}, "", fmt.Errorf("empty path: %w", ErrInvalidPath)
	}

	token, key, _ := strings.Cut(virtualPath, "/")
	ref, err := r.ResolveBucket(token)
	if err != nil {
		return BucketReference{}, "", err
	}
	return ref, key, nil
}

// ResolveObject is Resolve with the additional requirement that the path
// carries a non-empty object key.
func (r *Resolver) ResolveObject(virtualPath string) (BucketReference, string, error) {
	ref, key, err := r.Resolve(virtualPath)
	if err != nil {
		return BucketReference{}, "", err
	}
	if key == "" {
		return BucketReference{}, "", fmt.Errorf("path %q has no object key: %w", virtualPath, ErrInvalidPath)
	}
	return ref, key, nil
}

// Join builds a virtual path from a bucket reference and an object key.
func Join(ref BucketReference, key string) string {
	if key == "" {
		return ref.Display
	}
	return ref.Display + "/" + key
}

// BaseName returns the final path segment of a key, ignoring a trailing
// slash: "a/b/c.txt" -> "c.txt", "a/b/" -> "b".
func BaseName(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// ParentPrefix returns the immediate parent prefix of a key, including its
// trailing slash: "a/b/c.txt" -> "a/b/", "a/b/" -> "a/", "file.txt" -> "".
func ParentPrefix(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 {
		return ""
	}
	return trimmed[:idx+1]
}
