package storage

import (
	"context"

	"github.com/plumefeed/backend/internal/errors"
)

// MaxImageBytes is the largest photo the moderation pipeline will fetch.
// Anything larger is a recoverable content condition, not a download.
const MaxImageBytes = 10 << 20 // 10 MiB

// Object is resolved photo content with basic metadata
type Object struct {
	Data        []byte
	ContentType string
	Size        int64
}

// Resolver fetches an object by its storage path.
// A missing, oversized, or unreadable object comes back as a
// RECOVERABLE_CONTENT error so the caller can downgrade to a guardrail
// verdict instead of failing the whole attempt.
// This interface allows for easy mocking in tests.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*Object, error)
}

// Ensure S3Resolver implements Resolver
var _ Resolver = (*S3Resolver)(nil)

// MissingResolver resolves every path as missing. Used when no photo
// bucket is configured, which routes photo posts to guardrail review
// instead of crashing the pipeline.
type MissingResolver struct{}

// Resolve always reports the object missing
func (MissingResolver) Resolve(ctx context.Context, path string) (*Object, error) {
	return nil, errors.RecoverableContent("photo storage not configured", nil)
}
