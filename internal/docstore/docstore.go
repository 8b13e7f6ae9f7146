// Package docstore abstracts the document database the pipeline treats as
// its sole source of truth and coordination mechanism. Two implementations
// exist: MongoStore over a real MongoDB deployment, and MemStore for tests.
package docstore

import "context"

// Collection names
const (
	Users              = "users"
	Posts              = "posts"
	Likes              = "likes"
	Comments           = "comments"
	Follows            = "follows"
	PostEvents         = "post_events"
	Notifications      = "notifications"
	AdminNotifications = "admin_notifications"
)

// Reader reads single documents
type Reader interface {
	// Get decodes the document at (collection, id) into out.
	// Returns a NOT_FOUND error when the document does not exist.
	Get(ctx context.Context, collection, id string, out any) error
}

// Writer mutates single documents
type Writer interface {
	// Create writes doc at (collection, id) and fails with ALREADY_EXISTS
	// if a document is already there. This is the primitive behind
	// deterministic-id idempotent creation.
	Create(ctx context.Context, collection, id string, doc any) error

	// Set writes doc at (collection, id), replacing any existing document.
	Set(ctx context.Context, collection, id string, doc any) error

	// Update applies field-level changes to an existing document. Keys may
	// be dotted paths; a nil value removes the field.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, collection, id string) error
}

// Tx is the handle passed to a transaction body. Reads observe a
// consistent snapshot; writes commit atomically or not at all.
type Tx interface {
	Reader
	Writer
}

// Store is the full document store surface the reactors run against.
type Store interface {
	Reader
	Writer

	// Increment atomically adds delta to a numeric field. Fire-and-forget:
	// no floor, no read; the platform's atomic-increment primitive.
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// DecrementClamped subtracts 1 from a numeric field only while it is
	// positive. Decrementing at zero (or a missing document) is a no-op.
	DecrementClamped(ctx context.Context, collection, id, field string) error

	// FindRecent decodes into out (a pointer to a slice) up to limit
	// documents matching the equality filter, most recently created first.
	FindRecent(ctx context.Context, collection string, filter map[string]any, limit int, out any) error

	// RunTransaction executes fn against a transactional handle. The body
	// may run more than once on write conflict, so it must be idempotent.
	// Any error from fn aborts the transaction with nothing applied.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
