// Package auditlog appends the immutable per-post event history. Events
// are keyed off the triggering delivery id, so replays rewrite the same
// documents instead of growing the trail.
package auditlog

import (
	"context"
	"time"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/idem"
	"github.com/plumefeed/backend/internal/models"
)

// Recorder appends audit trail entries for post lifecycle changes
type Recorder struct {
	store docstore.Store
	now   func() time.Time
}

// NewRecorder creates an audit recorder
func NewRecorder(store docstore.Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// HandlePostCreated appends "created", plus "submitted" when the post is
// born directly in pending
func (r *Recorder) HandlePostCreated(ctx context.Context, ev *events.Event) error {
	var post models.Post
	if err := ev.After.Decode(&post); err != nil {
		return err
	}

	if err := r.append(ctx, ev.ID, &post, models.PostEventCreated, post.AuthorID); err != nil {
		return err
	}
	if post.Status == models.PostStatusPending {
		return r.append(ctx, ev.ID, &post, models.PostEventSubmitted, post.AuthorID)
	}
	return nil
}

// HandlePostUpdated appends "submitted" when a post transitions into
// pending from any other status. A pending→pending write is not a
// submission, and without a before-image the transition cannot be
// established, so neither case appends.
func (r *Recorder) HandlePostUpdated(ctx context.Context, ev *events.Event) error {
	var after models.Post
	if err := ev.After.Decode(&after); err != nil {
		return err
	}
	if after.Status != models.PostStatusPending {
		return nil
	}

	var before models.Post
	if err := ev.Before.Decode(&before); err != nil {
		return nil
	}
	if before.Status == models.PostStatusPending {
		return nil
	}

	return r.append(ctx, ev.ID, &after, models.PostEventSubmitted, after.AuthorID)
}

func (r *Recorder) append(ctx context.Context, eventID string, post *models.Post, t models.PostEventType, actor string) error {
	pe := &models.PostEvent{
		ID:        idem.Key(eventID, string(t)),
		PostID:    post.ID,
		Type:      t,
		Actor:     actor,
		CreatedAt: r.now(),
	}
	err := r.store.Create(ctx, docstore.PostEvents, pe.ID, pe)
	if errors.IsAlreadyExists(err) {
		return nil
	}
	return err
}
