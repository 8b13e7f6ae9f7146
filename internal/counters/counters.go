// Package counters keeps aggregate counters consistent with child-document
// membership under concurrent, at-least-once, unordered event delivery.
package counters

import (
	"context"
	"strings"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/models"
)

// Maintainer adjusts post and user counters in reaction to child-document
// creation and deletion
type Maintainer struct {
	store docstore.Store
}

// NewMaintainer creates a counter maintainer
func NewMaintainer(store docstore.Store) *Maintainer {
	return &Maintainer{store: store}
}

// HandleLikeCreated bumps the parent post's like count. Uses the store's
// atomic increment primitive: fire-and-forget, with a known theoretical
// double-count under a redelivery that races the acknowledgment.
func (m *Maintainer) HandleLikeCreated(ctx context.Context, ev *events.Event) error {
	var like models.Like
	if err := ev.After.Decode(&like); err != nil {
		return err
	}
	return m.store.Increment(ctx, docstore.Posts, like.PostID, "like_count", 1)
}

// HandleLikeDeleted decrements the like count, clamped at zero
func (m *Maintainer) HandleLikeDeleted(ctx context.Context, ev *events.Event) error {
	postID := likePostID(ev)
	if postID == "" {
		return nil
	}
	return m.store.DecrementClamped(ctx, docstore.Posts, postID, "like_count")
}

// HandleCommentCreated bumps the parent post's comment count
func (m *Maintainer) HandleCommentCreated(ctx context.Context, ev *events.Event) error {
	var comment models.Comment
	if err := ev.After.Decode(&comment); err != nil {
		return err
	}
	return m.store.Increment(ctx, docstore.Posts, comment.PostID, "comment_count", 1)
}

// HandleCommentDeleted decrements the comment count through a transaction:
// the authoritative count is the parent state at transaction time, and a
// read-modify-write is the only way the clamp holds under racing deletes.
func (m *Maintainer) HandleCommentDeleted(ctx context.Context, ev *events.Event) error {
	var comment models.Comment
	if err := ev.Before.Decode(&comment); err != nil {
		// No before-image for this delete; nothing safe to decrement
		return nil
	}

	return m.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var post models.Post
		if err := tx.Get(ctx, docstore.Posts, comment.PostID, &post); err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}
		if post.CommentCount <= 0 {
			return nil
		}
		return tx.Update(ctx, docstore.Posts, post.ID, map[string]any{
			"comment_count": post.CommentCount - 1,
		})
	})
}

// HandleFollowCreated adjusts both sides of a new follow edge in one
// transaction: followingCount on the follower, followersCount on the
// followee. Aborts as a no-op if either user document is missing rather
// than creating a dangling counter.
func (m *Maintainer) HandleFollowCreated(ctx context.Context, ev *events.Event) error {
	var follow models.Follow
	if err := ev.After.Decode(&follow); err != nil {
		return err
	}
	return m.adjustFollowCounts(ctx, &follow, 1)
}

// HandleFollowDeleted reverses the counters for a removed follow edge
func (m *Maintainer) HandleFollowDeleted(ctx context.Context, ev *events.Event) error {
	var follow models.Follow
	if err := ev.Before.Decode(&follow); err != nil {
		// Fall back to the deterministic edge id
		parts := strings.SplitN(ev.DocID, "_", 2)
		if len(parts) != 2 {
			return nil
		}
		follow = models.Follow{FollowerID: parts[0], FolloweeID: parts[1]}
	}
	return m.adjustFollowCounts(ctx, &follow, -1)
}

func (m *Maintainer) adjustFollowCounts(ctx context.Context, follow *models.Follow, delta int64) error {
	return m.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var follower, followee models.User
		if err := tx.Get(ctx, docstore.Users, follow.FollowerID, &follower); err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}
		if err := tx.Get(ctx, docstore.Users, follow.FolloweeID, &followee); err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}

		if err := tx.Update(ctx, docstore.Users, follower.ID, map[string]any{
			"following_count": clamp(follower.FollowingCount + delta),
		}); err != nil {
			return err
		}
		return tx.Update(ctx, docstore.Users, followee.ID, map[string]any{
			"followers_count": clamp(followee.FollowersCount + delta),
		})
	})
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// likePostID recovers the parent post id for a deleted like, preferring
// the before-image and falling back to the deterministic like id
func likePostID(ev *events.Event) string {
	var like models.Like
	if err := ev.Before.Decode(&like); err == nil && like.PostID != "" {
		return like.PostID
	}
	parts := strings.SplitN(ev.DocID, "_", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}
