package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/models"
)

func TestMemStoreCreateConflict(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	doc := models.PostEvent{PostID: "p1", Type: models.PostEventCreated, Actor: "u1", CreatedAt: time.Now()}
	require.NoError(t, s.Create(ctx, PostEvents, "e1", doc))

	err := s.Create(ctx, PostEvents, "e1", doc)
	assert.True(t, errors.IsAlreadyExists(err))
	assert.Equal(t, 1, s.Count(PostEvents))
}

func TestMemStoreGetNotFound(t *testing.T) {
	s := NewMemStore()
	var post models.Post
	err := s.Get(context.Background(), Posts, "missing", &post)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemStoreUpdateDottedPaths(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	post := models.Post{ID: "p1", AuthorID: "u1", Status: models.PostStatusPending, RejectionReason: "old"}
	require.NoError(t, s.Set(ctx, Posts, "p1", post))

	err := s.Update(ctx, Posts, "p1", map[string]any{
		"status":           string(models.PostStatusApproved),
		"rejection_reason": nil,
		"moderation.text": &models.VerdictRecord{
			Decision: "ALLOW",
			Score:    0.9,
		},
	})
	require.NoError(t, err)

	var got models.Post
	require.NoError(t, s.Get(ctx, Posts, "p1", &got))
	assert.Equal(t, models.PostStatusApproved, got.Status)
	assert.Empty(t, got.RejectionReason)
	require.NotNil(t, got.Moderation)
	require.NotNil(t, got.Moderation.Text)
	assert.Equal(t, "ALLOW", got.Moderation.Text.Decision)
}

func TestMemStoreUpdateMissing(t *testing.T) {
	s := NewMemStore()
	err := s.Update(context.Background(), Posts, "missing", map[string]any{"status": "approved"})
	assert.True(t, errors.IsNotFound(err))
}

func TestMemStoreIncrementAndClamp(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, Posts, "p1", models.Post{ID: "p1", LikeCount: 0}))

	require.NoError(t, s.Increment(ctx, Posts, "p1", "like_count", 1))
	require.NoError(t, s.Increment(ctx, Posts, "p1", "like_count", 1))

	var post models.Post
	require.NoError(t, s.Get(ctx, Posts, "p1", &post))
	assert.Equal(t, int64(2), post.LikeCount)

	require.NoError(t, s.DecrementClamped(ctx, Posts, "p1", "like_count"))
	require.NoError(t, s.DecrementClamped(ctx, Posts, "p1", "like_count"))
	require.NoError(t, s.DecrementClamped(ctx, Posts, "p1", "like_count"))

	require.NoError(t, s.Get(ctx, Posts, "p1", &post))
	assert.Equal(t, int64(0), post.LikeCount, "clamped decrement never goes negative")

	// Missing parent is a no-op, not an error
	assert.NoError(t, s.Increment(ctx, Posts, "missing", "like_count", 1))
	assert.NoError(t, s.DecrementClamped(ctx, Posts, "missing", "like_count"))
}

func TestMemStoreFindRecent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"n1", "n2", "n3"} {
		n := models.Notification{
			ID:        id,
			UserID:    "u1",
			Type:      models.NotificationLike,
			Read:      false,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Set(ctx, Notifications, id, n))
	}
	require.NoError(t, s.Set(ctx, Notifications, "other", models.Notification{
		ID: "other", UserID: "u2", Read: false, CreatedAt: now,
	}))
	require.NoError(t, s.Set(ctx, Notifications, "read", models.Notification{
		ID: "read", UserID: "u1", Read: true, CreatedAt: now,
	}))

	var got []models.Notification
	err := s.FindRecent(ctx, Notifications, map[string]any{"user_id": "u1", "read": false}, 2, &got)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "n3", got[0].ID, "most recent first")
	assert.Equal(t, "n2", got[1].ID)
}

func TestMemStoreTransactionAtomicity(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, Posts, "p1", models.Post{ID: "p1", Status: models.PostStatusPending}))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Update(ctx, Posts, "p1", map[string]any{"status": "approved"}); err != nil {
			return err
		}
		if err := tx.Create(ctx, PostEvents, "e1", models.PostEvent{PostID: "p1"}); err != nil {
			return err
		}
		return errors.Internal("boom", nil)
	})
	require.Error(t, err)

	var post models.Post
	require.NoError(t, s.Get(ctx, Posts, "p1", &post))
	assert.Equal(t, models.PostStatusPending, post.Status, "aborted transaction must leave no writes")
	assert.Equal(t, 0, s.Count(PostEvents))
}

func TestMemStoreTransactionCommit(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, Posts, "p1", models.Post{ID: "p1", Status: models.PostStatusPending}))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var post models.Post
		if err := tx.Get(ctx, Posts, "p1", &post); err != nil {
			return err
		}
		return tx.Update(ctx, Posts, "p1", map[string]any{"status": string(models.PostStatusApproved)})
	})
	require.NoError(t, err)

	var post models.Post
	require.NoError(t, s.Get(ctx, Posts, "p1", &post))
	assert.Equal(t, models.PostStatusApproved, post.Status)
}
