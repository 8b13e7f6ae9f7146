package notifications

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/models"
)

func newTestService(store docstore.Store) *Service {
	s := NewService(store)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func likeCreatedEvent(eventID string, like models.Like) *events.Event {
	return &events.Event{
		ID:         eventID,
		Kind:       events.KindCreated,
		Collection: docstore.Likes,
		DocID:      like.ID,
		After:      events.NewSnapshot(like),
	}
}

func TestLikeNotificationCreated(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Users, "bob", models.User{ID: "bob", DisplayName: "Bob"}))
	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	like := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob"}
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev1", like)))

	require.Equal(t, 1, store.Count(docstore.Notifications))

	var recent []models.Notification
	require.NoError(t, store.FindRecent(ctx, docstore.Notifications, map[string]any{"user_id": "alice"}, 10, &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, models.NotificationLike, recent[0].Type)
	assert.Equal(t, "bob", recent[0].ActorID)
	assert.Equal(t, "Bob liked your post", recent[0].Message)
	assert.False(t, recent[0].Read)
}

func TestLikeNotificationRedeliveryIdempotent(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	like := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob"}
	ev := likeCreatedEvent("ev1", like)
	require.NoError(t, s.HandleLikeCreated(ctx, ev))
	require.NoError(t, s.HandleLikeCreated(ctx, ev))

	assert.Equal(t, 1, store.Count(docstore.Notifications))
}

func TestLikeNotificationDedupWindow(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	// Unlike/re-like churn: two distinct like documents, two distinct
	// events, same actor and post inside the window
	first := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob"}
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev1", first)))
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev2", first)))

	assert.Equal(t, 1, store.Count(docstore.Notifications), "re-like inside the window collapses")
}

func TestLikeNotificationDedupExpires(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	like := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob"}
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev1", like)))

	// Move past the dedup window; a fresh like should notify again
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev2", like)))

	assert.Equal(t, 2, store.Count(docstore.Notifications))
}

func TestSelfNotificationSuppressed(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	like := models.Like{ID: models.LikeID("p1", "alice"), PostID: "p1", UserID: "alice"}
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev1", like)))

	assert.Zero(t, store.Count(docstore.Notifications))
}

func TestLikeNotificationMissingPostIsNoop(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)

	like := models.Like{ID: models.LikeID("gone", "bob"), PostID: "gone", UserID: "bob"}
	require.NoError(t, s.HandleLikeCreated(context.Background(), likeCreatedEvent("ev1", like)))
	assert.Zero(t, store.Count(docstore.Notifications))
}

func TestDedupScanFailureFailsOpen(t *testing.T) {
	store := docstore.NewMemStore()
	store.FindRecentErr = stderrors.New("scan unavailable")
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	like := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob"}
	require.NoError(t, s.HandleLikeCreated(ctx, likeCreatedEvent("ev1", like)))

	assert.Equal(t, 1, store.Count(docstore.Notifications), "a broken scan must not block the notification")
}

func TestFollowNotification(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Users, "bob", models.User{ID: "bob", Handle: "bob_h"}))

	follow := models.Follow{ID: models.FollowID("bob", "alice"), FollowerID: "bob", FolloweeID: "alice"}
	ev := &events.Event{
		ID:         "ev1",
		Kind:       events.KindCreated,
		Collection: docstore.Follows,
		DocID:      follow.ID,
		After:      events.NewSnapshot(follow),
	}
	require.NoError(t, s.HandleFollowCreated(ctx, ev))

	var recent []models.Notification
	require.NoError(t, store.FindRecent(ctx, docstore.Notifications, map[string]any{"user_id": "alice"}, 10, &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, models.NotificationFollow, recent[0].Type)
	assert.Equal(t, "bob_h started following you", recent[0].Message)
}

func TestCommentNotificationSkipsDedup(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	commentEvent := func(eventID, commentID string) *events.Event {
		c := models.Comment{ID: commentID, PostID: "p1", AuthorID: "bob", Text: "nice"}
		return &events.Event{
			ID:         eventID,
			Kind:       events.KindCreated,
			Collection: docstore.Comments,
			DocID:      c.ID,
			After:      events.NewSnapshot(c),
		}
	}

	// Two rapid comments both notify; a redelivered event does not
	require.NoError(t, s.HandleCommentCreated(ctx, commentEvent("ev1", "c1")))
	require.NoError(t, s.HandleCommentCreated(ctx, commentEvent("ev2", "c2")))
	require.NoError(t, s.HandleCommentCreated(ctx, commentEvent("ev2", "c2")))

	assert.Equal(t, 2, store.Count(docstore.Notifications))
}
