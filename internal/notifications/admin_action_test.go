package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/models"
)

func postEventCreated(eventID string, pe models.PostEvent) *events.Event {
	return &events.Event{
		ID:         eventID,
		Kind:       events.KindCreated,
		Collection: docstore.PostEvents,
		DocID:      pe.ID,
		After:      events.NewSnapshot(pe),
	}
}

func TestAdminRejectionNotifiesAuthor(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	post := models.Post{
		ID:              "p1",
		AuthorID:        "alice",
		Status:          models.PostStatusRejected,
		RejectionReason: "Off topic",
	}
	require.NoError(t, store.Set(ctx, docstore.Posts, post.ID, post))

	pe := models.PostEvent{
		ID:        "pe1",
		PostID:    "p1",
		Type:      models.PostEventRejected,
		Actor:     "mod-carol",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.HandleAdminDecision(ctx, postEventCreated("ev1", pe)))

	var n models.Notification
	require.NoError(t, store.Get(ctx, docstore.Notifications,
		models.OutcomeNotificationID(models.NotificationAdminRejected, "p1"), &n))
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, "mod-carol", n.ActorID)
	assert.Equal(t, "Your post was rejected by a moderator: Off topic", n.Message)
}

func TestAdminApprovalNotifiesOnce(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1",
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusApproved}))

	pe := models.PostEvent{ID: "pe1", PostID: "p1", Type: models.PostEventApproved, Actor: "mod-carol"}
	ev := postEventCreated("ev1", pe)
	require.NoError(t, s.HandleAdminDecision(ctx, ev))
	require.NoError(t, s.HandleAdminDecision(ctx, ev), "redelivery lands on the same keyed document")

	assert.Equal(t, 1, store.Count(docstore.Notifications))
}

func TestSystemDecisionIgnored(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1",
		models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusApproved}))

	pe := models.PostEvent{ID: "pe1", PostID: "p1", Type: models.PostEventAIApproved, Actor: models.SystemActor}
	require.NoError(t, s.HandleAdminDecision(ctx, postEventCreated("ev1", pe)))

	assert.Zero(t, store.Count(docstore.Notifications), "automated outcomes notify inside the moderation transaction")
}

func TestNonDecisionEventIgnored(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice"}))

	pe := models.PostEvent{ID: "pe1", PostID: "p1", Type: models.PostEventSubmitted, Actor: "mod-carol"}
	require.NoError(t, s.HandleAdminDecision(ctx, postEventCreated("ev1", pe)))
	assert.Zero(t, store.Count(docstore.Notifications))
}

func TestAdminDecisionMissingPostIsNoop(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)

	pe := models.PostEvent{ID: "pe1", PostID: "gone", Type: models.PostEventApproved, Actor: "mod-carol"}
	require.NoError(t, s.HandleAdminDecision(context.Background(), postEventCreated("ev1", pe)))
	assert.Zero(t, store.Count(docstore.Notifications))
}

func TestRaiseAdminReviewRefreshesEntry(t *testing.T) {
	store := docstore.NewMemStore()
	s := newTestService(store)
	ctx := context.Background()

	post := &models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPending}

	require.NoError(t, s.RaiseAdminReview(ctx, store, post, map[string]any{"score": 0.6}))

	// An admin reads the entry, then the post re-enters review
	id := models.AdminReviewID("p1")
	var entry models.AdminNotification
	require.NoError(t, store.Get(ctx, docstore.AdminNotifications, id, &entry))
	firstCreated := entry.CreatedAt
	require.NoError(t, store.Update(ctx, docstore.AdminNotifications, id, map[string]any{"read": true}))

	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, s.RaiseAdminReview(ctx, store, post, map[string]any{"score": 0.9}))

	require.NoError(t, store.Get(ctx, docstore.AdminNotifications, id, &entry))
	assert.False(t, entry.Read, "re-entry resets the entry to unread")
	assert.True(t, entry.CreatedAt.Equal(firstCreated), "original creation time is preserved")
	assert.Equal(t, 1, store.Count(docstore.AdminNotifications))
}
