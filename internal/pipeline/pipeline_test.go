package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumefeed/backend/internal/auditlog"
	"github.com/plumefeed/backend/internal/classifier"
	"github.com/plumefeed/backend/internal/counters"
	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/moderation"
	"github.com/plumefeed/backend/internal/models"
	"github.com/plumefeed/backend/internal/notifications"
	"github.com/plumefeed/backend/internal/storage"
)

type staticClassifier struct {
	verdict *classifier.Verdict
}

func (s staticClassifier) ClassifyText(ctx context.Context, title, body string) (*classifier.Verdict, error) {
	return s.verdict, nil
}

func (s staticClassifier) ClassifyImage(ctx context.Context, data []byte, mimeType string) (*classifier.Verdict, error) {
	return s.verdict, nil
}

func newTestPipeline(store docstore.Store) *events.Dispatcher {
	c := staticClassifier{verdict: &classifier.Verdict{Decision: classifier.DecisionAllow, Score: 0.1}}
	notify := notifications.NewService(store)
	return NewDispatcher(Deps{
		Engine:   moderation.NewEngine(store, c, c, storage.MissingResolver{}, notify),
		Counters: counters.NewMaintainer(store),
		Audit:    auditlog.NewRecorder(store),
		Notify:   notify,
	})
}

func TestPostCreationFlow(t *testing.T) {
	store := docstore.NewMemStore()
	d := newTestPipeline(store)
	ctx := context.Background()

	post := models.Post{ID: "p1", AuthorID: "alice", Text: "hello", Status: models.PostStatusPending}
	require.NoError(t, store.Set(ctx, docstore.Posts, post.ID, post))

	require.NoError(t, d.Dispatch(ctx, &events.Event{
		ID:         "ev1",
		Kind:       events.KindCreated,
		Collection: docstore.Posts,
		DocID:      post.ID,
		After:      events.NewSnapshot(post),
	}))

	var got models.Post
	require.NoError(t, store.Get(ctx, docstore.Posts, post.ID, &got))
	assert.Equal(t, models.PostStatusApproved, got.Status)

	// created + submitted from the audit recorder, review-started + outcome
	// from the engine
	assert.Equal(t, 4, store.Count(docstore.PostEvents))
	assert.Equal(t, 1, store.Count(docstore.Notifications))
}

func TestLikeFlowHitsCounterAndNotifier(t *testing.T) {
	store := docstore.NewMemStore()
	d := newTestPipeline(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, docstore.Posts, "p1", models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusApproved}))

	like := models.Like{ID: models.LikeID("p1", "bob"), PostID: "p1", UserID: "bob", CreatedAt: time.Now()}
	require.NoError(t, store.Set(ctx, docstore.Likes, like.ID, like))

	require.NoError(t, d.Dispatch(ctx, &events.Event{
		ID:         "ev1",
		Kind:       events.KindCreated,
		Collection: docstore.Likes,
		DocID:      like.ID,
		After:      events.NewSnapshot(like),
	}))

	var got models.Post
	require.NoError(t, store.Get(ctx, docstore.Posts, "p1", &got))
	assert.Equal(t, int64(1), got.LikeCount)
	assert.Equal(t, 1, store.Count(docstore.Notifications))
}

func TestCollectionsCoverEveryRegistration(t *testing.T) {
	assert.ElementsMatch(t, []string{
		docstore.Posts,
		docstore.Likes,
		docstore.Comments,
		docstore.Follows,
		docstore.PostEvents,
	}, Collections())
}
