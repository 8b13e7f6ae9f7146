package auditlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/idem"
	"github.com/plumefeed/backend/internal/models"
)

func createdEvent(eventID string, post models.Post) *events.Event {
	return &events.Event{
		ID:         eventID,
		Kind:       events.KindCreated,
		Collection: docstore.Posts,
		DocID:      post.ID,
		After:      events.NewSnapshot(post),
	}
}

func updatedEvent(eventID string, before, after models.Post) *events.Event {
	return &events.Event{
		ID:         eventID,
		Kind:       events.KindUpdated,
		Collection: docstore.Posts,
		DocID:      after.ID,
		Before:     events.NewSnapshot(before),
		After:      events.NewSnapshot(after),
	}
}

func TestPostCreatedAsDraft(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	post := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusDraft}
	require.NoError(t, r.HandlePostCreated(ctx, createdEvent("ev1", post)))

	require.Equal(t, 1, store.Count(docstore.PostEvents))

	var pe models.PostEvent
	require.NoError(t, store.Get(ctx, docstore.PostEvents, idem.Key("ev1", string(models.PostEventCreated)), &pe))
	assert.Equal(t, models.PostEventCreated, pe.Type)
	assert.Equal(t, "alice", pe.Actor, "creation is attributed to the author, not the system")
	assert.Equal(t, "p1", pe.PostID)
}

func TestPostCreatedDirectlyPending(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	post := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPending}
	ev := createdEvent("ev1", post)
	require.NoError(t, r.HandlePostCreated(ctx, ev))

	assert.Equal(t, 2, store.Count(docstore.PostEvents), "created plus submitted")

	// Replay appends nothing new
	require.NoError(t, r.HandlePostCreated(ctx, ev))
	assert.Equal(t, 2, store.Count(docstore.PostEvents))
}

func TestSubmissionTransition(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	before := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusDraft}
	after := before
	after.Status = models.PostStatusPending

	require.NoError(t, r.HandlePostUpdated(ctx, updatedEvent("ev1", before, after)))

	var pe models.PostEvent
	require.NoError(t, store.Get(ctx, docstore.PostEvents, idem.Key("ev1", string(models.PostEventSubmitted)), &pe))
	assert.Equal(t, models.PostEventSubmitted, pe.Type)
}

func TestPendingToPendingIsNotASubmission(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	post := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPending}
	edited := post
	edited.Text = "edited while pending"

	require.NoError(t, r.HandlePostUpdated(ctx, updatedEvent("ev1", post, edited)))
	assert.Zero(t, store.Count(docstore.PostEvents))
}

func TestUpdateWithoutBeforeImageAppendsNothing(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	after := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPending}
	ev := &events.Event{
		ID:         "ev1",
		Kind:       events.KindUpdated,
		Collection: docstore.Posts,
		DocID:      after.ID,
		After:      events.NewSnapshot(after),
	}

	require.NoError(t, r.HandlePostUpdated(ctx, ev))
	assert.Zero(t, store.Count(docstore.PostEvents), "transition cannot be established without the prior state")
}

func TestUpdateOutOfPendingAppendsNothing(t *testing.T) {
	store := docstore.NewMemStore()
	r := NewRecorder(store)
	ctx := context.Background()

	before := models.Post{ID: "p1", AuthorID: "alice", Status: models.PostStatusPending}
	after := before
	after.Status = models.PostStatusApproved

	require.NoError(t, r.HandlePostUpdated(ctx, updatedEvent("ev1", before, after)))
	assert.Zero(t, store.Count(docstore.PostEvents))
}
