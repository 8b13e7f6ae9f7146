package notifications

import (
	"context"
	"fmt"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/models"
)

// HandleAdminDecision reacts to approved/rejected audit events written by
// a human administrator (actor != "system") and raises the one-time
// author-facing notification for the decision. Automated decisions notify
// from inside the moderation transaction instead.
func (s *Service) HandleAdminDecision(ctx context.Context, ev *events.Event) error {
	var pe models.PostEvent
	if err := ev.After.Decode(&pe); err != nil {
		return err
	}

	if pe.Actor == models.SystemActor {
		return nil
	}

	var t models.NotificationType
	switch pe.Type {
	case models.PostEventApproved:
		t = models.NotificationAdminApproved
	case models.PostEventRejected:
		t = models.NotificationAdminRejected
	default:
		return nil
	}

	var post models.Post
	if err := s.store.Get(ctx, docstore.Posts, pe.PostID, &post); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}

	message := "Your post was approved by a moderator"
	if t == models.NotificationAdminRejected {
		message = "Your post was rejected by a moderator"
		if post.RejectionReason != "" {
			message = fmt.Sprintf("%s: %s", message, post.RejectionReason)
		}
	}

	n := &models.Notification{
		ID:        models.OutcomeNotificationID(t, post.ID),
		UserID:    post.AuthorID,
		ActorID:   pe.Actor,
		Type:      t,
		PostID:    post.ID,
		Message:   message,
		CreatedAt: s.now(),
	}

	err := s.store.Create(ctx, docstore.Notifications, n.ID, n)
	if errors.IsAlreadyExists(err) {
		return nil
	}
	if err == nil {
		metrics.Get().NotificationsCreated.WithLabelValues(string(t)).Inc()
	}
	return err
}
