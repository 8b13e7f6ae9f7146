package notifications

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/events"
	"github.com/plumefeed/backend/internal/idem"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/models"
)

// HandleLikeCreated raises a "like" notification to the post author
func (s *Service) HandleLikeCreated(ctx context.Context, ev *events.Event) error {
	var like models.Like
	if err := ev.After.Decode(&like); err != nil {
		return err
	}

	var post models.Post
	if err := s.store.Get(ctx, docstore.Posts, like.PostID, &post); err != nil {
		if errors.IsNotFound(err) {
			// Post deleted under the like; nobody to notify
			return nil
		}
		return err
	}

	return s.notifySocial(ctx, ev.ID, &models.Notification{
		UserID:  post.AuthorID,
		ActorID: like.UserID,
		Type:    models.NotificationLike,
		PostID:  like.PostID,
		Message: fmt.Sprintf("%s liked your post", s.actorName(ctx, like.UserID)),
	}, true)
}

// HandleFollowCreated raises a "follow" notification to the followee
func (s *Service) HandleFollowCreated(ctx context.Context, ev *events.Event) error {
	var follow models.Follow
	if err := ev.After.Decode(&follow); err != nil {
		return err
	}

	return s.notifySocial(ctx, ev.ID, &models.Notification{
		UserID:  follow.FolloweeID,
		ActorID: follow.FollowerID,
		Type:    models.NotificationFollow,
		Message: fmt.Sprintf("%s started following you", s.actorName(ctx, follow.FollowerID)),
	}, true)
}

// HandleCommentCreated raises a "comment" notification to the post author.
// Comments are intentional, distinct actions, so they skip the recency
// dedup; the deterministic id still makes redelivery idempotent.
func (s *Service) HandleCommentCreated(ctx context.Context, ev *events.Event) error {
	var comment models.Comment
	if err := ev.After.Decode(&comment); err != nil {
		return err
	}

	var post models.Post
	if err := s.store.Get(ctx, docstore.Posts, comment.PostID, &post); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}

	return s.notifySocial(ctx, ev.ID, &models.Notification{
		UserID:  post.AuthorID,
		ActorID: comment.AuthorID,
		Type:    models.NotificationComment,
		PostID:  comment.PostID,
		Message: fmt.Sprintf("%s commented on your post", s.actorName(ctx, comment.AuthorID)),
	}, false)
}

// notifySocial applies the shared social-notification policy: suppress
// self-notifications, optionally dedup against recent unread activity,
// then create under a deterministic event-derived id.
func (s *Service) notifySocial(ctx context.Context, eventID string, n *models.Notification, dedup bool) error {
	if n.ActorID == n.UserID {
		return nil
	}

	if dedup {
		isDup, err := s.recentDuplicate(ctx, n)
		if err != nil {
			// Best-effort scan: favor creating over blocking the feature
			logger.Log.Warn("Notification dedup scan failed, creating anyway",
				logger.WithUserID(n.UserID),
				zap.Error(err),
			)
		} else if isDup {
			metrics.Get().DedupSkips.WithLabelValues(string(n.Type)).Inc()
			return nil
		}
	}

	n.ID = idem.Key(eventID, "notify_"+string(n.Type))
	n.CreatedAt = s.now()

	err := s.store.Create(ctx, docstore.Notifications, n.ID, n)
	if errors.IsAlreadyExists(err) {
		return nil
	}
	if err == nil {
		metrics.Get().NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	}
	return err
}

// recentDuplicate scans the recipient's most recent unread notifications
// for one matching the same actor, type and post inside the dedup window
func (s *Service) recentDuplicate(ctx context.Context, n *models.Notification) (bool, error) {
	var recent []models.Notification
	filter := map[string]any{
		"user_id": n.UserID,
		"read":    false,
	}
	if err := s.store.FindRecent(ctx, docstore.Notifications, filter, dedupScanLimit, &recent); err != nil {
		return false, err
	}

	cutoff := s.now().Add(-dedupWindow)
	for _, r := range recent {
		if r.ActorID == n.ActorID && r.Type == n.Type && r.PostID == n.PostID && r.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// actorName resolves a display name for notification text, falling back
// to the raw id when the user document is unavailable
func (s *Service) actorName(ctx context.Context, userID string) string {
	var user models.User
	if err := s.store.Get(ctx, docstore.Users, userID, &user); err != nil {
		return userID
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.Handle != "" {
		return user.Handle
	}
	return userID
}
