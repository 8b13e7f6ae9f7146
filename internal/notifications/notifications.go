// Package notifications implements the deduplicated notification fan-out:
// per-user inbox records for social activity and moderation outcomes, and
// the admin review queue.
package notifications

import (
	"context"
	"time"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/metrics"
	"github.com/plumefeed/backend/internal/models"
)

const (
	// dedupScanLimit bounds the recent-notification scan. Best effort:
	// a true duplicate older than the window or outside the scan is
	// allowed through rather than blocking the notification.
	dedupScanLimit = 20
	dedupWindow    = 10 * time.Minute
)

// Service creates notification records against the document store
type Service struct {
	store docstore.Store
	now   func() time.Time
}

// NewService creates a notification service
func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// NotifyOutcome writes a one-time author-facing moderation outcome
// notification inside the caller's transaction. Keyed by
// <type>_<postId>: at most one per post per outcome type, so redelivery
// and repeated review passes are no-ops.
func (s *Service) NotifyOutcome(ctx context.Context, tx docstore.Tx, t models.NotificationType, post *models.Post, message string, metadata map[string]any) error {
	n := &models.Notification{
		ID:        models.OutcomeNotificationID(t, post.ID),
		UserID:    post.AuthorID,
		ActorID:   models.SystemActor,
		Type:      t,
		PostID:    post.ID,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	err := tx.Create(ctx, docstore.Notifications, n.ID, n)
	if errors.IsAlreadyExists(err) {
		return nil
	}
	if err == nil {
		metrics.Get().NotificationsCreated.WithLabelValues(string(t)).Inc()
	}
	return err
}

// RaiseAdminReview creates or refreshes the review-queue entry for a post
// inside the caller's transaction. Unlike outcome notifications this is
// not create-once: a post can legitimately re-enter review, so an existing
// entry is reset to unread with fresh metadata.
func (s *Service) RaiseAdminReview(ctx context.Context, tx docstore.Tx, post *models.Post, metadata map[string]any) error {
	id := models.AdminReviewID(post.ID)

	createdAt := s.now()
	var existing models.AdminNotification
	if err := tx.Get(ctx, docstore.AdminNotifications, id, &existing); err == nil {
		createdAt = existing.CreatedAt
	} else if !errors.IsNotFound(err) {
		return err
	}

	entry := &models.AdminNotification{
		ID:        id,
		Type:      "review",
		PostID:    post.ID,
		Actor:     models.SystemActor,
		Metadata:  metadata,
		Read:      false,
		CreatedAt: createdAt,
	}
	if err := tx.Set(ctx, docstore.AdminNotifications, id, entry); err != nil {
		return err
	}
	metrics.Get().NotificationsCreated.WithLabelValues("admin_review").Inc()
	return nil
}
