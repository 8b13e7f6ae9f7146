package models

import (
	"fmt"
	"time"
)

// NotificationType enumerates the per-user inbox notification kinds
type NotificationType string

const (
	NotificationFollow        NotificationType = "follow"
	NotificationLike          NotificationType = "like"
	NotificationComment       NotificationType = "comment"
	NotificationAIApproved    NotificationType = "post_ai_approved"
	NotificationAIRejected    NotificationType = "post_ai_rejected"
	NotificationAIReview      NotificationType = "post_ai_review"
	NotificationAdminApproved NotificationType = "post_admin_approved"
	NotificationAdminRejected NotificationType = "post_admin_rejected"
)

// Notification is one entry in a user's inbox.
// Moderation-outcome notifications use OutcomeNotificationID so a post gets
// at most one per outcome type; social notifications are keyed off the
// triggering event id.
// Collection: notifications
type Notification struct {
	ID        string           `bson:"_id" json:"id"`
	UserID    string           `bson:"user_id" json:"user_id"`
	ActorID   string           `bson:"actor_id" json:"actor_id"`
	Type      NotificationType `bson:"type" json:"type"`
	PostID    string           `bson:"post_id,omitempty" json:"post_id,omitempty"`
	Message   string           `bson:"message" json:"message"`
	Metadata  map[string]any   `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Read      bool             `bson:"read" json:"read"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}

// OutcomeNotificationID builds the deterministic id for a moderation
// outcome notification: at most one per post per outcome type.
func OutcomeNotificationID(t NotificationType, postID string) string {
	return fmt.Sprintf("%s_%s", t, postID)
}

// AdminNotification is an entry in the admin review queue.
// Collection: admin_notifications, _id = review_<postID>
type AdminNotification struct {
	ID        string         `bson:"_id" json:"id"`
	Type      string         `bson:"type" json:"type"`
	PostID    string         `bson:"post_id" json:"post_id"`
	Actor     string         `bson:"actor" json:"actor"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Read      bool           `bson:"read" json:"read"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// AdminReviewID builds the review queue entry id for a post
func AdminReviewID(postID string) string {
	return fmt.Sprintf("review_%s", postID)
}
