package models

import "time"

// PostStatus is the moderation lifecycle state of a post
type PostStatus string

const (
	PostStatusDraft    PostStatus = "draft"
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
)

// MaxRejectionReasonLen bounds the user-facing rejection reason
const MaxRejectionReasonLen = 200

// Post represents a user post flowing through moderation
// Collection: posts
type Post struct {
	ID              string      `bson:"_id" json:"id"`
	AuthorID        string      `bson:"author_id" json:"author_id"`
	Text            string      `bson:"text" json:"text"`
	Title           string      `bson:"title,omitempty" json:"title,omitempty"`
	PhotoPath       string      `bson:"photo_path,omitempty" json:"photo_path,omitempty"`
	Status          PostStatus  `bson:"status" json:"status"`
	RejectionReason string      `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	Moderation      *Moderation `bson:"moderation,omitempty" json:"moderation,omitempty"`
	LikeCount       int64       `bson:"like_count" json:"like_count"`
	CommentCount    int64       `bson:"comment_count" json:"comment_count"`
	CreatedAt       time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `bson:"updated_at" json:"updated_at"`
}

// Moderation is the per-post moderation sub-record. Text is always
// evaluated; Image exists only for posts that carry a photo.
type Moderation struct {
	Text  *VerdictRecord `bson:"text,omitempty" json:"text,omitempty"`
	Image *VerdictRecord `bson:"image,omitempty" json:"image,omitempty"`
}

// TextRecord returns the text sub-verdict, nil-safe
func (m *Moderation) TextRecord() *VerdictRecord {
	if m == nil {
		return nil
	}
	return m.Text
}

// ImageRecord returns the image sub-verdict, nil-safe
func (m *Moderation) ImageRecord() *VerdictRecord {
	if m == nil {
		return nil
	}
	return m.Image
}

// VerdictRecord is one classifier sub-verdict as persisted on the post
type VerdictRecord struct {
	Decision     string             `bson:"decision" json:"decision"`
	Score        float64            `bson:"score" json:"score"`
	Categories   map[string]float64 `bson:"categories,omitempty" json:"categories,omitempty"`
	Message      string             `bson:"message,omitempty" json:"message,omitempty"`
	CheckedAt    time.Time          `bson:"checked_at" json:"checked_at"`
	ModelVersion string             `bson:"model_version" json:"model_version"`
}

// User represents a user aggregate document. Profile fields live outside
// this core; the pipeline only maintains the two counters.
// Collection: users
type User struct {
	ID             string    `bson:"_id" json:"id"`
	Handle         string    `bson:"handle" json:"handle"`
	DisplayName    string    `bson:"display_name" json:"display_name"`
	FollowersCount int64     `bson:"followers_count" json:"followers_count"`
	FollowingCount int64     `bson:"following_count" json:"following_count"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
