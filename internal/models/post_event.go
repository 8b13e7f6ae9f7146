package models

import "time"

// PostEventType enumerates the audit trail entries for a post
type PostEventType string

const (
	PostEventCreated         PostEventType = "created"
	PostEventSubmitted       PostEventType = "submitted"
	PostEventApproved        PostEventType = "approved"
	PostEventRejected        PostEventType = "rejected"
	PostEventAIReviewStarted PostEventType = "ai_review_started"
	PostEventAIApproved      PostEventType = "ai_approved"
	PostEventAIFlagged       PostEventType = "ai_flagged"
	PostEventAIRejected      PostEventType = "ai_rejected"
)

// SystemActor is the actor recorded on events written by automated reactors
const SystemActor = "system"

// PostEvent is one append-only audit trail entry. Never updated or
// deleted; reactor-written events carry deterministic ids so redelivery
// overwrites the same document instead of duplicating it.
// Collection: post_events
type PostEvent struct {
	ID        string        `bson:"_id" json:"id"`
	PostID    string        `bson:"post_id" json:"post_id"`
	Type      PostEventType `bson:"type" json:"type"`
	Actor     string        `bson:"actor" json:"actor"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}
